package core

import (
	"sort"

	"github.com/samber/lo"
)

// Channel is a named, fixed-capacity set of live sessions.
// Member set access is guarded by the Hub lock.
type Channel struct {
	Name     string
	Capacity int
	History  *History

	members map[string]*Session
}

// NewChannel constructs a channel with no members.
func NewChannel(name string, capacity, historySize int) *Channel {
	return &Channel{
		Name:     name,
		Capacity: capacity,
		History:  NewHistory(historySize),
		members:  make(map[string]*Session),
	}
}

// AddSession inserts a session into the live set. Returns true if newly added.
func (c *Channel) AddSession(s *Session) bool {
	if _, exists := c.members[s.ID]; exists {
		return false
	}
	c.members[s.ID] = s
	return true
}

// RemoveSession deletes a session from the live set. Returns true if removed.
func (c *Channel) RemoveSession(s *Session) bool {
	if _, exists := c.members[s.ID]; !exists {
		return false
	}
	delete(c.members, s.ID)
	return true
}

// HasSession reports whether the session is in the live set.
func (c *Channel) HasSession(s *Session) bool {
	_, ok := c.members[s.ID]
	return ok
}

// HasLogin reports whether a live session bound to login is present.
func (c *Channel) HasLogin(login string) bool {
	for _, s := range c.members {
		if u := s.User(); u != nil && u.Login == login {
			return true
		}
	}
	return false
}

// Len returns the live member count.
func (c *Channel) Len() int {
	return len(c.members)
}

// Sessions returns a snapshot of the live set.
func (c *Channel) Sessions() []*Session {
	return lo.Values(c.members)
}

// Logins returns the sorted labels of the live members.
func (c *Channel) Logins() []string {
	names := lo.Map(lo.Values(c.members), func(s *Session, _ int) string {
		return s.Label()
	})
	sort.Strings(names)
	return names
}

// Broadcast sends an event to all live members except one without blocking.
func (c *Channel) Broadcast(event *Event, except *Session) {
	for _, s := range c.members {
		if s == except {
			continue
		}
		s.Deliver(event)
	}
}
