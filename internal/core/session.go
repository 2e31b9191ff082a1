package core

import (
	"context"
	"sync/atomic"
	"time"
)

// Session is the per-connection state seen by the core layer.
type Session struct {
	ID          string
	Remote      string
	ConnectedAt time.Time
	Outbox      chan *Event

	user    atomic.Pointer[User]
	dropped atomic.Int64
}

// NewSession constructs a session with a buffered outbox.
func NewSession(id, remote string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:          id,
		Remote:      remote,
		ConnectedAt: time.Now(),
		Outbox:      make(chan *Event, buffer),
	}
}

// User returns the bound identity, or nil before a successful login.
func (s *Session) User() *User {
	return s.user.Load()
}

// Label is the login when authenticated, otherwise the remote address.
func (s *Session) Label() string {
	if u := s.User(); u != nil {
		return u.Login
	}
	if s.Remote != "" {
		return s.Remote
	}
	return s.ID
}

// Dropped reports how many events were discarded because the outbox was full.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Session) bind(u *User) {
	s.user.Store(u)
}

// Deliver enqueues an event without blocking. Returns false if it was dropped.
func (s *Session) Deliver(ev *Event) bool {
	select {
	case s.Outbox <- ev:
		return true
	default:
		// Drop if slow consumer.
		s.dropped.Add(1)
		return false
	}
}

// Reply enqueues an event for the session's own connection, waiting for room
// in the outbox until ctx is done.
func (s *Session) Reply(ctx context.Context, ev *Event) error {
	select {
	case s.Outbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
