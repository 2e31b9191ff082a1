package core

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Directory tracks every connected session. Safe for concurrent use.
type Directory struct {
	sessions *xsync.MapOf[string, *Session]
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{sessions: xsync.NewMapOf[string, *Session]()}
}

// Add registers a session.
func (d *Directory) Add(s *Session) {
	d.sessions.Store(s.ID, s)
}

// Remove forgets a session.
func (d *Directory) Remove(s *Session) {
	d.sessions.Delete(s.ID)
}

// Len returns the number of connected sessions.
func (d *Directory) Len() int {
	return d.sessions.Size()
}

// Sessions returns all connected sessions in connection order.
func (d *Directory) Sessions() []*Session {
	out := make([]*Session, 0, d.sessions.Size())
	d.sessions.Range(func(_ string, s *Session) bool {
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// LoggedIn reports whether any connected session other than except is bound to login.
func (d *Directory) LoggedIn(login string, except *Session) bool {
	found := false
	d.sessions.Range(func(_ string, s *Session) bool {
		if s == except {
			return true
		}
		if u := s.User(); u != nil && u.Login == login {
			found = true
			return false
		}
		return true
	})
	return found
}
