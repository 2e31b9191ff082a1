package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// ChannelSpec describes one channel created at startup.
type ChannelSpec struct {
	Name     string
	Capacity int
}

// Options configures a Hub.
type Options struct {
	Channels        []ChannelSpec
	HistorySize     int
	SeatReservation bool
}

// AuthResult tells how a successful login was interpreted.
type AuthResult int

const (
	// AuthSignedUp means a new identity was created.
	AuthSignedUp AuthResult = iota + 1
	// AuthSignedIn means an existing identity was bound to the session.
	AuthSignedIn
)

// AuthOutcome is returned by a successful Authenticate.
type AuthOutcome struct {
	Result AuthResult
	Login  string
	// Restore is nil unless the user held a seat when signing in.
	Restore *Restore
}

// Restore reports an attempt to put a returning user back into their channel.
type Restore struct {
	Channel string
	History []HistoryEntry
	Err     *CoreError
}

// ChannelStats is a point-in-time view of one channel.
type ChannelStats struct {
	Name     string
	Capacity int
	Live     int
	Reserved int
	History  int
}

// Hub owns the identity registry, the channel directory and the membership
// records. Every mutation happens under mu because the one-seat-per-user rule
// spans all channels. Identity store I/O happens outside mu.
type Hub struct {
	mu              sync.Mutex
	users           store.UserStore
	channels        map[string]*Channel
	order           []string
	memberships     map[string]string // login -> channel name, "" when none
	seatReservation bool

	sessions *Directory
	log      *zerolog.Logger
}

// NewHub creates a hub with the configured channels.
func NewHub(users store.UserStore, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		users:           users,
		channels:        make(map[string]*Channel, len(opts.Channels)),
		memberships:     make(map[string]string),
		seatReservation: opts.SeatReservation,
		sessions:        NewDirectory(),
		log:             logger,
	}
	for _, spec := range opts.Channels {
		if _, dup := h.channels[spec.Name]; dup {
			continue
		}
		h.channels[spec.Name] = NewChannel(spec.Name, spec.Capacity, opts.HistorySize)
		h.order = append(h.order, spec.Name)
	}
	return h
}

// Connect registers a freshly accepted session.
func (h *Hub) Connect(s *Session) {
	h.sessions.Add(s)
	h.log.Debug().Str("session_id", s.ID).Str("remote", s.Remote).Int("connections", h.sessions.Len()).Msg("session connected")
}

// Disconnect drops the session's live seat. The membership record is kept.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLiveSeatLocked(s)
	h.sessions.Remove(s)
	h.log.Debug().Str("session_id", s.ID).Str("user", s.Label()).Int("connections", h.sessions.Len()).Msg("session disconnected")
}

// Authenticate signs a session up or in.
func (h *Hub) Authenticate(ctx context.Context, s *Session, login, password string) (*AuthOutcome, error) {
	// Identities never change once created, so the store is consulted before
	// taking mu and a slow lookup does not stall other sessions.
	stored, created, err := h.resolveIdentity(ctx, login, password)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	candidate := &User{Login: login, Password: password}
	existing := &User{Login: stored.Login, Password: stored.Password}
	if !existing.Equal(candidate) {
		return nil, coreError(ErrCodeWrongPassword, "Wrong password for login "+login)
	}
	if existing.Equal(s.User()) {
		return nil, coreError(ErrCodeAlreadySignedIn, "You're already signed in.")
	}
	if h.sessions.LoggedIn(login, s) {
		return nil, coreError(ErrCodeLoginInUse, "Such user already exists.")
	}

	h.releaseLiveSeatLocked(s)
	s.bind(existing)
	if _, known := h.memberships[login]; !known {
		h.memberships[login] = ""
	}

	if created {
		h.log.Info().Str("session_id", s.ID).Str("login", login).Msg("user signed up")
		return &AuthOutcome{Result: AuthSignedUp, Login: login}, nil
	}
	h.log.Info().Str("session_id", s.ID).Str("login", login).Msg("user signed in")

	outcome := &AuthOutcome{Result: AuthSignedIn, Login: login}
	if name := h.memberships[login]; name != "" {
		outcome.Restore = h.restoreLocked(s, existing, name)
	}
	return outcome, nil
}

// resolveIdentity returns the stored identity for login, creating it with
// password when it does not exist yet. created reports whether this call
// inserted it.
func (h *Hub) resolveIdentity(ctx context.Context, login, password string) (*store.User, bool, error) {
	stored, err := h.users.GetUserByLogin(ctx, login)
	if err == nil {
		return stored, false, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		h.log.Error().Err(err).Str("login", login).Msg("lookup identity")
		return nil, false, coreError(ErrCodeInternal, "Can't sign in right now.")
	}

	stored, err = h.users.CreateUser(ctx, login, password)
	if err == nil {
		return stored, true, nil
	}
	// A concurrent sign-up may have inserted the same login first.
	if existing, lookupErr := h.users.GetUserByLogin(ctx, login); lookupErr == nil {
		return existing, false, nil
	}
	h.log.Error().Err(err).Str("login", login).Msg("create identity")
	return nil, false, coreError(ErrCodeInternal, "Can't sign up right now.")
}

// Join seats the session's user in a channel and returns the history to replay.
func (h *Hub) Join(s *Session, name string) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := s.User()
	if u == nil {
		return nil, coreError(ErrCodeUnauthenticated, "You're not logged in.")
	}
	if current := h.memberships[u.Login]; current != "" {
		return nil, coreError(ErrCodeAlreadyInChannel, "You're already in chat channel "+current)
	}
	ch, ok := h.channels[name]
	if !ok {
		return nil, coreError(ErrCodeUnknownChannel, "There is no channels with name "+name)
	}
	if h.isFullLocked(ch, u) {
		return nil, coreError(ErrCodeChannelFull, "There is no place in channel "+name)
	}

	h.seatLocked(s, u, ch)
	return ch.History.Snapshot(), nil
}

// Leave gives up the session user's seat and clears the membership record.
func (h *Hub) Leave(s *Session) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := s.User()
	if u == nil {
		return "", coreError(ErrCodeUnauthenticated, "You're not logged in.")
	}
	name := h.memberships[u.Login]
	if name == "" {
		return "", coreError(ErrCodeNotInChannel, "You're not in any channels.")
	}

	if ch, ok := h.channels[name]; ok && ch.RemoveSession(s) {
		ch.Broadcast(&Event{Kind: EventUserLeft, Channel: name, User: u.Login}, nil)
	}
	h.memberships[u.Login] = ""
	h.log.Debug().Str("login", u.Login).Str("channel", name).Msg("user left channel")
	return name, nil
}

// Send broadcasts text to the live members of the sender's channel and
// records it in the channel history.
func (h *Hub) Send(s *Session, text string) error {
	h.mu.Lock()
	u := s.User()
	if u == nil {
		h.mu.Unlock()
		return coreError(ErrCodeNotInChannel, "You need to sign in to write the messages.")
	}
	ch, ok := h.channels[h.memberships[u.Login]]
	if !ok {
		h.mu.Unlock()
		return coreError(ErrCodeNotInChannel, "You're not in any channels.")
	}
	recipients := ch.Sessions()
	h.mu.Unlock()

	for _, r := range recipients {
		r.Deliver(&Event{
			Kind:    EventChatMessage,
			Channel: ch.Name,
			User:    u.Login,
			Message: Message{Channel: ch.Name, From: u.Login, Text: text, Own: r == s},
		})
	}
	ch.History.Append(HistoryEntry{Author: u.Login, Text: text})
	return nil
}

// Members lists the live members of the caller's channel.
func (h *Hub) Members(s *Session) (string, []string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := s.User()
	if u == nil {
		return "", nil, coreError(ErrCodeUnauthenticated, "You're not logged in.")
	}
	name := h.memberships[u.Login]
	if name == "" {
		return "", nil, coreError(ErrCodeNotInChannel, "Can't find chat channel name.")
	}
	ch, ok := h.channels[name]
	if !ok {
		return "", nil, coreError(ErrCodeUnknownChannel, "Can't find channel group.")
	}
	return name, ch.Logins(), nil
}

// ActiveSessions labels every connected session in connection order.
func (h *Hub) ActiveSessions() []string {
	return lo.Map(h.sessions.Sessions(), func(s *Session, _ int) string {
		return s.Label()
	})
}

// Sessions returns every connected session in connection order.
func (h *Hub) Sessions() []*Session {
	return h.sessions.Sessions()
}

// SetSeatReservation switches the reservation policy for all later capacity checks.
func (h *Hub) SetSeatReservation(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seatReservation != on {
		h.log.Info().Bool("seat_reservation", on).Msg("seat reservation policy changed")
	}
	h.seatReservation = on
}

// SeatReservation reports the current reservation policy.
func (h *Hub) SeatReservation() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seatReservation
}

// Membership returns the channel recorded for login and whether login is known.
func (h *Hub) Membership(login string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	name, ok := h.memberships[login]
	return name, ok
}

// ChannelStats reports occupancy for every channel in configuration order.
func (h *Hub) ChannelStats() []ChannelStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	reserved := lo.CountValues(lo.Values(h.memberships))
	return lo.Map(h.order, func(name string, _ int) ChannelStats {
		ch := h.channels[name]
		return ChannelStats{
			Name:     name,
			Capacity: ch.Capacity,
			Live:     ch.Len(),
			Reserved: reserved[name],
			History:  ch.History.Len(),
		}
	})
}

func (h *Hub) restoreLocked(s *Session, u *User, name string) *Restore {
	r := &Restore{Channel: name}

	ch, ok := h.channels[name]
	if !ok {
		r.Err = coreError(ErrCodeRestoreFailed, fmt.Sprintf("Can't restore %s in chat channel %s", u.Login, name))
		return r
	}
	if h.isFullLocked(ch, u) {
		r.Err = coreError(ErrCodeRestoreFailed, "There is no place in channel "+name)
		return r
	}

	h.seatLocked(s, u, ch)
	r.History = ch.History.Snapshot()
	return r
}

// isFullLocked runs the capacity check for u under the active policy.
func (h *Hub) isFullLocked(ch *Channel, u *User) bool {
	if h.seatReservation {
		switch h.memberships[u.Login] {
		case ch.Name:
			// The user's own reservation is already counted.
			return false
		case "":
		default:
			return true
		}
		return lo.Count(lo.Values(h.memberships), ch.Name) >= ch.Capacity
	}

	h.reconcileLocked(ch, u.Login)
	return ch.Len() >= ch.Capacity
}

// reconcileLocked demotes records naming ch whose user has no live session in
// it. The record of except is left alone.
func (h *Hub) reconcileLocked(ch *Channel, except string) {
	for login, name := range h.memberships {
		if name != ch.Name || login == except {
			continue
		}
		if !ch.HasLogin(login) {
			h.memberships[login] = ""
			h.log.Debug().Str("login", login).Str("channel", ch.Name).Msg("released stale seat")
		}
	}
}

func (h *Hub) seatLocked(s *Session, u *User, ch *Channel) {
	ch.AddSession(s)
	h.memberships[u.Login] = ch.Name
	ch.Broadcast(&Event{Kind: EventUserJoined, Channel: ch.Name, User: u.Login}, s)
	h.log.Debug().Str("login", u.Login).Str("channel", ch.Name).Int("live", ch.Len()).Msg("user joined channel")
}

// releaseLiveSeatLocked removes the session from whatever live set holds it.
func (h *Hub) releaseLiveSeatLocked(s *Session) {
	for _, ch := range h.channels {
		ch.RemoveSession(s)
	}
}
