package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

func newTestHub(t *testing.T, reservation bool, channels ...ChannelSpec) *Hub {
	t.Helper()

	st, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if len(channels) == 0 {
		channels = []ChannelSpec{{Name: "general", Capacity: 2}}
	}
	return NewHub(st, Options{
		Channels:        channels,
		HistorySize:     DefaultHistorySize,
		SeatReservation: reservation,
	}, nil)
}

func connect(h *Hub, id string) *Session {
	s := NewSession(id, "10.0.0.1:"+id, 64)
	h.Connect(s)
	return s
}

func dispatch(t *testing.T, h *Hub, s *Session, cmd Command) {
	t.Helper()

	closeConn, err := h.Dispatch(context.Background(), s, cmd)
	require.NoError(t, err)
	require.False(t, closeConn)
}

func login(t *testing.T, h *Hub, s *Session, name, password string) {
	t.Helper()
	dispatch(t, h, s, Command{Kind: CommandLogin, Login: name, Password: password})
}

func join(t *testing.T, h *Hub, s *Session, channel string) {
	t.Helper()
	dispatch(t, h, s, Command{Kind: CommandJoin, Channel: channel})
}

// drain empties the outbox without blocking.
func drain(s *Session) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-s.Outbox:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustError(t *testing.T, s *Session, code string) *CoreError {
	t.Helper()

	ev := mustEvent(t, s.Outbox, EventError)
	require.NotNil(t, ev.Error)
	require.Equal(t, code, ev.Error.Code, ev.Error.Message)
	return ev.Error
}

func stats(t *testing.T, h *Hub, name string) ChannelStats {
	t.Helper()

	for _, st := range h.ChannelStats() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("channel %s not found", name)
	return ChannelStats{}
}
