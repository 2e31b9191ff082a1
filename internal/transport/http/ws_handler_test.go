package http

import (
	"context"
	"fmt"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

func startTestServer(t *testing.T) (*httptest.Server, *core.Hub) {
	t.Helper()

	st, err := sqlite.New(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(st, core.Options{
		Channels:        []core.ChannelSpec{{Name: "general", Capacity: 2}, {Name: "zepto", Capacity: 1}},
		HistorySize:     core.DefaultHistorySize,
		SeatReservation: true,
	}, &disabledLogger)

	cfg := config.Default()
	cfg.ReadHeaderTimeout = time.Second
	server := NewServer(hub, cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts, hub
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendLine(t *testing.T, ctx context.Context, conn *websocket.Conn, line string) {
	t.Helper()
	if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func expectLine(t *testing.T, ctx context.Context, conn *websocket.Conn, want string) {
	t.Helper()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read (want %q): %v", want, err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("expected text frame, got %v", typ)
	}
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, string(data))
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketChat(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts)
	connB := dialWS(t, ctx, ts)

	sendLine(t, ctx, connA, "login alice pw1")
	expectLine(t, ctx, connA, "You're successfully signed up. Your login is alice")
	sendLine(t, ctx, connA, "join general")
	expectLine(t, ctx, connA, "User alice joined to general channel.")

	sendLine(t, ctx, connB, "login bob pw2")
	expectLine(t, ctx, connB, "You're successfully signed up. Your login is bob")
	sendLine(t, ctx, connB, "join general")
	expectLine(t, ctx, connB, "User bob joined to general channel.")
	expectLine(t, ctx, connA, "User bob joined to general channel.")

	sendLine(t, ctx, connB, "hi there\r\n")
	expectLine(t, ctx, connB, "[you] hi there")
	expectLine(t, ctx, connA, "[bob] hi there")
}

func TestWebSocketByeClosesNormally(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendLine(t, ctx, conn, "login alice pw1")
	expectLine(t, ctx, conn, "You're successfully signed up. Your login is alice")
	sendLine(t, ctx, conn, "join zepto")
	expectLine(t, ctx, conn, "User alice joined to zepto channel.")
	sendLine(t, ctx, conn, "bye")

	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v (%v)", status, err)
	}

	if name, _ := hub.Membership("alice"); name != "zepto" {
		t.Fatalf("membership should survive disconnect, got %q", name)
	}
	for _, st := range hub.ChannelStats() {
		if st.Name == "zepto" && st.Live != 0 {
			t.Fatalf("expected no live members after bye, got %d", st.Live)
		}
	}
}

func TestWebSocketPipelinedFramesBeforeBye(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 20; i++ {
		conn := dialWS(t, ctx, ts)
		login := fmt.Sprintf("user%d", i)
		for _, line := range []string{"", "", "login " + login + " pw", "bye"} {
			sendLine(t, ctx, conn, line)
		}

		var got []string
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
					t.Fatalf("session %d: expected normal closure, got %v (%v)", i, status, err)
				}
				break
			}
			got = append(got, string(data))
		}

		want := []string{
			"Please type something.",
			"Please type something.",
			"You're successfully signed up. Your login is " + login,
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("session %d: expected %q, got %q", i, want, got)
		}
	}
}
