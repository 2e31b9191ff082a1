package telnet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

func startServer(t *testing.T) string {
	t.Helper()

	st, err := sqlite.New(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	hub := core.NewHub(st, core.Options{
		Channels:        []core.ChannelSpec{{Name: "general", Capacity: 2}},
		HistorySize:     core.DefaultHistorySize,
		SeatReservation: true,
	}, &logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(hub, config.Default(), &logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return ln.Addr().String()
}

type lineClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *lineClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &lineClient{conn: conn, r: bufio.NewReader(conn)}
	if line := c.read(t); !strings.HasPrefix(line, "Welcome to ") {
		t.Fatalf("unexpected greeting %q", line)
	}
	if line := c.read(t); !strings.HasPrefix(line, "It is ") {
		t.Fatalf("unexpected time line %q", line)
	}
	return c
}

func (c *lineClient) send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(c.conn, line+"\r\n"); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (c *lineClient) read(t *testing.T) string {
	t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(line, "\r\n") {
		t.Fatalf("line %q is not CRLF terminated", line)
	}
	return strings.TrimSuffix(line, "\r\n")
}

func (c *lineClient) expect(t *testing.T, want string) {
	t.Helper()
	if got := c.read(t); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestChatOverTCP(t *testing.T) {
	addr := startServer(t)

	alice := dial(t, addr)
	alice.send(t, "login alice pw1")
	alice.expect(t, "You're successfully signed up. Your login is alice")
	alice.send(t, "join general")
	alice.expect(t, "User alice joined to general channel.")

	bob := dial(t, addr)
	bob.send(t, "login bob pw2")
	bob.expect(t, "You're successfully signed up. Your login is bob")
	bob.send(t, "join general")
	bob.expect(t, "User bob joined to general channel.")
	alice.expect(t, "User bob joined to general channel.")

	alice.send(t, "hello")
	alice.expect(t, "[you] hello")
	bob.expect(t, "[alice] hello")

	bob.send(t, "users")
	bob.expect(t, "Users of channel - general:")
	bob.expect(t, "alice")
	bob.expect(t, "bob")

	bob.send(t, "")
	bob.expect(t, "Please type something.")
}

func TestRestoreOverTCP(t *testing.T) {
	addr := startServer(t)

	alice := dial(t, addr)
	alice.send(t, "login alice pw1")
	alice.expect(t, "You're successfully signed up. Your login is alice")
	alice.send(t, "join general")
	alice.expect(t, "User alice joined to general channel.")
	alice.send(t, "first")
	alice.expect(t, "[you] first")
	alice.send(t, "bye")

	_ = alice.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := alice.r.ReadString('\n'); err == nil {
		t.Fatalf("expected connection to close after bye")
	}

	again := dial(t, addr)
	again.send(t, "login alice pw1")
	again.expect(t, "You're successfully signed in. Your login is alice")
	again.expect(t, "User alice joined to general channel.")
	again.expect(t, "Restore alice in chat channel general")
	again.expect(t, "1) [alice]first")
}

func TestMalformedCommandKeepsConnection(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	c.send(t, "login alice")
	c.expect(t, "Wrong login/password pair.")
	c.send(t, "join general")
	c.expect(t, "You're not logged in.")
	c.send(t, "join")
	c.expect(t, "Usage: join <channel>")
}

func (c *lineClient) readAll(t *testing.T) string {
	t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := io.ReadAll(c.r)
	if err != nil {
		t.Fatalf("read until close: %v", err)
	}
	return string(data)
}

func TestPipelinedCommandsBeforeBye(t *testing.T) {
	addr := startServer(t)

	for i := 0; i < 50; i++ {
		c := dial(t, addr)
		login := fmt.Sprintf("user%d", i)
		if _, err := io.WriteString(c.conn, "\r\n\r\nlogin "+login+" pw\r\nbye\r\n"); err != nil {
			t.Fatalf("write: %v", err)
		}

		want := "Please type something.\r\n" +
			"Please type something.\r\n" +
			"You're successfully signed up. Your login is " + login + "\r\n"
		if got := c.readAll(t); got != want {
			t.Fatalf("session %d: expected %q, got %q", i, want, got)
		}
	}
}

func TestHalfClosedPeerGetsReplies(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	c.send(t, "login alice pw")
	c.send(t, "join general")
	if err := c.conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}

	want := "You're successfully signed up. Your login is alice\r\n" +
		"User alice joined to general channel.\r\n"
	if got := c.readAll(t); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
