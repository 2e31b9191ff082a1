// Package telnet serves the chat protocol over plain TCP connections framed
// as CRLF-terminated text lines.
package telnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/utils"
)

// drainTimeout bounds the final write after bye or a half-closed peer.
const drainTimeout = 5 * time.Second

var errBye = errors.New("client said bye")

// Server accepts TCP connections and bridges each one to a core.Session.
type Server struct {
	hub        *core.Hub
	addr       string
	maxLine    int
	outboxSize int
	host       string
	log        *zerolog.Logger

	wg sync.WaitGroup
}

// NewServer builds a line server from configuration.
func NewServer(hub *core.Hub, cfg config.Config, logger *zerolog.Logger) *Server {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	maxLine := cfg.MaxLineLength
	if maxLine <= 0 {
		maxLine = proto.DefaultMaxLineLength
	}
	return &Server{
		hub:        hub,
		addr:       cfg.Addr,
		maxLine:    maxLine,
		outboxSize: cfg.OutboxSize,
		host:       host,
		log:        logger,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for open
// connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("line server listening")

	// Open connections are cancelled before waiting on them.
	defer s.wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("line server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn().Err(err).Msg("temporary accept error")
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	session := core.NewSession(utils.NewID(), conn.RemoteAddr().String(), s.outboxSize)
	logger := s.log.With().Str("session_id", session.ID).Str("remote", session.Remote).Logger()

	if err := writeLines(conn, proto.Greeting(s.host, time.Now())); err != nil {
		logger.Warn().Err(err).Msg("write greeting")
		return
	}

	s.hub.Connect(session)

	drain := make(chan struct{})
	readErr := make(chan error, 1)
	writeErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(ctx, conn, session)
	}()
	go func() {
		writeErr <- s.writeLoop(ctx, conn, session, drain)
	}()

	var err error
	readDone, writeDone := false, false
	select {
	case err = <-readErr:
		readDone = true
		if errors.Is(err, errBye) || errors.Is(err, io.EOF) {
			// Replies to the commands read so far still go out.
			close(drain)
			select {
			case <-writeErr:
				writeDone = true
			case <-ctx.Done():
			}
		}
	case err = <-writeErr:
		writeDone = true
	}

	cancel()
	// Unblock pending I/O. The socket stays open until the session is detached.
	_ = conn.SetDeadline(time.Now())
	if !readDone {
		<-readErr
	}
	if !writeDone {
		<-writeErr
	}
	s.hub.Disconnect(session)

	switch {
	case err == nil, errors.Is(err, errBye), errors.Is(err, io.EOF),
		errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed):
		logger.Debug().Msg("connection closed")
	default:
		logger.Warn().Err(err).Msg("connection closed with error")
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn, session *core.Session) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), s.maxLine)

	for scanner.Scan() {
		closeConn, err := s.hub.Dispatch(ctx, session, proto.ParseLine(scanner.Text()))
		if err != nil {
			return err
		}
		if closeConn {
			return errBye
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read line: %w", err)
	}
	return io.EOF
}

// writeLoop renders queued events until ctx is done. Once drain is closed it
// writes whatever is still queued and returns.
func (s *Server) writeLoop(ctx context.Context, conn net.Conn, session *core.Session, drain <-chan struct{}) error {
	w := bufio.NewWriter(conn)
	for {
		select {
		case ev := <-session.Outbox:
			if err := writeLines(w, proto.Render(ev)); err != nil {
				return err
			}
			if err := flushPending(w, session); err != nil {
				return err
			}
		case <-drain:
			_ = conn.SetWriteDeadline(time.Now().Add(drainTimeout))
			return flushPending(w, session)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flushPending batches whatever is already queued into one flush.
func flushPending(w *bufio.Writer, session *core.Session) error {
	for {
		select {
		case ev := <-session.Outbox:
			if err := writeLines(w, proto.Render(ev)); err != nil {
				return err
			}
		default:
			if err := w.Flush(); err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			return nil
		}
	}
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line+proto.LineTerminator); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
	}
	return nil
}
