package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/utils"
)

// drainTimeout bounds the final writes after bye.
const drainTimeout = 5 * time.Second

var errBye = errors.New("client said bye")

// WSHandler upgrades HTTP connections and bridges them to core.Session.
// Every text frame carries one protocol line in each direction.
type WSHandler struct {
	hub        *core.Hub
	maxLine    int64
	outboxSize int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	maxLine := int64(cfg.MaxLineLength)
	if maxLine <= 0 {
		maxLine = proto.DefaultMaxLineLength
	}
	return &WSHandler{hub: hub, maxLine: maxLine, outboxSize: cfg.OutboxSize, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(h.maxLine)

	session := core.NewSession(utils.NewID(), r.RemoteAddr, h.outboxSize)
	h.hub.Connect(session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	drain := make(chan struct{})
	readErr := make(chan error, 1)
	writeErr := make(chan error, 1)
	go func() {
		readErr <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		writeErr <- h.writeLoop(ctx, conn, session, drain)
	}()

	readDone, writeDone := false, false
	select {
	case err = <-readErr:
		readDone = true
		if errors.Is(err, errBye) {
			// Replies to the frames read so far still go out.
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

	cancel() // stop the other goroutine
	if !readDone {
		<-readErr
	}
	if !writeDone {
		<-writeErr
	}
	h.hub.Disconnect(session)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errBye) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		line := strings.TrimRight(string(data), "\r\n")
		closeConn, err := h.hub.Dispatch(ctx, session, proto.ParseLine(line))
		if err != nil {
			return err
		}
		if closeConn {
			return errBye
		}
	}
}

// writeLoop sends one text frame per rendered line until ctx is done. Once
// drain is closed it sends whatever is still queued and returns.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, drain <-chan struct{}) error {
	for {
		select {
		case ev := <-session.Outbox:
			if err := h.writeEvent(ctx, conn, session, ev); err != nil {
				return err
			}
		case <-drain:
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			defer cancel()
			for {
				select {
				case ev := <-session.Outbox:
					if err := h.writeEvent(drainCtx, conn, session, ev); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeEvent(ctx context.Context, conn *websocket.Conn, session *core.Session, ev *core.Event) error {
	for _, line := range proto.Render(ev) {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws line")
			return err
		}
	}
	return nil
}
