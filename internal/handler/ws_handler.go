package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/runner"
	"github.com/stemsi/exstem-runner/internal/service"
	ws "github.com/stemsi/exstem-runner/internal/websocket"
)

// outboxSize bounds the messages queued for one socket.
const outboxSize = 32

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Subscriber streams runner events for one run.
type Subscriber interface {
	Subscribe(testSessionID string) (*service.Subscription, func())
}

// WSHandler handles the run event stream.
type WSHandler struct {
	hub      Subscriber
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub Subscriber, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// RunStream godoc
// WS /ws/v1/runs/:id/stream
// Pushes runner events (countdown ticks included) and accepts run actions. The
// first message is the full view.
func (h *WSHandler) RunStream(c *gin.Context) {
	r := middleware.GetRun(c)
	if r == nil {
		response.Fail(c, http.StatusNotFound, response.ErrRunNotFound)
		return
	}
	id := r.TestSessionID()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("test_session_id", id).Logger()
	wsLog.Info().Msg("Run stream connected")

	sub, unsubscribe := h.hub.Subscribe(id)
	defer unsubscribe()

	// All writes go through the writer goroutine; gorilla allows one writer.
	outbox := make(chan interface{}, outboxSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg interface{}
			select {
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				msg = ws.RunnerResponse{Event: ws.EventRunner, Data: e}
			case m, ok := <-outbox:
				if !ok {
					return
				}
				msg = m
			}
			if err := ws.WriteTyped(conn, msg); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				// Unblock the reader.
				_ = conn.Close()
				return
			}
		}
	}()
	defer func() {
		close(outbox)
		<-done
		_ = ws.WriteClose(conn, websocket.CloseNormalClosure, "")
	}()

	outbox <- ws.ViewResponse{Event: ws.EventView, View: r.View()}

	ctx := context.WithoutCancel(c.Request.Context())
	for {
		var msg ws.RequestPayload
		var reply interface{}
		err := ws.ReadJSON(conn, &msg)
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case err == nil:
		case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
			// The frame was consumed; keep the connection.
			reply = ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: err.Error()}
		default:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch {
		case reply != nil:
		case msg.Action == ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		case msg.Action == ws.ActionView:
			reply = ws.ViewResponse{Event: ws.EventView, View: r.View()}
		default:
			reply = h.handleAction(ctx, wsLog, r, msg)
		}

		select {
		case outbox <- reply:
		case <-done:
			return
		}
	}
}

// handleAction performs msg and builds the ack or error reply.
func (h *WSHandler) handleAction(ctx context.Context, log zerolog.Logger, r *runner.Runner, msg ws.RequestPayload) interface{} {
	out, err := perform(ctx, r, msg)
	if err == nil {
		return ws.AckResponse{Event: ws.EventAck, Action: msg.Action, Result: out}
	}

	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("action", string(msg.Action)).Msg("Run action failed")
	}
	text := body.Message
	if text == "" {
		text = response.GetMessage(body.Code)
	}
	return ws.ErrorResponse{
		Event:   ws.EventError,
		Action:  msg.Action,
		Code:    string(body.Code),
		Error:   text,
		Details: body.Details,
	}
}
