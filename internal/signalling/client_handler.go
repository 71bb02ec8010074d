package signalling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
)

type ClientHandler struct {
	relay          *Relay
	sessionHandler *SessionHandler
	pingInterval   time.Duration
}

func NewClientHandler(relay *Relay, sessionHandler *SessionHandler, pingInterval time.Duration) *ClientHandler {
	return &ClientHandler{
		relay:          relay,
		sessionHandler: sessionHandler,
		pingInterval:   pingInterval,
	}
}

// HandleSocket serves one client channel. Envelopes are handled in arrival
// order; the next one is read only after the previous one is done.
func (h *ClientHandler) HandleSocket(c *websocket.Conn) {
	clientID := c.Query("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	session := h.sessionHandler.RegisterClientSession(c, clientID)
	defer session.Cleanup()

	loop := NewConnectionLoop(session.Socket, session.SocketID, h.pingInterval)
	loop.Start()
	defer loop.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		var env api.Envelope
		if err := session.Socket.ReadJSON(&env); err != nil {
			if isDecodeError(err) {
				h.relay.sendError(session.Socket, api.ErrorCodeBadMessage, err)
				continue
			}
			slog.Debug("client disconnected", "socketID", session.SocketID, "error", err)
			return
		}
		h.relay.HandleEnvelope(ctx, session.SocketID, session.Socket, env)
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
