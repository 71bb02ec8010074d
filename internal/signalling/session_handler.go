package signalling

import (
	"log/slog"

	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
	"github.com/irdkwmnsb/webrtc-ingest/internal/sockets"
)

// ClientSession is one accepted client channel.
type ClientSession struct {
	Socket   sockets.Socket
	SocketID sockets.SocketID
	Cleanup  func()
}

type SessionHandler struct {
	relay *Relay
}

func NewSessionHandler(relay *Relay) *SessionHandler {
	return &SessionHandler{relay: relay}
}

func (h *SessionHandler) RegisterClientSession(conn sockets.Conn, clientID string) *ClientSession {
	socketID := sockets.SocketID(clientID)
	socket := sockets.NewSocket(conn)
	h.relay.Connect(socketID, socket)

	metrics.ActiveWebSocketConnections.Inc()
	metrics.WebSocketConnectionsTotal.Inc()

	cleanup := func() {
		metrics.ActiveWebSocketConnections.Dec()
		metrics.WebSocketDisconnectionsTotal.Inc()
		h.relay.Disconnect(socketID, socket)
		_ = socket.Close()
	}

	slog.Info("client session started", "socketID", socketID)

	return &ClientSession{
		Socket:   socket,
		SocketID: socketID,
		Cleanup:  cleanup,
	}
}
