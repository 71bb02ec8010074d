package sockets

import (
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// SocketID identifies a connected client. It is the client id the client
// announced, not the remote address, so a reconnect maps to the same entry.
type SocketID string

type Socket interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Ping() error
	Close() error
}

// Conn is the part of a WebSocket connection a Socket needs. Both
// *github.com/gofiber/contrib/websocket.Conn and *github.com/fasthttp/websocket.Conn
// satisfy it.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

const pingWriteTimeout = 5 * time.Second

type socketImpl struct {
	ws        Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewSocket(conn Conn) Socket {
	return &socketImpl{ws: conn}
}

// WriteJSON is safe for concurrent use; the underlying connection supports a single writer.
func (s *socketImpl) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

// ReadJSON must only be called from the goroutine that owns the connection.
func (s *socketImpl) ReadJSON(v any) error {
	return s.ws.ReadJSON(v)
}

func (s *socketImpl) Ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout))
}

func (s *socketImpl) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ws.Close()
	})
	return s.closeErr
}
