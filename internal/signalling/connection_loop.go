package signalling

import (
	"log/slog"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/sockets"
	"github.com/irdkwmnsb/webrtc-ingest/internal/utils"
)

// ConnectionLoop keeps a client channel alive with WebSocket pings and
// closes the socket once a ping can no longer be written.
type ConnectionLoop struct {
	socket   sockets.Socket
	socketID sockets.SocketID
	interval time.Duration
	timer    utils.IntervalTimer
}

func NewConnectionLoop(socket sockets.Socket, socketID sockets.SocketID, interval time.Duration) *ConnectionLoop {
	return &ConnectionLoop{
		socket:   socket,
		socketID: socketID,
		interval: interval,
	}
}

func (l *ConnectionLoop) Start() {
	if l.interval <= 0 {
		return
	}
	l.timer = utils.SetIntervalTimer(l.interval, l.ping)
}

func (l *ConnectionLoop) Stop() {
	if l.timer != nil {
		l.timer.Stop()
	}
}

func (l *ConnectionLoop) ping() {
	if err := l.socket.Ping(); err != nil {
		slog.Debug("failed to ping client", "socketID", l.socketID, "error", err)
		_ = l.socket.Close()
	}
}
