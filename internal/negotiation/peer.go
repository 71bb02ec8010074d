package negotiation

import (
	"context"
	"sync"

	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
)

// peerSession owns the peer connection of one session together with every
// goroutine reading from it. It is the session's domain.PeerHandle, so
// closing the session in the registry stops all of them.
type peerSession struct {
	id     string
	pc     PeerConnection
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	loops  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func newPeerSession(id string, pc PeerConnection) *peerSession {
	ctx, cancel := context.WithCancel(context.Background())
	metrics.ActivePeerConnections.Inc()
	return &peerSession{
		id:     id,
		pc:     pc,
		ctx:    ctx,
		cancel: cancel,
	}
}

// startLoop runs f on its own goroutine unless the session is already
// closed. Close waits for f to return.
func (p *peerSession) startLoop(f func(ctx context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.loops.Add(1)
	go func() {
		defer p.loops.Done()
		f(p.ctx)
	}()
	return true
}

func (p *peerSession) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.cancel()
		p.closeErr = p.pc.Close()
		p.loops.Wait()
		metrics.ActivePeerConnections.Dec()
	})
	return p.closeErr
}
