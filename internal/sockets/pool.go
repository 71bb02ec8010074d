package sockets

import (
	"sync"
)

// SocketPool binds client ids to their live sockets, at most one per id.
type SocketPool struct {
	mutex   sync.Mutex
	sockets map[SocketID]Socket
}

func NewSocketPool() *SocketPool {
	return &SocketPool{
		sockets: make(map[SocketID]Socket),
	}
}

// AddSocket binds id to soc. A socket previously bound to id is closed and
// returned so the caller can tear down whatever it owned.
func (p *SocketPool) AddSocket(id SocketID, soc Socket) Socket {
	p.mutex.Lock()
	old, contains := p.sockets[id]
	p.sockets[id] = soc
	p.mutex.Unlock()

	if contains && old != soc {
		_ = old.Close()
		return old
	}
	return nil
}

func (p *SocketPool) GetSocket(id SocketID) Socket {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if conn, contains := p.sockets[id]; contains {
		return conn
	}
	return nil
}

// RemoveSocket unbinds id only while it is still bound to soc, so a
// disconnecting socket never removes the connection that replaced it.
func (p *SocketPool) RemoveSocket(id SocketID, soc Socket) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if current, contains := p.sockets[id]; contains && current == soc {
		delete(p.sockets, id)
		return true
	}
	return false
}

// Sole returns the only bound socket, or false when zero or several are bound.
func (p *SocketPool) Sole() (SocketID, Socket, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if len(p.sockets) != 1 {
		return "", nil, false
	}
	for id, conn := range p.sockets {
		return id, conn, true
	}
	return "", nil, false
}

func (p *SocketPool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.sockets)
}

func (p *SocketPool) Close() {
	p.mutex.Lock()
	conns := make([]Socket, 0, len(p.sockets))
	for id, conn := range p.sockets {
		conns = append(conns, conn)
		delete(p.sockets, id)
	}
	p.mutex.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
