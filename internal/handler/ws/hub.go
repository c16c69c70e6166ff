package ws

import (
	"sync"

	"github.com/lbertin/causerie/internal/model/wire"
	"github.com/lbertin/causerie/internal/service/session"
)

// Hub tracks every live connection, logged in or not, so the router can
// broadcast to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[session.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[session.Conn]struct{})}
}

func (h *Hub) register(c session.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c session.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Broadcast enqueues env on every live connection. Deliveries are independent:
// one slow peer cannot hold the others back.
func (h *Hub) Broadcast(env wire.Outbound) {
	h.mu.RLock()
	clients := make([]session.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(env)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
