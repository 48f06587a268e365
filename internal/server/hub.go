package server

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub indexes live connections by id. It satisfies room.Sender: rooms
// address events to connection ids and never see sockets.
type Hub struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		conns:  make(map[string]*Connection),
	}
}

func (h *Hub) Add(c *Connection) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info().Str("conn_id", c.ID()).Int("total", n).Msg("Client connected")
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info().Str("conn_id", id).Int("total", n).Msg("Client disconnected")
}

func (h *Hub) Get(id string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send delivers one event to one connection. Events for connections that
// already went away are dropped; the registry holds the player's seat.
func (h *Hub) Send(connID, msgType string, payload any) {
	if c, ok := h.Get(connID); ok {
		c.Send(msgType, payload)
	}
}

// CloseAll force-closes every connection, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
