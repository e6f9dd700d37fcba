package websocket

import (
	"context"
	"sync"

	"textbook-rag-be/internal/pkg/logger"
)

// Hub tracks live chat connections so they can be counted and closed on shutdown.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	mu     sync.RWMutex
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     log,
	}
}

// Run owns registration until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("HTTP", "Chat socket registered", map[string]interface{}{"remote": client.remote})

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
			h.logger.Debug("HTTP", "Chat socket unregistered", map[string]interface{}{"remote": client.remote})

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.stop()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
