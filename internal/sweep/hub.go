package sweep

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans sweep progress events out to connected websocket clients. A nil
// *Hub is a valid no-op publisher, so the sweep binary can run without one.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Register adds a client connection. The hub owns closing it on write
// failure.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// Unregister drops a client connection and closes it.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
}

// Publish sends one event to every connected client, dropping clients whose
// writes fail.
func (h *Hub) Publish(event interface{}) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("sweep hub: dropping client: %v", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}
