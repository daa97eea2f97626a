// Package realtime pushes session and inbox state to mounted views over WebSocket.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Hub tracks the live view connections, one per view ID.
type Hub struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]*websocket.Conn),
	}
}

// GetActive returns the connection of a view.
func (h *Hub) GetActive(viewID string) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active[viewID]
}

// Count returns the number of connected views.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// Register adds a connection for a view. A previous connection of the same
// view is closed.
func (h *Hub) Register(viewID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.active[viewID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "view replaced")
	}

	h.active[viewID] = conn
	slog.Info("View connected", "view_id", viewID)
}

// Unregister removes a connection if it is still the current one for the view.
func (h *Hub) Unregister(viewID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.active[viewID]; exists && current == conn {
		delete(h.active, viewID)
		slog.Info("View disconnected", "view_id", viewID)
	}
}

// CloseAll closes every connection, e.g. on shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.active {
		_ = conn.Close(websocket.StatusGoingAway, reason)
		slog.Info("View connection closed", "view_id", id, "reason", reason)
	}
	h.active = make(map[string]*websocket.Conn)
}
