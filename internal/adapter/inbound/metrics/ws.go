package metrics

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// wsHub broadcasts the latest Snapshot to every connected /live/ws
// client on each export tick, and sends the last known snapshot
// immediately on connect.
type wsHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	last  *Snapshot
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard this endpoint feeds runs locally alongside
			// mcpaudit; same-origin checks aren't meaningful here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *wsHub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("live/ws upgrade failed", "error", err)
			return
		}

		h.mu.Lock()
		h.conns[conn] = struct{}{}
		last := h.last
		h.mu.Unlock()

		if last != nil {
			if err := conn.WriteJSON(last); err != nil {
				h.remove(conn)
				return
			}
		}

		// Drain and discard client frames until the connection closes;
		// this endpoint is broadcast-only.
		go func() {
			defer h.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *wsHub) broadcast(snapshot Snapshot) {
	h.mu.Lock()
	h.last = &snapshot
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(snapshot); err != nil {
			h.remove(conn)
		}
	}
}
