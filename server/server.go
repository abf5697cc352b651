// Package server streams per-frame draw statistics to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"meshview/gpu"
)

// MeshSummary describes the mesh being drawn.
type MeshSummary struct {
	Vertices int `json:"vertices"`
	Indices  int `json:"indices"`
	Parts    int `json:"parts"`
}

// Snapshot is the message sent to clients.
type Snapshot struct {
	Type      string        `json:"type"`
	Frame     uint64        `json:"frame"`
	FPS       float64       `json:"fps"`
	Draw      gpu.DrawStats `json:"draw"`
	Wireframe bool          `json:"wireframe"`
	Camera    [3]float32    `json:"camera"`
	Mesh      MeshSummary   `json:"mesh"`
}

const snapshotType = "frame_stats"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Hub keeps the latest snapshot and broadcasts it to connected clients on a
// fixed interval. Publish never blocks on the network, so it is safe to call
// from the render loop.
type Hub struct {
	interval time.Duration

	mu        sync.Mutex
	latest    Snapshot
	seq       uint64 // bumped by Publish
	broadcast uint64 // seq of the last broadcast snapshot

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex
}

func NewHub(interval time.Duration) *Hub {
	return &Hub{
		interval: interval,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Publish replaces the latest snapshot.
func (h *Hub) Publish(s Snapshot) {
	s.Type = snapshotType
	h.mu.Lock()
	h.latest = s
	h.seq++
	h.mu.Unlock()
}

// Latest returns the most recent snapshot and whether one was published.
func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.seq > 0
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Handler serves /ws (snapshot stream) and /stats (latest snapshot as JSON).
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/stats", h.handleStats)
	return mux
}

// Run serves on addr and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	slog.Info("stats server listening", "addr", addr)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.broadcastLatest()
		case err := <-errc:
			return errors.Wrap(err, "stats server")
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			h.closeClients()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, "stats server shutdown")
			}
			return nil
		}
	}
}

func (h *Hub) handleStats(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		slog.Warn("stats encode failed", "error", err)
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	h.clientsMu.Lock()
	h.clients[conn] = connMutex
	h.clientsMu.Unlock()
	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, conn)
		h.clientsMu.Unlock()
	}()

	if s, ok := h.Latest(); ok {
		connMutex.Lock()
		err := conn.WriteJSON(s)
		connMutex.Unlock()
		if err != nil {
			return
		}
	}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Debug("websocket client gone", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// broadcastLatest sends the latest snapshot to every client, unless it was
// already sent.
func (h *Hub) broadcastLatest() {
	h.mu.Lock()
	if h.seq == h.broadcast {
		h.mu.Unlock()
		return
	}
	s := h.latest
	h.broadcast = h.seq
	h.mu.Unlock()

	h.clientsMu.RLock()
	var failed []*websocket.Conn
	for client, mutex := range h.clients {
		mutex.Lock()
		err := client.WriteJSON(s)
		mutex.Unlock()
		if err != nil {
			slog.Warn("websocket write failed", "error", err)
			failed = append(failed, client)
		}
	}
	h.clientsMu.RUnlock()

	if len(failed) > 0 {
		h.clientsMu.Lock()
		for _, client := range failed {
			client.Close()
			delete(h.clients, client)
		}
		h.clientsMu.Unlock()
	}
}

func (h *Hub) closeClients() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client, mutex := range h.clients {
		mutex.Lock()
		client.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		mutex.Unlock()
		client.Close()
		delete(h.clients, client)
	}
}
