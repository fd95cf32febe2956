package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the server only listens on loopback
	},
}

const writeWait = time.Second

// StatusHandler pushes status snapshots to websocket clients.
type StatusHandler struct {
	hub      *Hub
	control  Controller
	interval time.Duration
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	stop     chan struct{}
	once     sync.Once
}

// NewStatusHandler starts broadcasting hub updates to connected clients.
func NewStatusHandler(hub *Hub, control Controller) *StatusHandler {
	h := &StatusHandler{
		hub:      hub,
		control:  control,
		interval: streamInterval,
		clients:  make(map[*websocket.Conn]bool),
		stop:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles websocket upgrade requests.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Send the current state right away so a new page is not blank.
	if err := h.send(conn, h.snapshot()); err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Close stops the broadcast loop.
func (h *StatusHandler) Close() {
	h.once.Do(func() { close(h.stop) })
}

func (h *StatusHandler) snapshot() statusResponse {
	resp := newStatusResponse(h.control)
	if _, st, version := h.hub.Latest(); version > 0 {
		resp.Status = st
	}
	return resp
}

func (h *StatusHandler) send(conn *websocket.Conn, msg statusResponse) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (h *StatusHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var sent uint64
	var wasRunning bool
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		idle := len(h.clients) == 0
		h.mu.RUnlock()
		if idle {
			continue
		}

		_, _, version := h.hub.Latest()
		running := h.control != nil && h.control.Running()
		if version == sent && running == wasRunning {
			continue
		}
		sent, wasRunning = version, running

		msg := h.snapshot()

		h.mu.RLock()
		conns := make([]*websocket.Conn, 0, len(h.clients))
		for conn := range h.clients {
			conns = append(conns, conn)
		}
		h.mu.RUnlock()

		for _, conn := range conns {
			if err := h.send(conn, msg); err != nil {
				slog.Debug("websocket write failed", "error", err)
				conn.Close()
			}
		}
	}
}
