package server

import (
	"fmt"
	"sync"

	"github.com/ayusman/airmouse/internal/render"
	"gocv.io/x/gocv"
)

// Hub is the browser sink. It keeps the latest annotated frame as JPEG and
// the latest status for the stream and websocket handlers.
type Hub struct {
	mu      sync.RWMutex
	jpeg    []byte
	status  render.Status
	version uint64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Present encodes frame and stores it with st. It never blocks on clients.
func (h *Hub) Present(frame *gocv.Mat, st render.Status) error {
	var data []byte
	if frame != nil && !frame.Empty() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
		if err != nil {
			return fmt.Errorf("encode preview: %w", err)
		}
		data = append([]byte(nil), buf.GetBytes()...)
		buf.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if data != nil {
		h.jpeg = data
	}
	h.status = st
	h.version++
	return nil
}

// Close keeps the last frame so a finished session still shows its final state.
func (h *Hub) Close() error {
	return nil
}

// Latest returns the newest JPEG, its status and a version that grows with every frame.
func (h *Hub) Latest() ([]byte, render.Status, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jpeg, h.status, h.version
}
