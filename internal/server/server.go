// Package server exposes the browser control surface: live preview, status and session control.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/render"
)

//go:embed index.html
var indexHTML []byte

// Controller is the session supervisor the server drives.
type Controller interface {
	Start() error
	Stop()
	Running() bool
	Status() render.Status
	LastError() error
	Confidence() (float64, float64)
	SetConfidence(detection, tracking float64) error
}

// Config holds the server configuration.
type Config struct {
	Control Controller
	// Hub is the browser sink. It may be nil when frames are shown elsewhere.
	Hub *Hub
}

// Server represents the HTTP server for the airmouse control page.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Hub == nil {
		config.Hub = NewHub()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/stream", NewStreamHandler(s.config.Hub))

	if s.config.Control != nil {
		s.status = NewStatusHandler(s.config.Hub, s.config.Control)
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/status/ws", s.status)
		s.mux.HandleFunc("/api/session/start", s.handleStart)
		s.mux.HandleFunc("/api/session/stop", s.handleStop)
		s.mux.HandleFunc("/api/settings/confidence", s.handleConfidence)
	}

	s.mux.HandleFunc("/", s.handleIndex)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops background broadcasting.
func (s *Server) Close() {
	if s.status != nil {
		s.status.Close()
	}
}

type statusResponse struct {
	Running   bool          `json:"running"`
	Error     string        `json:"error,omitempty"`
	Detection float64       `json:"detection_confidence"`
	Tracking  float64       `json:"tracking_confidence"`
	Status    render.Status `json:"status"`
}

type confidenceRequest struct {
	Detection *float64 `json:"detection"`
	Tracking  *float64 `json:"tracking"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newStatusResponse(c Controller) statusResponse {
	if c == nil {
		return statusResponse{}
	}
	det, track := c.Confidence()
	resp := statusResponse{
		Running:   c.Running(),
		Detection: det,
		Tracking:  track,
		Status:    c.Status(),
	}
	if err := c.LastError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(s.config.Control))
}

// handleStart handles POST /api/session/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.config.Control.Start(); err != nil {
		slog.Error("start session", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, newStatusResponse(s.config.Control))
}

// handleStop handles POST /api/session/stop. It returns once the button is released
// and the camera is closed.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.config.Control.Stop()
	writeJSON(w, http.StatusOK, newStatusResponse(s.config.Control))
}

// handleConfidence handles GET and PUT /api/settings/confidence.
func (s *Server) handleConfidence(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		det, track := s.config.Control.Confidence()
		writeJSON(w, http.StatusOK, map[string]float64{"detection": det, "tracking": track})
	case http.MethodPut:
		var req confidenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}

		det, track := s.config.Control.Confidence()
		if req.Detection != nil {
			det = *req.Detection
		}
		if req.Tracking != nil {
			track = *req.Tracking
		}

		if err := s.config.Control.SetConfidence(det, track); err != nil {
			switch {
			case errors.Is(err, detector.ErrInvalidConfidence):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusConflict, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"detection": det, "tracking": track})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleIndex serves the control page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}
