package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/gesture"
	"github.com/ayusman/airmouse/internal/render"
	"gocv.io/x/gocv"
)

type fakeControl struct {
	mu        sync.Mutex
	running   bool
	starts    int
	stops     int
	startErr  error
	lastErr   error
	status    render.Status
	detection float64
	tracking  float64
	tunable   bool
}

func newFakeControl() *fakeControl {
	return &fakeControl{detection: 0.7, tracking: 0.7, tunable: true}
}

func (f *fakeControl) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeControl) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeControl) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeControl) Status() render.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeControl) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *fakeControl) Confidence() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detection, f.tracking
}

func (f *fakeControl) SetConfidence(detection, tracking float64) error {
	if !f.tunable {
		return errors.New("not tunable")
	}
	if detection < 0 || detection > 1 || tracking < 0 || tracking > 1 {
		return detector.ErrInvalidConfidence
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detection, f.tracking = detection, tracking
	return nil
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/health", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			if rec := do(t, s, method, "/api/health", ""); rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	if rec := do(t, s, http.MethodGet, "/api/nonexistent", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_Index(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	rec := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/stream") {
		t.Error("control page should embed the preview stream")
	}
}

func TestServer_ControlRoutesNeedController(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	if rec := do(t, s, http.MethodPost, "/api/session/start", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a controller, got %d", rec.Code)
	}
}

func TestServer_Session(t *testing.T) {
	ctl := newFakeControl()
	s := New(Config{Control: ctl})
	defer s.Close()

	t.Run("start", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/session/start", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
		}
		var resp statusResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Running {
			t.Error("expected running after start")
		}
	})

	t.Run("start requires POST", func(t *testing.T) {
		if rec := do(t, s, http.MethodGet, "/api/session/start", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("stop", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/session/stop", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ctl.Running() || ctl.stops != 1 {
			t.Errorf("expected one stop, got running=%v stops=%d", ctl.Running(), ctl.stops)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		ctl.startErr = errors.New("capture failed: no device")
		rec := do(t, s, http.MethodPost, "/api/session/start", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "no device") {
			t.Errorf("error body should carry the cause: %s", rec.Body.String())
		}
		ctl.startErr = nil
	})
}

func TestServer_Status(t *testing.T) {
	ctl := newFakeControl()
	ctl.running = true
	ctl.lastErr = errors.New("fail-safe triggered")
	ctl.status = render.Status{Session: "s-1", Frame: 12, Hand: true, Distance: 33, State: gesture.Dragging}

	s := New(Config{Control: ctl})
	defer s.Close()

	rec := do(t, s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{`"running":true`, `"state":"Dragging"`, `"frame":12`, `"detection_confidence":0.7`, `"error":"fail-safe triggered"`} {
		if !strings.Contains(body, want) {
			t.Errorf("status body %s missing %s", body, want)
		}
	}
}

func TestServer_Confidence(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		tunable   bool
		wantCode  int
		wantDet   float64
		wantTrack float64
	}{
		{"both", `{"detection":0.5,"tracking":0.6}`, true, http.StatusOK, 0.5, 0.6},
		{"detection only", `{"detection":0.4}`, true, http.StatusOK, 0.4, 0.7},
		{"out of range", `{"detection":1.5}`, true, http.StatusBadRequest, 0.7, 0.7},
		{"invalid json", `{detection`, true, http.StatusBadRequest, 0.7, 0.7},
		{"not tunable", `{"detection":0.5}`, false, http.StatusConflict, 0.7, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newFakeControl()
			ctl.tunable = tt.tunable
			s := New(Config{Control: ctl})
			defer s.Close()

			rec := do(t, s, http.MethodPut, "/api/settings/confidence", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if d, tr := ctl.Confidence(); d != tt.wantDet || tr != tt.wantTrack {
				t.Errorf("confidence = %f/%f, want %f/%f", d, tr, tt.wantDet, tt.wantTrack)
			}
		})
	}

	t.Run("get", func(t *testing.T) {
		s := New(Config{Control: newFakeControl()})
		defer s.Close()

		rec := do(t, s, http.MethodGet, "/api/settings/confidence", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"detection":0.7`) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHub(t *testing.T) {
	hub := NewHub()

	if data, _, version := hub.Latest(); data != nil || version != 0 {
		t.Fatal("new hub should be empty")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if err := hub.Present(&frame, render.Status{Frame: 1}); err != nil {
		t.Fatalf("Present: %v", err)
	}
	data, st, version := hub.Latest()
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("expected JPEG bytes")
	}
	if st.Frame != 1 || version != 1 {
		t.Errorf("status frame %d version %d, want 1/1", st.Frame, version)
	}

	// A frameless update keeps the last picture.
	if err := hub.Present(nil, render.Status{Frame: 2}); err != nil {
		t.Fatalf("Present: %v", err)
	}
	again, st, version := hub.Latest()
	if len(again) != len(data) || st.Frame != 2 || version != 2 {
		t.Errorf("unexpected hub state: %d bytes, frame %d, version %d", len(again), st.Frame, version)
	}
}
