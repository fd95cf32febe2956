// Package app supervises airmouse sessions for the control surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/render"
	"github.com/ayusman/airmouse/internal/session"
)

// ErrNotTunable is returned by SetConfidence when the detector has no thresholds.
var ErrNotTunable = errors.New("detector does not accept confidence settings")

// SessionFactory builds a fresh session for each Start.
type SessionFactory func() (*session.Session, error)

// App starts and stops sessions on behalf of the HTTP server, tray, hotkey
// and signal handlers. Only one session runs at a time.
type App struct {
	newSession SessionFactory
	tuner      detector.Tunable
	logger     *slog.Logger

	// tuneMu serializes SetConfidence so the detector and the reported values agree.
	tuneMu sync.Mutex

	mu         sync.RWMutex
	current    *session.Session
	cancel     context.CancelFunc
	done       chan struct{}
	lastErr    error
	detection  float64
	tracking   float64
	subscriber func(running bool)
}

// New returns an idle App. tuner may be nil when the detector has no thresholds.
func New(factory SessionFactory, tuner detector.Tunable, detection, tracking float64) *App {
	done := make(chan struct{})
	close(done)
	return &App{
		newSession: factory,
		tuner:      tuner,
		logger:     slog.Default(),
		done:       done,
		detection:  detection,
		tracking:   tracking,
	}
}

// OnStateChange registers fn to be called when a session starts or ends.
func (a *App) OnStateChange(fn func(running bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscriber = fn
}

// Start launches a session. It is a no-op while one is running.
func (a *App) Start() error {
	a.mu.Lock()

	if a.cancel != nil {
		a.mu.Unlock()
		return nil
	}

	s, err := a.newSession()
	if err != nil {
		a.lastErr = err
		a.mu.Unlock()
		return fmt.Errorf("create session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.current = s
	a.cancel = cancel
	a.done = done
	a.lastErr = nil
	notify := a.subscriber
	a.mu.Unlock()

	a.logger.Info("session starting", "session", s.ID())
	if notify != nil {
		notify(true)
	}

	go a.run(ctx, s, done)
	return nil
}

func (a *App) run(ctx context.Context, s *session.Session, done chan struct{}) {
	err := s.Run(ctx)

	a.mu.Lock()
	a.lastErr = err
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = nil
	notify := a.subscriber
	close(done)
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("session ended with error", "session", s.ID(), "error", err)
	} else {
		a.logger.Info("session ended", "session", s.ID())
	}
	if notify != nil {
		notify(false)
	}
}

// Stop cancels the running session and waits for its cleanup to finish.
func (a *App) Stop() {
	a.mu.RLock()
	cancel := a.cancel
	done := a.done
	a.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cancel != nil
}

// Done is closed when the current session ends. It is already closed when idle.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// LastError returns the error that ended the most recent session.
func (a *App) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// Status returns the latest status of the current or most recent session.
func (a *App) Status() render.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return render.Status{}
	}
	return a.current.Status()
}

// Confidence returns the detection and tracking thresholds.
func (a *App) Confidence() (float64, float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detection, a.tracking
}

// SetConfidence forwards new thresholds to the detector. They take effect on
// the next detection, including in a running session.
func (a *App) SetConfidence(detection, tracking float64) error {
	if a.tuner == nil {
		return ErrNotTunable
	}

	a.tuneMu.Lock()
	defer a.tuneMu.Unlock()

	if err := a.tuner.SetConfidence(detection, tracking); err != nil {
		return err
	}

	a.mu.Lock()
	a.detection = detection
	a.tracking = tracking
	a.mu.Unlock()

	a.logger.Info("confidence updated", "detection", detection, "tracking", tracking)
	return nil
}
