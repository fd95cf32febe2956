// Package session runs the capture, detect, control and actuate loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/airmouse/internal/capture"
	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/gesture"
	"github.com/ayusman/airmouse/internal/pointer"
	"github.com/ayusman/airmouse/internal/render"
	"github.com/google/uuid"
)

var (
	// ErrCaptureFailed ends a session whose camera could not be opened or read.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrScreenSize ends a session before any frame when the screen size is unknown.
	ErrScreenSize = errors.New("cannot determine screen size")
)

// Options wires a session to its collaborators.
type Options struct {
	Camera   capture.Camera
	Detector detector.Detector
	Actuator pointer.Actuator
	Sink     render.Sink

	Thresholds   gesture.Thresholds
	MoveDuration time.Duration

	Logger *slog.Logger
	// OnStatus, if set, is called with every published status.
	OnStatus func(render.Status)
}

// Session owns one run of the frame loop. It is not reusable.
type Session struct {
	id     string
	opts   Options
	logger *slog.Logger

	controller *gesture.Controller
	frames     int

	mu     sync.RWMutex
	status render.Status
}

// New validates opts and returns a session with a fresh ID.
func New(opts Options) (*Session, error) {
	if opts.Camera == nil || opts.Detector == nil || opts.Actuator == nil {
		return nil, errors.New("session needs a camera, a detector and an actuator")
	}
	if opts.Sink == nil {
		opts.Sink = render.Multi{}
	}
	if opts.Thresholds == (gesture.Thresholds{}) {
		opts.Thresholds = gesture.DefaultThresholds()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		opts:   opts,
		logger: opts.Logger.With("session", id),
		status: render.Status{Session: id},
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns the most recently published frame status.
func (s *Session) Status() render.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run processes frames until ctx is cancelled, a sink asks to stop, or a fatal
// error occurs. Cancellation and stop requests return nil.
//
// On every exit, including a panic, a held button is released exactly once
// before the camera and then the detector are closed.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
			s.logger.Error("session panicked", "panic", r)
		}
		s.cleanup()
	}()

	w, h, err := s.opts.Actuator.ScreenSize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScreenSize, err)
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrScreenSize, w, h)
	}
	s.controller = gesture.NewController(gesture.ScreenGeometry{Width: w, Height: h}, s.opts.Thresholds)

	if err := s.opts.Camera.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	s.logger.Info("session started", "screen_width", w, "screen_height", h,
		"enter", s.opts.Thresholds.Enter, "exit", s.opts.Thresholds.Exit)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", "frames", s.frames)
			return nil
		default:
		}

		if err := s.step(); err != nil {
			if errors.Is(err, render.ErrStopRequested) {
				s.logger.Info("session stop requested", "frames", s.frames)
				return nil
			}
			s.logger.Error("session failed", "frames", s.frames, "error", err)
			return err
		}
	}
}

// step handles one frame. Only capture errors and stop requests are returned.
func (s *Session) step() error {
	frame, err := s.opts.Camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	defer frame.Close()

	s.frames++
	capture.Mirror(frame)

	st := render.Status{
		Session: s.id,
		Frame:   s.frames,
		At:      time.Now(),
	}

	out := detector.Classify(s.opts.Detector, frame)
	if out.Kind == detector.Failed {
		s.logger.Warn("hand detection failed", "frame", s.frames, "error", out.Err)
		st.Warning = fmt.Sprintf("detection failed: %v", out.Err)
		st.State = s.controller.State()
		st.Target, _ = s.controller.Previous()
	} else {
		hand := out.Hand()
		d := s.controller.Evaluate(hand, gesture.FrameGeometry{Width: frame.Cols(), Height: frame.Rows()})
		if d.Hand {
			if err := s.actuate(&d); err != nil {
				s.logger.Warn("pointer action failed", "frame", s.frames, "event", d.Event, "error", err)
				st.Warning = err.Error()
				s.controller.Revert(&d)
			}
		}
		st.Hand = d.Hand
		st.Index = d.Index
		st.Thumb = d.Thumb
		st.Target = d.Target
		st.Distance = d.Distance
		st.State = d.State
		st.Event = d.Event
		st.Landmarks = hand
	}

	render.Annotate(frame, st)
	s.publish(st)

	if err := s.opts.Sink.Present(frame, st); err != nil {
		if errors.Is(err, render.ErrStopRequested) {
			return err
		}
		s.logger.Warn("sink failed", "frame", s.frames, "error", err)
	}
	return nil
}

// actuate moves the pointer and performs the decision's button action.
func (s *Session) actuate(d *gesture.Decision) error {
	if err := s.opts.Actuator.MoveTo(d.Target.X, d.Target.Y, s.opts.MoveDuration); err != nil {
		return fmt.Errorf("move pointer: %w", err)
	}

	switch d.Event {
	case gesture.EventDragStart:
		if err := s.opts.Actuator.ButtonDown(); err != nil {
			return fmt.Errorf("press button: %w", err)
		}
	case gesture.EventDragEnd:
		if err := s.opts.Actuator.ButtonUp(); err != nil {
			return fmt.Errorf("release button: %w", err)
		}
	}
	return nil
}

func (s *Session) publish(st render.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	if s.opts.OnStatus != nil {
		s.opts.OnStatus(st)
	}
}

func (s *Session) cleanup() {
	if s.controller != nil && s.controller.ForceRelease() {
		if err := s.opts.Actuator.ButtonUp(); err != nil {
			s.logger.Error("release button on exit", "error", err)
		} else {
			s.logger.Info("released drag on exit")
		}
	}
	if err := s.opts.Camera.Close(); err != nil {
		s.logger.Error("close camera", "error", err)
	}
	if err := s.opts.Detector.Close(); err != nil {
		s.logger.Error("close detector", "error", err)
	}
}
