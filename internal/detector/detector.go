package detector

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrInvalidConfidence is returned when a confidence threshold is outside [0,1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

	// ErrServiceTimeout is returned when the landmark service does not answer a frame in time.
	ErrServiceTimeout = errors.New("landmark service did not answer in time")
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Tunable is implemented by detectors whose confidence thresholds can change at runtime.
type Tunable interface {
	SetConfidence(detection, tracking float64) error
}

// Config holds configuration options for hand detection.
// The thresholds are forwarded to the landmark service untouched.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// Script is the path to the landmark service. Empty means search the usual locations.
	Script string

	// Python is the interpreter used to run Script. Empty means look for a venv, then python3.
	Python string

	// StartupTimeout bounds the first reply after the service starts, which
	// includes loading the model. Zero means 30s.
	StartupTimeout time.Duration

	// FrameTimeout bounds every later reply. Zero means 5s.
	FrameTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
	}
}

// PanicError wraps a value recovered from a panicking detector.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("detector panicked: %v", e.Value)
}

func validateConfidence(detection, tracking float64) error {
	if detection < 0 || detection > 1 {
		return fmt.Errorf("detection %f: %w", detection, ErrInvalidConfidence)
	}
	if tracking < 0 || tracking > 1 {
		return fmt.Errorf("tracking %f: %w", tracking, ErrInvalidConfidence)
	}
	return nil
}
