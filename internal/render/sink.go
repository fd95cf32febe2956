// Package render presents annotated frames and session status.
package render

import (
	"errors"
	"image"
	"time"

	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/gesture"
	"gocv.io/x/gocv"
)

// ErrStopRequested is returned by a sink when the user asked to end the session,
// for example by pressing ESC in the preview window.
var ErrStopRequested = errors.New("stop requested")

// Status is the per-frame snapshot published by a session.
type Status struct {
	Session  string            `json:"session"`
	Frame    int               `json:"frame"`
	Hand     bool              `json:"hand"`
	Distance float64           `json:"distance"`
	State    gesture.DragState `json:"state"`
	Event    gesture.Event     `json:"event"`
	Target   image.Point       `json:"target"`
	Warning  string            `json:"warning,omitempty"`
	At       time.Time         `json:"at"`

	// Index and Thumb are fingertip positions in frame pixels.
	Index     image.Point             `json:"-"`
	Thumb     image.Point             `json:"-"`
	Landmarks *detector.HandLandmarks `json:"-"`
}

// Sink receives every annotated frame. Present is called from the session
// goroutine; implementations read by other goroutines must copy what they keep.
type Sink interface {
	Present(frame *gocv.Mat, st Status) error
	Close() error
}

// Multi fans frames out to several sinks.
type Multi []Sink

// Present forwards to every sink. A stop request from any sink wins over other errors.
func (m Multi) Present(frame *gocv.Mat, st Status) error {
	var errs []error
	stop := false
	for _, s := range m {
		if err := s.Present(frame, st); err != nil {
			if errors.Is(err, ErrStopRequested) {
				stop = true
				continue
			}
			errs = append(errs, err)
		}
	}
	if stop {
		return ErrStopRequested
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
