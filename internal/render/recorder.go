package render

import (
	"sync"

	"gocv.io/x/gocv"
)

// Recorder is a test sink that keeps every status it is shown.
type Recorder struct {
	mu       sync.Mutex
	statuses []Status
	stopAt   int
	err      error
	closed   int
	onFrame  func(Status)
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// StopAfter makes Present return ErrStopRequested on the n-th frame.
func (r *Recorder) StopAfter(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAt = n
}

// SetError makes every Present call fail with err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// OnFrame registers fn to run inside each Present call.
func (r *Recorder) OnFrame(fn func(Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = fn
}

func (r *Recorder) Present(_ *gocv.Mat, st Status) error {
	r.mu.Lock()
	r.statuses = append(r.statuses, st)
	n := len(r.statuses)
	stop := r.stopAt > 0 && n >= r.stopAt
	err := r.err
	fn := r.onFrame
	r.mu.Unlock()

	if fn != nil {
		fn(st)
	}
	if stop {
		return ErrStopRequested
	}
	return err
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

// Statuses returns a copy of every status presented.
func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// Closed returns how many times Close was called.
func (r *Recorder) Closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
