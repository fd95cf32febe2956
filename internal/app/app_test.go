package app

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/airmouse/internal/capture"
	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/pointer"
	"github.com/ayusman/airmouse/internal/session"
)

type rig struct {
	camera   *capture.MockCamera
	detector *detector.MockDetector
	actuator *pointer.Mock
	created  int
}

func newRig(t *testing.T, loop bool, distance int) *rig {
	t.Helper()

	frames := capture.BlankFrames(2, 640, 480)
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks(640, 480, image.Pt(320, 200), distance)})

	return &rig{
		camera:   capture.NewMockCamera(frames, loop),
		detector: det,
		actuator: pointer.NewMock(1920, 1080),
	}
}

func (r *rig) factory() (*session.Session, error) {
	r.created++
	return session.New(session.Options{
		Camera:   r.camera,
		Detector: r.detector,
		Actuator: r.actuator,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestApp_StartStop(t *testing.T) {
	r := newRig(t, true, 30)
	a := New(r.factory, r.detector, 0.7, 0.7)

	if a.Running() {
		t.Fatal("new app should be idle")
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done() should be closed while idle")
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if r.created != 1 {
		t.Errorf("sessions created = %d, want 1", r.created)
	}

	waitFor(t, func() bool { return a.Status().Frame > 2 })
	if !a.Running() {
		t.Error("Running() = false during session")
	}

	a.Stop()

	if a.Running() {
		t.Error("Running() = true after Stop")
	}
	if err := a.LastError(); err != nil {
		t.Errorf("LastError() = %v, want nil after stop", err)
	}
	if r.actuator.Count(pointer.OpDown) != 1 || r.actuator.Count(pointer.OpUp) != 1 {
		t.Errorf("buttons = %v, want one press and one release", r.actuator.Buttons())
	}
	if r.camera.IsOpen() {
		t.Error("camera should be closed after Stop")
	}
}

func TestApp_Restart(t *testing.T) {
	r := newRig(t, true, 50)
	a := New(r.factory, nil, 0.7, 0.7)

	for i := 0; i < 2; i++ {
		if err := a.Start(); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		waitFor(t, func() bool { return a.Status().Frame > 0 })
		a.Stop()
	}
	if r.created != 2 {
		t.Errorf("sessions created = %d, want 2", r.created)
	}
}

func TestApp_SessionEndsOnItsOwn(t *testing.T) {
	r := newRig(t, false, 50)
	a := New(r.factory, nil, 0.7, 0.7)

	changes := make(chan bool, 2)
	a.OnStateChange(func(running bool) { changes <- running })

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}

	if !errors.Is(a.LastError(), session.ErrCaptureFailed) {
		t.Errorf("LastError() = %v, want ErrCaptureFailed", a.LastError())
	}
	if a.Running() {
		t.Error("Running() = true after session ended")
	}
	if got := []bool{<-changes, <-changes}; !got[0] || got[1] {
		t.Errorf("state changes = %v, want [true false]", got)
	}

	// Stop on an ended session returns immediately.
	a.Stop()
}

func TestApp_FactoryError(t *testing.T) {
	boom := errors.New("no camera")
	a := New(func() (*session.Session, error) { return nil, boom }, nil, 0.7, 0.7)

	if err := a.Start(); !errors.Is(err, boom) {
		t.Errorf("Start() = %v, want %v", err, boom)
	}
	if a.Running() {
		t.Error("Running() should be false")
	}
	if !errors.Is(a.LastError(), boom) {
		t.Errorf("LastError() = %v", a.LastError())
	}
}

func TestApp_SetConfidence(t *testing.T) {
	t.Run("forwards to detector", func(t *testing.T) {
		det := detector.NewMockDetector()
		a := New(nil, det, 0.7, 0.7)

		if err := a.SetConfidence(0.5, 0.6); err != nil {
			t.Fatalf("SetConfidence: %v", err)
		}
		if d, tr := det.Confidence(); d != 0.5 || tr != 0.6 {
			t.Errorf("detector confidence = %f/%f, want 0.5/0.6", d, tr)
		}
		if d, tr := a.Confidence(); d != 0.5 || tr != 0.6 {
			t.Errorf("Confidence() = %f/%f, want 0.5/0.6", d, tr)
		}
	})

	t.Run("rejects out of range", func(t *testing.T) {
		a := New(nil, detector.NewMockDetector(), 0.7, 0.7)
		if err := a.SetConfidence(-1, 0.5); !errors.Is(err, detector.ErrInvalidConfidence) {
			t.Errorf("expected ErrInvalidConfidence, got %v", err)
		}
		if d, _ := a.Confidence(); d != 0.7 {
			t.Errorf("rejected value should not be stored, got %f", d)
		}
	})

	t.Run("no tuner", func(t *testing.T) {
		a := New(nil, nil, 0.7, 0.7)
		if err := a.SetConfidence(0.5, 0.5); !errors.Is(err, ErrNotTunable) {
			t.Errorf("expected ErrNotTunable, got %v", err)
		}
	})
}

// slowTuner applies each value at once but lingers inside the first call.
type slowTuner struct {
	mu        sync.Mutex
	detection float64
	calls     int
	entered   chan struct{}
}

func (s *slowTuner) SetConfidence(detection, tracking float64) error {
	s.mu.Lock()
	s.detection = detection
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first {
		close(s.entered)
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func TestApp_SetConfidenceConcurrent(t *testing.T) {
	tuner := &slowTuner{entered: make(chan struct{})}
	a := New(nil, tuner, 0.7, 0.7)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.SetConfidence(0.1, 0.7)
	}()

	<-tuner.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.SetConfidence(0.2, 0.7)
	}()
	wg.Wait()

	tuner.mu.Lock()
	applied := tuner.detection
	tuner.mu.Unlock()

	if got, _ := a.Confidence(); got != applied {
		t.Errorf("Confidence() = %f but the detector runs with %f", got, applied)
	}
}
