package session

import (
	"context"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/airmouse/internal/capture"
	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/gesture"
	"github.com/ayusman/airmouse/internal/pointer"
	"github.com/ayusman/airmouse/internal/render"
)

func TestRun_ReleasesWhenServiceStalls(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	reply, err := detector.ServiceReply(detector.PinchLandmarks(640, 480, image.Pt(320, 200), 10))
	if err != nil {
		t.Fatalf("ServiceReply: %v", err)
	}
	script := filepath.Join(t.TempDir(), "stall.sh")
	body := "printf '%s\\n' '" + string(reply) + "'\nexec sleep 60\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := detector.DefaultConfig()
	cfg.Python = "/bin/sh"
	cfg.Script = script
	cfg.StartupTimeout = 5 * time.Second
	cfg.FrameTimeout = 200 * time.Millisecond
	det, err := detector.NewMediaPipeDetector(cfg)
	if err != nil {
		t.Fatalf("NewMediaPipeDetector: %v", err)
	}

	frames := capture.BlankFrames(1, 640, 480)
	defer frames[0].Close()

	act := pointer.NewMock(1920, 1080)
	sink := render.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The service answers frame 1 with a pinch, then hangs on frame 2.
	sink.OnFrame(func(st render.Status) {
		if st.Warning != "" {
			cancel()
		}
	})

	s, err := New(Options{
		Camera:   capture.NewMockCamera(frames, true),
		Detector: det,
		Actuator: act,
		Sink:     sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the service stalled")
	}

	if act.Count(pointer.OpDown) != 1 || act.Count(pointer.OpUp) != 1 {
		t.Errorf("buttons = %v, want one press and one release", act.Buttons())
	}
	if statuses := sink.Statuses(); len(statuses) < 2 || statuses[0].Event != gesture.EventDragStart {
		t.Errorf("statuses = %+v, want a drag start before the stall", statuses)
	}
}
