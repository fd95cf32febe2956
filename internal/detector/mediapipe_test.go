package detector

import (
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// stallingService writes a shell service that answers the first frame with
// hand and then stops answering.
func stallingService(t *testing.T, hand HandLandmarks) Config {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	reply, err := ServiceReply(hand)
	if err != nil {
		t.Fatalf("ServiceReply: %v", err)
	}

	script := filepath.Join(t.TempDir(), "stall.sh")
	body := "printf '%s\\n' '" + string(reply) + "'\nexec sleep 60\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Python = "/bin/sh"
	cfg.Script = script
	cfg.StartupTimeout = 5 * time.Second
	cfg.FrameTimeout = 200 * time.Millisecond
	return cfg
}

func TestMediaPipeDetector_StalledService(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test")
	}

	d, err := NewMediaPipeDetector(stallingService(t, PinchLandmarks(640, 480, image.Pt(320, 200), 10)))
	if err != nil {
		t.Fatalf("NewMediaPipeDetector: %v", err)
	}
	defer d.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	hands, err := d.Detect(&frame)
	if err != nil || len(hands) != 1 {
		t.Fatalf("first frame = %d hands, %v; want 1 hand", len(hands), err)
	}

	start := time.Now()
	_, err = d.Detect(&frame)
	if !errors.Is(err, ErrServiceTimeout) {
		t.Fatalf("second frame error = %v, want ErrServiceTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("stalled frame took %s", elapsed)
	}

	// The stalled service is replaced on the next frame.
	hands, err = d.Detect(&frame)
	if err != nil || len(hands) != 1 {
		t.Errorf("after restart = %d hands, %v; want 1 hand", len(hands), err)
	}
}

func TestReplyTimeout(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		answered bool
		want     time.Duration
	}{
		{"startup default", Config{}, false, defaultStartupTimeout},
		{"frame default", Config{}, true, defaultFrameTimeout},
		{"startup configured", Config{StartupTimeout: time.Minute}, false, time.Minute},
		{"frame configured", Config{FrameTimeout: time.Second}, true, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &MediaPipeDetector{config: tt.config, answered: tt.answered}
			if got := d.replyTimeout(); got != tt.want {
				t.Errorf("replyTimeout() = %s, want %s", got, tt.want)
			}
		})
	}
}
