package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// idleShutdown is how long the service may sit unused before it is stopped.
	idleShutdown = 30 * time.Second

	defaultStartupTimeout = 30 * time.Second
	defaultFrameTimeout   = 5 * time.Second
	shutdownGrace         = 2 * time.Second
)

// MediaPipeDetector implements Detector using a MediaPipe Hands subprocess.
//
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes; the
// service answers each frame with one JSON line {"hands": [...]}.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	answered  bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The subprocess is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	if err := validateConfidence(config.MinConfidence, config.MinTrackingConf); err != nil {
		return nil, err
	}

	script := config.Script
	if script == "" {
		script = findMediaPipeScript()
	}
	if script == "" {
		return nil, fmt.Errorf("mediapipe_service.py not found")
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("landmark service: %w", err)
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	line, err := d.exchange(buf.GetBytes())
	if err != nil {
		d.abort()
		return nil, err
	}

	hands, err := parseResponse([]byte(line), d.config.MaxHands)
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return hands, nil
}

// SetConfidence changes the thresholds forwarded to the service.
// A running service is stopped and restarted with the new values on the next frame.
func (d *MediaPipeDetector) SetConfidence(detection, tracking float64) error {
	if err := validateConfidence(detection, tracking); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config.MinConfidence == detection && d.config.MinTrackingConf == tracking {
		return nil
	}
	d.config.MinConfidence = detection
	d.config.MinTrackingConf = tracking
	return d.shutdown()
}

// Close shuts down the subprocess.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// exchange sends one length-prefixed JPEG and reads the service's reply line.
// An exchange that misses its deadline fails with ErrServiceTimeout; the
// caller aborts the service, which unblocks the pending write or read.
func (d *MediaPipeDetector) exchange(jpeg []byte) (string, error) {
	msg := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(jpeg)), uint32(len(jpeg)))
	msg = append(msg, jpeg...)

	type reply struct {
		line string
		err  error
	}
	replies := make(chan reply, 1)
	stdin, stdout := d.stdin, d.stdout
	go func() {
		if _, err := stdin.Write(msg); err != nil {
			replies <- reply{err: fmt.Errorf("send frame: %w", err)}
			return
		}
		line, err := stdout.ReadString('\n')
		if err != nil {
			err = fmt.Errorf("read response: %w", err)
		}
		replies <- reply{line, err}
	}()

	timeout := d.replyTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-replies:
		if r.err != nil {
			return "", r.err
		}
		d.answered = true
		return r.line, nil
	case <-timer.C:
		return "", fmt.Errorf("%w after %s", ErrServiceTimeout, timeout)
	}
}

func (d *MediaPipeDetector) replyTimeout() time.Duration {
	if !d.answered {
		if d.config.StartupTimeout > 0 {
			return d.config.StartupTimeout
		}
		return defaultStartupTimeout
	}
	if d.config.FrameTimeout > 0 {
		return d.config.FrameTimeout
	}
	return defaultFrameTimeout
}

func (d *MediaPipeDetector) args() []string {
	return []string{
		d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	}
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := d.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.args()...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.answered = false
	d.lastUsed = time.Now()

	slog.Debug("landmark service started", "script", d.script, "pid", d.cmd.Process.Pid)
	return nil
}

// abort tears down a service that broke or stalled mid-frame so the next frame restarts it.
func (d *MediaPipeDetector) abort() {
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	if err := d.shutdown(); err != nil {
		slog.Debug("landmark service exited", "error", err)
	}
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	// The service exits when stdin closes; one that does not is killed.
	cmd := d.cmd
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var err error
	select {
	case err = <-exited:
	case <-time.After(shutdownGrace):
		_ = cmd.Process.Kill()
		err = <-exited
	}

	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if time.Since(d.lastUsed) < idleShutdown {
			return
		}
		if err := d.shutdown(); err != nil {
			slog.Debug("idle landmark service exited", "error", err)
		}
	})
}

func parseResponse(line []byte, maxHands int) ([]HandLandmarks, error) {
	var response struct {
		Hands []wireHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", response.Error)
	}

	hands := response.Hands
	if maxHands > 0 && len(hands) > maxHands {
		hands = hands[:maxHands]
	}

	result := make([]HandLandmarks, 0, len(hands))
	for _, h := range hands {
		if len(h.Points) < NumLandmarks {
			return nil, fmt.Errorf("hand has %d landmarks, want %d", len(h.Points), NumLandmarks)
		}
		result = append(result, h.landmarks())
	}
	return result, nil
}

// searchPaths lists where the landmark service and its virtualenv may live:
// the working directory, its parent, next to the executable, and ~/.airmouse.
func searchPaths(rel string) []string {
	paths := []string{rel, filepath.Join("..", rel)}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".airmouse", rel))
	}
	return paths
}

// firstExisting returns the absolute form of the first path that exists, or "".
func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

func findMediaPipeScript() string {
	return firstExisting(searchPaths(filepath.Join("scripts", "mediapipe_service.py")))
}

func findVenvPython() string {
	return firstExisting(searchPaths(filepath.Join("venv", "bin", "python")))
}

// wireHand is one hand as reported by the landmark service.
type wireHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h wireHand) landmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	copy(lm.Points[:], h.Points)
	return lm
}
