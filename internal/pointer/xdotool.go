package pointer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec and folds stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out", name)
	}
	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, s)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Xdotool drives an X display by shelling out to xdotool. It works against
// a virtual display where robotgo's cgo bindings are unavailable.
type Xdotool struct {
	run     Runner
	timeout time.Duration
	sleep   func(time.Duration)
}

// NewXdotool returns an actuator using run, or ExecRunner when run is nil.
func NewXdotool(run Runner) *Xdotool {
	if run == nil {
		run = ExecRunner
	}
	return &Xdotool{
		run:     run,
		timeout: 2 * time.Second,
		sleep:   time.Sleep,
	}
}

func (x *Xdotool) exec(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), x.timeout)
	defer cancel()
	return x.run(ctx, "xdotool", args...)
}

// ScreenSize parses `xdotool getdisplaygeometry`.
func (x *Xdotool) ScreenSize() (int, int, error) {
	out, err := x.exec("getdisplaygeometry")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrNoScreen, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected geometry %q", ErrNoScreen, strings.TrimSpace(string(out)))
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: unexpected geometry %q", ErrNoScreen, strings.TrimSpace(string(out)))
	}
	return w, h, nil
}

// Location parses `xdotool getmouselocation --shell`.
func (x *Xdotool) Location() (int, int, error) {
	out, err := x.exec("getmouselocation", "--shell")
	if err != nil {
		return 0, 0, err
	}
	var px, py int
	var seenX, seenY bool
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			px, seenX = n, true
		case "Y":
			py, seenY = n, true
		}
	}
	if !seenX || !seenY {
		return 0, 0, fmt.Errorf("unexpected mouse location %q", strings.TrimSpace(string(out)))
	}
	return px, py, nil
}

// MoveTo animates the cursor to (x, y).
func (x *Xdotool) MoveTo(tx, ty int, d time.Duration) error {
	fx, fy, err := x.Location()
	if err != nil {
		fx, fy = tx, ty
	}
	return animate(image.Point{X: fx, Y: fy}, image.Point{X: tx, Y: ty}, d, func(px, py int) error {
		_, err := x.exec("mousemove", strconv.Itoa(px), strconv.Itoa(py))
		return err
	}, x.sleep)
}

// ButtonDown presses button 1.
func (x *Xdotool) ButtonDown() error {
	_, err := x.exec("mousedown", "1")
	return err
}

// ButtonUp releases button 1.
func (x *Xdotool) ButtonUp() error {
	_, err := x.exec("mouseup", "1")
	return err
}
