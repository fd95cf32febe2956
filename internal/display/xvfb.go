// Package display runs a virtual X display for headless sessions.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotReady is returned when Xvfb does not create its socket in time.
var ErrNotReady = errors.New("virtual display did not become ready")

// process is the part of os.Process that Xvfb needs.
type process interface {
	Kill() error
	Wait() error
}

type execProcess struct{ cmd *exec.Cmd }

func (p execProcess) Kill() error { return p.cmd.Process.Kill() }
func (p execProcess) Wait() error { return p.cmd.Wait() }

func startProcess(name string, args ...string) (process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd: cmd}, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if s := strings.TrimSpace(string(out)); s != "" {
			return fmt.Errorf("%s: %w: %s", name, err, s)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Xvfb is a virtual X server scoped to one process lifetime.
// Start sets DISPLAY and XAUTHORITY; Stop restores them.
type Xvfb struct {
	Display  string
	Width    int
	Height   int
	AuthFile string
	// SocketDir is where X servers create their sockets.
	SocketDir string
	Timeout   time.Duration

	start func(name string, args ...string) (process, error)
	run   func(ctx context.Context, name string, args ...string) error

	proc    process
	prevEnv map[string]*string
}

// NewXvfb returns a display on name (":99") of width x height.
func NewXvfb(name string, width, height int) *Xvfb {
	home, _ := os.UserHomeDir()
	return &Xvfb{
		Display:   name,
		Width:     width,
		Height:    height,
		AuthFile:  filepath.Join(home, ".Xauthority"),
		SocketDir: "/tmp/.X11-unix",
		Timeout:   5 * time.Second,
		start:     startProcess,
		run:       runCommand,
	}
}

func (x *Xvfb) socketPath() string {
	return filepath.Join(x.SocketDir, "X"+strings.TrimPrefix(x.Display, ":"))
}

// Start launches Xvfb, waits for its socket and generates a trusted xauth cookie.
func (x *Xvfb) Start() error {
	if x.proc != nil {
		return nil
	}

	if err := ensureAuthFile(x.AuthFile); err != nil {
		return fmt.Errorf("prepare xauthority: %w", err)
	}

	screen := fmt.Sprintf("%dx%dx24", x.Width, x.Height)
	proc, err := x.start("Xvfb", x.Display, "-screen", "0", screen, "-nolisten", "tcp")
	if err != nil {
		return fmt.Errorf("start Xvfb: %w", err)
	}
	x.proc = proc

	if err := x.waitReady(); err != nil {
		x.kill()
		return err
	}

	x.prevEnv = map[string]*string{}
	for _, key := range []string{"DISPLAY", "XAUTHORITY"} {
		if v, ok := os.LookupEnv(key); ok {
			x.prevEnv[key] = &v
		} else {
			x.prevEnv[key] = nil
		}
	}
	os.Setenv("DISPLAY", x.Display)
	os.Setenv("XAUTHORITY", x.AuthFile)

	ctx, cancel := context.WithTimeout(context.Background(), x.Timeout)
	defer cancel()
	if err := x.run(ctx, "xauth", "generate", x.Display, ".", "trusted"); err != nil {
		// Xvfb without -auth accepts local clients anyway.
		slog.Warn("xauth generate failed", "display", x.Display, "error", err)
	}

	slog.Info("virtual display started", "display", x.Display, "size", screen)
	return nil
}

func (x *Xvfb) waitReady() error {
	deadline := time.Now().Add(x.Timeout)
	for {
		if _, err := os.Stat(x.socketPath()); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrNotReady, x.socketPath(), x.Timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Stop kills Xvfb and restores the environment.
func (x *Xvfb) Stop() error {
	if x.proc == nil {
		return nil
	}
	x.kill()

	for key, v := range x.prevEnv {
		if v == nil {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, *v)
		}
	}
	x.prevEnv = nil

	slog.Info("virtual display stopped", "display", x.Display)
	return nil
}

func (x *Xvfb) kill() {
	if err := x.proc.Kill(); err != nil {
		slog.Debug("kill Xvfb", "error", err)
	}
	// A killed process always reports an exit error.
	_ = x.proc.Wait()
	x.proc = nil
}

func ensureAuthFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}
