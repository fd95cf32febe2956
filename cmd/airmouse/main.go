// Command airmouse moves the pointer with a webcam-tracked hand and drags on a pinch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/ayusman/airmouse/internal/app"
	"github.com/ayusman/airmouse/internal/capture"
	"github.com/ayusman/airmouse/internal/config"
	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/display"
	"github.com/ayusman/airmouse/internal/gesture"
	"github.com/ayusman/airmouse/internal/hotkey"
	"github.com/ayusman/airmouse/internal/pointer"
	"github.com/ayusman/airmouse/internal/render"
	"github.com/ayusman/airmouse/internal/server"
	"github.com/ayusman/airmouse/internal/session"
	"github.com/ayusman/airmouse/internal/tray"
)

const howToRun = `airmouse needs a webcam on the machine it runs on.

How to run locally:
  1. Install OpenCV (gocv) and, for -record, ffmpeg.
  2. Create the landmark service environment:
       python3 -m venv ~/.airmouse/venv
       ~/.airmouse/venv/bin/pip install mediapipe opencv-python
  3. Copy scripts/mediapipe_service.py to ~/.airmouse/scripts/
  4. Run: airmouse -camera 0
`

// HighGUI and systray need the process's main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	cfg := config.Load()
	parseFlags(cfg)

	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		slog.Error("airmouse stopped", "error", err)
		if errors.Is(err, session.ErrCaptureFailed) {
			fmt.Fprint(os.Stderr, howToRun)
		}
		os.Exit(1)
	}
}

func parseFlags(cfg *config.Config) {
	hotkeyFlag := strings.Join(cfg.Hotkey, ",")

	flag.StringVar(&cfg.Camera, "camera", cfg.Camera, "camera index, video file or stream URL")
	flag.StringVar(&cfg.Sink, "sink", cfg.Sink, "preview: window, browser or headless")
	flag.StringVar(&cfg.Actuator, "actuator", cfg.Actuator, "pointer driver: robotgo or xdotool")
	flag.Float64Var(&cfg.DragThreshold, "threshold", cfg.DragThreshold, "pinch distance in pixels below which a drag starts")
	flag.Float64Var(&cfg.ReleaseThreshold, "release-threshold", cfg.ReleaseThreshold, "pinch distance at or above which a drag ends")
	flag.Float64Var(&cfg.MinDetectionConfidence, "detection-confidence", cfg.MinDetectionConfidence, "minimum hand detection confidence")
	flag.Float64Var(&cfg.MinTrackingConfidence, "tracking-confidence", cfg.MinTrackingConfidence, "minimum hand tracking confidence")
	flag.DurationVar(&cfg.MoveDuration, "move-duration", cfg.MoveDuration, "pointer animation time per frame")
	flag.BoolVar(&cfg.FailSafe, "failsafe", cfg.FailSafe, "refuse to act while the cursor sits in a screen corner")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "control page address for the browser sink")
	flag.StringVar(&cfg.Record, "record", cfg.Record, "write the annotated session to this video file")
	flag.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show a system tray control")
	flag.StringVar(&hotkeyFlag, "hotkey", hotkeyFlag, `stop key combination in gohook order, or "none"`)
	flag.BoolVar(&cfg.VirtualDisplay, "virtual-display", cfg.VirtualDisplay, "run on an Xvfb display")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	// A release threshold left at its default follows -threshold.
	releaseSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "release-threshold" {
			releaseSet = true
		}
	})
	if !releaseSet && os.Getenv("AIRMOUSE_RELEASE_THRESHOLD") == "" {
		cfg.ReleaseThreshold = cfg.DragThreshold
	}

	cfg.Hotkey = nil
	if hotkeyFlag != "none" {
		for _, k := range strings.Split(hotkeyFlag, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Hotkey = append(cfg.Hotkey, k)
			}
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Restore default signal handling so a second interrupt kills the process.
	context.AfterFunc(ctx, stop)

	if cfg.VirtualDisplay {
		xvfb := display.NewXvfb(cfg.DisplayName, cfg.DisplayWidth, cfg.DisplayHeight)
		if err := xvfb.Start(); err != nil {
			return fmt.Errorf("virtual display: %w", err)
		}
		defer xvfb.Stop()
	}

	act, err := newActuator(cfg)
	if err != nil {
		return err
	}

	det, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.MaxHands,
		MinConfidence:   cfg.MinDetectionConfidence,
		MinTrackingConf: cfg.MinTrackingConfidence,
		Script:          cfg.DetectorScript,
		Python:          cfg.DetectorPython,
	})
	if err != nil {
		fmt.Fprint(os.Stderr, howToRun)
		return fmt.Errorf("landmark service: %w", err)
	}
	defer det.Close()

	camera := capture.NewSource(capture.Options{
		Device: cfg.CameraDevice(),
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
		FPS:    cfg.CaptureFPS,
	})
	if err := probeCamera(camera); err != nil {
		return err
	}

	var sinks render.Multi
	var hub *server.Hub
	switch cfg.Sink {
	case config.SinkWindow:
		sinks = append(sinks, render.NewWindowSink("airmouse"))
	case config.SinkBrowser:
		hub = server.NewHub()
		sinks = append(sinks, hub)
	case config.SinkHeadless:
		sinks = append(sinks, render.NewLogSink(nil))
	}
	if cfg.Sink != config.SinkHeadless {
		sinks = append(sinks, render.NewLogSink(nil))
	}
	if cfg.Record != "" {
		sinks = append(sinks, render.NewVideoSink(cfg.Record, cfg.RecordFPS))
	}

	var tr *tray.Tray
	if cfg.Tray {
		if cfg.Sink == config.SinkWindow {
			slog.Warn("tray is not available with the window sink; both need the main thread")
		} else {
			tr = tray.New()
			sinks = append(sinks, tr)
		}
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Warn("close sinks", "error", err)
		}
	}()

	factory := func() (*session.Session, error) {
		return session.New(session.Options{
			Camera:       camera,
			Detector:     det,
			Actuator:     act,
			Sink:         sinks,
			Thresholds:   gesture.Thresholds{Enter: cfg.DragThreshold, Exit: cfg.ReleaseThreshold},
			MoveDuration: cfg.MoveDuration,
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if len(cfg.Hotkey) > 0 {
		l, err := hotkey.New(cfg.Hotkey, cancel)
		if err != nil {
			return err
		}
		go l.Run(ctx)
	}

	// The window sink presents from the main thread, locked in init.
	if cfg.Sink == config.SinkWindow {
		s, err := factory()
		if err != nil {
			return err
		}
		return s.Run(ctx)
	}

	a := app.New(factory, det, cfg.MinDetectionConfidence, cfg.MinTrackingConfidence)

	errCh := make(chan error, 1)
	if hub != nil {
		srv := server.New(server.Config{Control: a, Hub: hub})
		go func() {
			errCh <- srv.ListenAndServe(ctx, cfg.HTTPAddr)
		}()
		slog.Info("control page ready", "url", "http://"+cfg.HTTPAddr)
	}

	if tr != nil {
		a.OnStateChange(tr.SetRunning)
		wireTray(tr, a, cfg, cancel)
	}

	if err := a.Start(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		a.Stop()
		if tr != nil {
			tr.Quit()
		}
	}()

	if tr != nil {
		// systray owns the main thread until Quit.
		tr.Run()
		cancel()
		a.Stop()
		return nil
	}

	return wait(ctx, a, hub != nil, errCh)
}

// wait blocks until shutdown. With the browser sink the page can start new
// sessions, so only the server ends the process. Otherwise a session that
// ends on its own ends the process with its error.
func wait(ctx context.Context, a *app.App, browser bool, errCh <-chan error) error {
	if browser {
		select {
		case <-ctx.Done():
			a.Stop()
			return <-errCh
		case err := <-errCh:
			a.Stop()
			return err
		}
	}

	select {
	case <-ctx.Done():
		a.Stop()
		return nil
	case <-a.Done():
		return a.LastError()
	}
}

func wireTray(tr *tray.Tray, a *app.App, cfg *config.Config, quit context.CancelFunc) {
	tr.OnToggle(func(running bool) {
		if !running {
			a.Stop()
			return
		}
		if err := a.Start(); err != nil {
			slog.Error("start session from tray", "error", err)
		}
	})
	tr.OnQuit(quit)
	if cfg.Sink == config.SinkBrowser {
		tr.OnSettings(func() { openBrowser("http://" + cfg.HTTPAddr) })
	}
}

func newActuator(cfg *config.Config) (pointer.Actuator, error) {
	var act pointer.LocatingActuator
	switch cfg.Actuator {
	case config.ActuatorXdotool:
		act = pointer.NewXdotool(nil)
	default:
		act = pointer.NewRobot()
	}

	if !cfg.FailSafe {
		return act, nil
	}
	fs, err := pointer.NewFailSafe(act)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrScreenSize, err)
	}
	return fs, nil
}

// probeCamera refuses to start when no camera can be opened.
func probeCamera(camera capture.Camera) error {
	if err := camera.Open(); err != nil {
		return fmt.Errorf("%w: %w", session.ErrCaptureFailed, err)
	}
	return camera.Close()
}

func openBrowser(url string) {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	if err := exec.Command(name, url).Start(); err != nil {
		slog.Warn("open browser", "url", url, "error", err)
	}
}
