// Package config loads airmouse settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Sink names accepted by Config.Sink.
const (
	SinkWindow   = "window"
	SinkBrowser  = "browser"
	SinkHeadless = "headless"
)

// Actuator names accepted by Config.Actuator.
const (
	ActuatorRobotgo = "robotgo"
	ActuatorXdotool = "xdotool"
)

type Config struct {
	// Camera is a device index ("0") or a video file / stream URL.
	Camera      string
	FrameWidth  int
	FrameHeight int
	CaptureFPS  int

	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	MaxHands               int
	DetectorScript         string
	DetectorPython         string

	DragThreshold    float64
	ReleaseThreshold float64
	MoveDuration     time.Duration
	FailSafe         bool
	Actuator         string

	Sink      string
	HTTPAddr  string
	Record    string
	RecordFPS float64
	Tray      bool
	Hotkey    []string

	VirtualDisplay bool
	DisplayName    string
	DisplayWidth   int
	DisplayHeight  int

	LogLevel string
}

func Load() *Config {
	drag := getEnvFloat("AIRMOUSE_DRAG_THRESHOLD", 40)
	return &Config{
		Camera:      getEnv("AIRMOUSE_CAMERA", "0"),
		FrameWidth:  getEnvInt("AIRMOUSE_FRAME_WIDTH", 640),
		FrameHeight: getEnvInt("AIRMOUSE_FRAME_HEIGHT", 480),
		CaptureFPS:  getEnvInt("AIRMOUSE_CAPTURE_FPS", 30),

		MinDetectionConfidence: getEnvFloat("AIRMOUSE_DETECTION_CONFIDENCE", 0.7),
		MinTrackingConfidence:  getEnvFloat("AIRMOUSE_TRACKING_CONFIDENCE", 0.7),
		MaxHands:               getEnvInt("AIRMOUSE_MAX_HANDS", 1),
		DetectorScript:         getEnv("AIRMOUSE_DETECTOR_SCRIPT", ""),
		DetectorPython:         getEnv("AIRMOUSE_DETECTOR_PYTHON", ""),

		DragThreshold:    drag,
		ReleaseThreshold: getEnvFloat("AIRMOUSE_RELEASE_THRESHOLD", drag),
		MoveDuration:     getEnvDuration("AIRMOUSE_MOVE_DURATION", 100*time.Millisecond),
		FailSafe:         getEnvBool("AIRMOUSE_FAILSAFE", true),
		Actuator:         getEnv("AIRMOUSE_ACTUATOR", ActuatorRobotgo),

		Sink:      getEnv("AIRMOUSE_SINK", SinkWindow),
		HTTPAddr:  getEnv("AIRMOUSE_HTTP_ADDR", "127.0.0.1:8501"),
		Record:    getEnv("AIRMOUSE_RECORD", ""),
		RecordFPS: getEnvFloat("AIRMOUSE_RECORD_FPS", 10),
		Tray:      getEnvBool("AIRMOUSE_TRAY", false),
		Hotkey:    getEnvList("AIRMOUSE_HOTKEY", []string{"q", "ctrl", "shift"}),

		VirtualDisplay: getEnvBool("AIRMOUSE_VIRTUAL_DISPLAY", false),
		DisplayName:    getEnv("AIRMOUSE_DISPLAY", ":99"),
		DisplayWidth:   getEnvInt("AIRMOUSE_DISPLAY_WIDTH", 1024),
		DisplayHeight:  getEnvInt("AIRMOUSE_DISPLAY_HEIGHT", 768),

		LogLevel: getEnv("AIRMOUSE_LOG_LEVEL", "info"),
	}
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	if c.Camera == "" {
		return errors.New("camera source must not be empty")
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if err := checkConfidence("detection", c.MinDetectionConfidence); err != nil {
		return err
	}
	if err := checkConfidence("tracking", c.MinTrackingConfidence); err != nil {
		return err
	}
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	if c.DragThreshold <= 0 {
		return fmt.Errorf("drag threshold must be positive, got %f", c.DragThreshold)
	}
	if c.ReleaseThreshold < c.DragThreshold {
		return fmt.Errorf("release threshold %f is below drag threshold %f", c.ReleaseThreshold, c.DragThreshold)
	}
	if c.MoveDuration < 0 {
		return fmt.Errorf("move duration must not be negative, got %s", c.MoveDuration)
	}
	switch c.Sink {
	case SinkWindow, SinkBrowser, SinkHeadless:
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	switch c.Actuator {
	case ActuatorRobotgo, ActuatorXdotool:
	default:
		return fmt.Errorf("unknown actuator %q", c.Actuator)
	}
	if c.Record != "" && c.RecordFPS <= 0 {
		return fmt.Errorf("record fps must be positive, got %f", c.RecordFPS)
	}
	if c.VirtualDisplay && (c.DisplayWidth <= 0 || c.DisplayHeight <= 0) {
		return fmt.Errorf("virtual display size must be positive, got %dx%d", c.DisplayWidth, c.DisplayHeight)
	}
	return nil
}

// CameraDevice returns the camera as a device index when it is numeric,
// otherwise the raw string so gocv treats it as a file or URL.
func (c *Config) CameraDevice() interface{} {
	if id, err := strconv.Atoi(c.Camera); err == nil {
		return id
	}
	return c.Camera
}

func checkConfidence(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s confidence must be between 0 and 1, got %f", name, v)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
