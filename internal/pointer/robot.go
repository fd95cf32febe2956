package pointer

import (
	"fmt"
	"image"
	"time"

	"github.com/go-vgo/robotgo"
)

// Robot drives the local display through robotgo.
type Robot struct {
	button string
}

// NewRobot returns an actuator that presses the left button.
func NewRobot() *Robot {
	return &Robot{button: "left"}
}

// ScreenSize returns the main display size.
func (r *Robot) ScreenSize() (int, int, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("robotgo reported %dx%d: %w", w, h, ErrNoScreen)
	}
	return w, h, nil
}

// Location returns the cursor position.
func (r *Robot) Location() (int, int, error) {
	x, y := robotgo.Location()
	return x, y, nil
}

// MoveTo animates the cursor from its current position to (x, y).
func (r *Robot) MoveTo(x, y int, d time.Duration) error {
	fx, fy := robotgo.Location()
	return animate(image.Point{X: fx, Y: fy}, image.Point{X: x, Y: y}, d, func(x, y int) error {
		robotgo.Move(x, y)
		return nil
	}, time.Sleep)
}

// ButtonDown presses and holds the button.
func (r *Robot) ButtonDown() error {
	if err := robotgo.Toggle(r.button); err != nil {
		return fmt.Errorf("button down: %w", err)
	}
	return nil
}

// ButtonUp releases the button.
func (r *Robot) ButtonUp() error {
	if err := robotgo.Toggle(r.button, "up"); err != nil {
		return fmt.Errorf("button up: %w", err)
	}
	return nil
}
