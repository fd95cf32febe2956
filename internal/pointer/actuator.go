// Package pointer drives the system cursor and mouse button.
package pointer

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrFailSafe is returned when the cursor sits in a screen corner and the
	// fail-safe guard refuses to act. It is transient: the next frame may proceed.
	ErrFailSafe = errors.New("fail-safe triggered: cursor in screen corner")
	// ErrNoScreen is returned when the screen size cannot be determined.
	ErrNoScreen = errors.New("screen size unavailable")
)

// Actuator moves the pointer and presses the primary button.
// Calls are synchronous and must not be interleaved from several goroutines.
type Actuator interface {
	// MoveTo moves the cursor to (x, y), animating over d. It blocks for about d.
	MoveTo(x, y int, d time.Duration) error
	ButtonDown() error
	ButtonUp() error
	ScreenSize() (int, int, error)
}

// Locator reports the current cursor position.
type Locator interface {
	Location() (int, int, error)
}

// stepInterval is the pause between intermediate cursor positions while animating.
const stepInterval = 10 * time.Millisecond

// animate moves from -> to in evenly spaced steps lasting about d in total.
// The final step always lands exactly on to.
func animate(from, to image.Point, d time.Duration, move func(x, y int) error, sleep func(time.Duration)) error {
	steps := int(d / stepInterval)
	if steps < 1 {
		return move(to.X, to.Y)
	}

	pause := d / time.Duration(steps)
	dx := float64(to.X - from.X)
	dy := float64(to.Y - from.Y)

	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		x := from.X + int(dx*f)
		y := from.Y + int(dy*f)
		if i == steps {
			x, y = to.X, to.Y
		}
		if err := move(x, y); err != nil {
			return err
		}
		if i < steps {
			sleep(pause)
		}
	}
	return nil
}
