package pointer

import (
	"fmt"
	"time"
)

// LocatingActuator is an Actuator that can also report the cursor position.
type LocatingActuator interface {
	Actuator
	Locator
}

// FailSafe refuses to move or press while the cursor sits in a screen corner,
// giving the user a way to wrest control back by shoving the mouse there.
// ButtonUp is never blocked so a held button can always be released.
type FailSafe struct {
	next          LocatingActuator
	width, height int
}

// NewFailSafe wraps next. The screen size is queried once.
func NewFailSafe(next LocatingActuator) (*FailSafe, error) {
	w, h, err := next.ScreenSize()
	if err != nil {
		return nil, err
	}
	return &FailSafe{next: next, width: w, height: h}, nil
}

func (f *FailSafe) check() error {
	x, y, err := f.next.Location()
	if err != nil {
		return fmt.Errorf("fail-safe location: %w", err)
	}
	left, top := x <= 0, y <= 0
	right, bottom := x >= f.width-1, y >= f.height-1
	if (left || right) && (top || bottom) {
		return fmt.Errorf("%w at (%d,%d)", ErrFailSafe, x, y)
	}
	return nil
}

func (f *FailSafe) MoveTo(x, y int, d time.Duration) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.next.MoveTo(x, y, d)
}

func (f *FailSafe) ButtonDown() error {
	if err := f.check(); err != nil {
		return err
	}
	return f.next.ButtonDown()
}

func (f *FailSafe) ButtonUp() error {
	return f.next.ButtonUp()
}

func (f *FailSafe) ScreenSize() (int, int, error) {
	return f.width, f.height, nil
}
