package gesture

import (
	"image"

	"github.com/ayusman/airmouse/internal/detector"
)

// Decision is the controller's verdict for one frame.
type Decision struct {
	// Hand reports whether a hand was tracked in this frame.
	Hand bool
	// Index and Thumb are the fingertip positions in frame pixels.
	Index image.Point
	Thumb image.Point
	// Target is where the pointer should move, in screen pixels.
	Target image.Point
	// Distance is the pinch distance in frame pixels.
	Distance float64
	State    DragState
	Event    Event
}

// Controller maps one frame's landmarks to a pointer target and drag event.
// The screen geometry is fixed at construction.
type Controller struct {
	screen   ScreenGeometry
	machine  *DragMachine
	previous image.Point
	tracked  bool
}

// NewController returns a Controller for screen starting in the Released state.
func NewController(screen ScreenGeometry, t Thresholds) *Controller {
	return &Controller{
		screen:  screen,
		machine: NewDragMachine(t),
	}
}

// Screen returns the screen geometry the controller maps onto.
func (c *Controller) Screen() ScreenGeometry {
	return c.screen
}

// State returns the current drag state.
func (c *Controller) State() DragState {
	return c.machine.State()
}

// Previous returns the last pointer target and whether one exists.
func (c *Controller) Previous() (image.Point, bool) {
	return c.previous, c.tracked
}

// Evaluate processes one frame. A nil hand leaves the drag state unchanged
// and yields EventNoHand with the previous target.
func (c *Controller) Evaluate(hand *detector.HandLandmarks, frame FrameGeometry) Decision {
	if hand == nil {
		return Decision{
			Target: c.previous,
			State:  c.machine.State(),
			Event:  c.machine.Hold(),
		}
	}

	index := hand.Index()
	thumb := hand.Thumb()

	d := Decision{
		Hand:     true,
		Index:    FramePixel(index, frame),
		Thumb:    FramePixel(thumb, frame),
		Target:   MapToScreen(index, c.screen).Pixel(),
		Distance: PinchDistance(index, thumb, frame),
	}
	d.Event = c.machine.Step(d.Distance)
	d.State = c.machine.State()

	c.previous = d.Target
	c.tracked = true
	return d
}

// Revert rolls back the drag transition in d after a failed button action.
func (c *Controller) Revert(d *Decision) {
	c.machine.Revert(d.Event)
	d.State = c.machine.State()
	d.Event = EventNone
}

// ForceRelease reports whether a button-up is still owed, clearing the drag.
func (c *Controller) ForceRelease() bool {
	return c.machine.ForceRelease()
}
