package gesture

import "fmt"

// DragState is whether the simulated mouse button is held.
type DragState int

const (
	// Released means the button is up. It is the zero value.
	Released DragState = iota
	// Dragging means the button is held down.
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "Dragging"
	}
	return "Released"
}

// MarshalText encodes the state by name.
func (s DragState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *DragState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Dragging":
		*s = Dragging
	case "Released":
		*s = Released
	default:
		return fmt.Errorf("unknown drag state %q", text)
	}
	return nil
}

// Event is what a frame asks the actuator to do beyond moving the pointer.
type Event int

const (
	// EventNone moves the pointer only.
	EventNone Event = iota
	// EventDragStart presses the button.
	EventDragStart
	// EventDragEnd releases the button.
	EventDragEnd
	// EventNoHand means nothing was tracked; no pointer action.
	EventNoHand
)

func (e Event) String() string {
	switch e {
	case EventDragStart:
		return "DragStart"
	case EventDragEnd:
		return "DragEnd"
	case EventNoHand:
		return "NoHand"
	default:
		return "None"
	}
}

// MarshalText encodes the event by name.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an event name.
func (e *Event) UnmarshalText(text []byte) error {
	for _, ev := range []Event{EventNone, EventDragStart, EventDragEnd, EventNoHand} {
		if ev.String() == string(text) {
			*e = ev
			return nil
		}
	}
	return fmt.Errorf("unknown event %q", text)
}

// DefaultThreshold is the pinch distance in frame pixels below which a drag starts.
const DefaultThreshold = 40

// Thresholds holds the pinch distances that start and end a drag.
// A drag starts when distance < Enter and ends when distance >= Exit.
//
// With Enter == Exit there is no band and a distance hovering at the
// threshold can toggle the state every frame. Setting Exit above Enter
// (for example 35/45) damps that.
type Thresholds struct {
	Enter float64
	Exit  float64
}

// DefaultThresholds is the single-threshold rule: drag below 40, release at 40 and above.
func DefaultThresholds() Thresholds {
	return Thresholds{Enter: DefaultThreshold, Exit: DefaultThreshold}
}

// Next is the transition function. It returns the new state and the event
// to emit; staying in the same state emits EventNone.
func Next(state DragState, distance float64, t Thresholds) (DragState, Event) {
	switch state {
	case Released:
		if distance < t.Enter {
			return Dragging, EventDragStart
		}
	case Dragging:
		if distance >= t.Exit {
			return Released, EventDragEnd
		}
	}
	return state, EventNone
}

// DragMachine owns the drag state for one session.
type DragMachine struct {
	thresholds Thresholds
	state      DragState
}

// NewDragMachine returns a machine in the Released state.
func NewDragMachine(t Thresholds) *DragMachine {
	return &DragMachine{thresholds: t}
}

// State returns the current drag state.
func (m *DragMachine) State() DragState {
	return m.state
}

// Thresholds returns the machine's thresholds.
func (m *DragMachine) Thresholds() Thresholds {
	return m.thresholds
}

// Step evaluates one frame's pinch distance.
func (m *DragMachine) Step(distance float64) Event {
	var ev Event
	m.state, ev = Next(m.state, distance, m.thresholds)
	return ev
}

// Hold records a frame without a hand. The state is carried over untouched so
// a detector dropout never presses or releases the button.
func (m *DragMachine) Hold() Event {
	return EventNoHand
}

// Revert undoes the transition that produced ev, used when the actuator
// failed to press or release so the state keeps matching the button.
func (m *DragMachine) Revert(ev Event) {
	switch ev {
	case EventDragStart:
		m.state = Released
	case EventDragEnd:
		m.state = Dragging
	}
}

// ForceRelease moves the machine to Released and reports whether it was
// Dragging, i.e. whether the caller still owes a button-up. It returns true
// at most once per drag.
func (m *DragMachine) ForceRelease() bool {
	if m.state != Dragging {
		return false
	}
	m.state = Released
	return true
}
