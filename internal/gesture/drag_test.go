package gesture

import "testing"

func TestNext(t *testing.T) {
	single := DefaultThresholds()
	band := Thresholds{Enter: 35, Exit: 45}

	tests := []struct {
		name      string
		state     DragState
		distance  float64
		t         Thresholds
		wantState DragState
		wantEvent Event
	}{
		{"released below threshold starts drag", Released, 39, single, Dragging, EventDragStart},
		{"released at threshold stays", Released, 40, single, Released, EventNone},
		{"released above threshold stays", Released, 80, single, Released, EventNone},
		{"dragging at threshold releases", Dragging, 40, single, Released, EventDragEnd},
		{"dragging above threshold releases", Dragging, 50, single, Released, EventDragEnd},
		{"dragging below threshold stays", Dragging, 39, single, Dragging, EventNone},
		{"dragging at zero stays", Dragging, 0, single, Dragging, EventNone},
		{"band: released inside band stays", Released, 40, band, Released, EventNone},
		{"band: released below enter starts", Released, 34, band, Dragging, EventDragStart},
		{"band: dragging inside band stays", Dragging, 44, band, Dragging, EventNone},
		{"band: dragging at exit releases", Dragging, 45, band, Released, EventDragEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ev := Next(tt.state, tt.distance, tt.t)
			if state != tt.wantState || ev != tt.wantEvent {
				t.Errorf("Next(%v, %v) = (%v, %v), want (%v, %v)",
					tt.state, tt.distance, state, ev, tt.wantState, tt.wantEvent)
			}
		})
	}
}

func TestDragMachine_StartsReleased(t *testing.T) {
	m := NewDragMachine(DefaultThresholds())
	if m.State() != Released {
		t.Errorf("State() = %v, want Released", m.State())
	}
	if m.Thresholds() != DefaultThresholds() {
		t.Errorf("Thresholds() = %+v", m.Thresholds())
	}
}

func TestDragMachine_IdempotentRepeats(t *testing.T) {
	m := NewDragMachine(DefaultThresholds())

	if ev := m.Step(10); ev != EventDragStart {
		t.Errorf("frame 1 event = %v, want DragStart", ev)
	}
	if ev := m.Step(10); ev != EventNone {
		t.Errorf("frame 2 event = %v, want None", ev)
	}
	if m.State() != Dragging {
		t.Errorf("State() = %v, want Dragging", m.State())
	}
}

func TestDragMachine_HoldKeepsState(t *testing.T) {
	m := NewDragMachine(DefaultThresholds())
	m.Step(5)

	if ev := m.Hold(); ev != EventNoHand {
		t.Errorf("Hold() = %v, want NoHand", ev)
	}
	if m.State() != Dragging {
		t.Errorf("State() = %v, want Dragging after no-hand frame", m.State())
	}
}

func TestDragMachine_FlickerAtThreshold(t *testing.T) {
	// With one threshold, 39/40 alternation toggles every frame.
	m := NewDragMachine(DefaultThresholds())
	want := []Event{EventDragStart, EventDragEnd, EventDragStart, EventDragEnd}
	for i, d := range []float64{39, 40, 39, 40} {
		if ev := m.Step(d); ev != want[i] {
			t.Errorf("frame %d: event = %v, want %v", i, ev, want[i])
		}
	}

	// A band absorbs the same jitter once dragging.
	m = NewDragMachine(Thresholds{Enter: 35, Exit: 45})
	m.Step(30)
	for i, d := range []float64{39, 40, 39, 40} {
		if ev := m.Step(d); ev != EventNone {
			t.Errorf("band frame %d: event = %v, want None", i, ev)
		}
	}
}

func TestDragMachine_Revert(t *testing.T) {
	m := NewDragMachine(DefaultThresholds())

	ev := m.Step(10)
	m.Revert(ev)
	if m.State() != Released {
		t.Errorf("after reverting DragStart State() = %v, want Released", m.State())
	}

	m.Step(10)
	ev = m.Step(60)
	m.Revert(ev)
	if m.State() != Dragging {
		t.Errorf("after reverting DragEnd State() = %v, want Dragging", m.State())
	}

	m.Revert(EventNone)
	if m.State() != Dragging {
		t.Errorf("reverting None changed state to %v", m.State())
	}
}

func TestDragMachine_ForceRelease(t *testing.T) {
	m := NewDragMachine(DefaultThresholds())

	if m.ForceRelease() {
		t.Error("ForceRelease() on Released should report false")
	}

	m.Step(10)
	if !m.ForceRelease() {
		t.Error("ForceRelease() on Dragging should report true")
	}
	if m.ForceRelease() {
		t.Error("second ForceRelease() should report false")
	}
	if m.State() != Released {
		t.Errorf("State() = %v, want Released", m.State())
	}
}

func TestStrings(t *testing.T) {
	if Dragging.String() != "Dragging" || Released.String() != "Released" {
		t.Error("unexpected DragState strings")
	}
	names := map[Event]string{EventNone: "None", EventDragStart: "DragStart", EventDragEnd: "DragEnd", EventNoHand: "NoHand"}
	for ev, want := range names {
		if ev.String() != want {
			t.Errorf("Event(%d).String() = %q, want %q", int(ev), ev.String(), want)
		}
	}
}

func TestText(t *testing.T) {
	var s DragState
	if err := s.UnmarshalText([]byte("Dragging")); err != nil || s != Dragging {
		t.Errorf("UnmarshalText(Dragging) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("Hovering")); err == nil {
		t.Error("expected error for unknown state")
	}

	var e Event
	if err := e.UnmarshalText([]byte("DragEnd")); err != nil || e != EventDragEnd {
		t.Errorf("UnmarshalText(DragEnd) = %v, %v", e, err)
	}
	if err := e.UnmarshalText([]byte("Click")); err == nil {
		t.Error("expected error for unknown event")
	}
}
