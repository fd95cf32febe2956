package pointer

import (
	"sync"
	"time"
)

// Op names recorded by Mock.
const (
	OpMove = "move"
	OpDown = "down"
	OpUp   = "up"
)

// Call is one recorded actuator call.
type Call struct {
	Op       string
	X, Y     int
	Duration time.Duration
}

// Mock records actuator calls for tests. It does not sleep.
type Mock struct {
	mu        sync.Mutex
	calls     []Call
	width     int
	height    int
	screenErr error
	errs      map[string]error
	x, y      int
	onCall    func(Call)
}

// NewMock returns a mock with a width x height screen and the cursor at its center.
func NewMock(width, height int) *Mock {
	return &Mock{
		width:  width,
		height: height,
		x:      width / 2,
		y:      height / 2,
		errs:   make(map[string]error),
	}
}

// SetError makes every call of op fail with err. A nil err clears it.
func (m *Mock) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// SetScreenError makes ScreenSize fail.
func (m *Mock) SetScreenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenErr = err
}

// SetCursor places the cursor without recording a call.
func (m *Mock) SetCursor(x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x, m.y = x, y
}

// OnCall registers fn to run after each recorded call.
func (m *Mock) OnCall(fn func(Call)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCall = fn
}

func (m *Mock) record(c Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	err := m.errs[c.Op]
	if err == nil && c.Op == OpMove {
		m.x, m.y = c.X, c.Y
	}
	fn := m.onCall
	m.mu.Unlock()

	if fn != nil {
		fn(c)
	}
	return err
}

func (m *Mock) MoveTo(x, y int, d time.Duration) error {
	return m.record(Call{Op: OpMove, X: x, Y: y, Duration: d})
}

func (m *Mock) ButtonDown() error {
	return m.record(Call{Op: OpDown})
}

func (m *Mock) ButtonUp() error {
	return m.record(Call{Op: OpUp})
}

func (m *Mock) ScreenSize() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screenErr != nil {
		return 0, 0, m.screenErr
	}
	return m.width, m.height, nil
}

func (m *Mock) Location() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.x, m.y, nil
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Count returns how many calls of op were recorded.
func (m *Mock) Count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Buttons returns the sequence of button ops, ignoring moves.
func (m *Mock) Buttons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Op != OpMove {
			out = append(out, c.Op)
		}
	}
	return out
}
