// Package tray provides a system tray control for airmouse sessions.
package tray

import (
	"fmt"
	"sync"

	"github.com/ayusman/airmouse/internal/render"
	"github.com/getlantern/systray"
	"gocv.io/x/gocv"
)

// Tray is the system tray menu. It starts and stops sessions, shows the
// drag state and doubles as a status sink.
type Tray struct {
	onToggle   func(running bool)
	onSettings func()
	onQuit     func()
	running    bool
	label      string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray for a stopped session.
func New() *Tray {
	return &Tray{label: idleLabel}
}

const idleLabel = "Stopped"

// OnToggle sets the callback invoked when Start/Stop is clicked.
// running is the state the user asked for.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback for the "Open Control Page" item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("airmouse")
	systray.SetTooltip("airmouse hand-gesture pointer")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop hand tracking")
	systray.AddSeparator()
	t.menuStatus = systray.AddMenuItem(t.label, "Drag state")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Control Page...", "Open the control page in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit airmouse")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop"
	}
	return "▶ Start"
}

// handleToggle flips the requested state and calls back outside the lock.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	want := !t.running
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(want)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRunning syncs the toggle with the supervisor's state.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = running
	if !running {
		t.setLabel(idleLabel)
	}
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
}

// IsRunning returns the last state passed to SetRunning.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Label returns the status text shown in the menu.
func (t *Tray) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.label
}

// Present updates the status item. The menu is only touched when the text changes.
func (t *Tray) Present(_ *gocv.Mat, st render.Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLabel(statusLabel(st))
	return nil
}

// Close resets the status item.
func (t *Tray) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLabel(idleLabel)
	return nil
}

func (t *Tray) setLabel(label string) {
	if label == t.label {
		return
	}
	t.label = label
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(label)
	}
}

// statusLabel buckets the distance to 5 px so the menu is not redrawn every frame.
func statusLabel(st render.Status) string {
	if !st.Hand {
		return fmt.Sprintf("%s | no hand", st.State)
	}
	return fmt.Sprintf("%s | ~%dpx", st.State, int(st.Distance)/5*5)
}
