// Package hotkey listens for a global stop key combination.
package hotkey

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// ErrNoKeys is returned when a listener is built without keys.
var ErrNoKeys = errors.New("hotkey needs at least one key")

// Listener calls a function when its key combination is pressed anywhere on
// the desktop. Keys follow gohook's order: the key first, then modifiers,
// for example {"q", "ctrl", "shift"}.
type Listener struct {
	keys    []string
	onPress func()
	once    sync.Once
}

// New returns a listener for keys.
func New(keys []string, onPress func()) (*Listener, error) {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoKeys
	}
	return &Listener{keys: clean, onPress: onPress}, nil
}

// Combo returns the combination as users write it, modifiers first.
func (l *Listener) Combo() string {
	return Combo(l.keys)
}

// Run hooks the keyboard until ctx is cancelled. The callback fires at most once.
func (l *Listener) Run(ctx context.Context) {
	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		slog.Info("stop hotkey pressed", "keys", l.Combo())
		l.once.Do(l.onPress)
	})

	s := hook.Start()
	go func() {
		<-ctx.Done()
		hook.End()
	}()

	slog.Info("stop hotkey armed", "keys", l.Combo())
	<-hook.Process(s)
}

// Combo formats gohook keys as "ctrl+shift+q".
func Combo(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	parts := append(append([]string{}, keys[1:]...), keys[0])
	return strings.Join(parts, "+")
}
