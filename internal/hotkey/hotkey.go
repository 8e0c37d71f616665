// Package hotkey watches global key combinations such as the emergency stop
// (e.g. "Ctrl+Alt+Shift+Esc") and runs a callback when one is pressed.
package hotkey

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

var aliases = map[string]string{
	"CONTROL": "CTRL",
	"OPTION":  "ALT",
	"ESCAPE":  "ESC",
	"RETURN":  "ENTER",
	"WIN":     "CMD",
	"SUPER":   "CMD",
	"DEL":     "DELETE",
}

// Combo is a normalized key combination
type Combo struct {
	keys []string
	text string
}

// ParseCombo parses "Ctrl+Alt+T" style strings. Names are case-insensitive
// and common aliases (Control, Escape, Win, ...) are accepted.
func ParseCombo(s string) (Combo, error) {
	if strings.TrimSpace(s) == "" {
		return Combo{}, errors.New("hotkey: empty combination")
	}

	parts := strings.Split(strings.ToUpper(s), "+")
	seen := make(map[string]bool, len(parts))
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Combo{}, fmt.Errorf("hotkey: %q has an empty key", s)
		}
		if a, ok := aliases[p]; ok {
			p = a
		}
		if seen[p] {
			return Combo{}, fmt.Errorf("hotkey: %q repeats %s", s, p)
		}
		seen[p] = true
		keys = append(keys, p)
	}
	return Combo{keys: keys, text: strings.Join(keys, "+")}, nil
}

func (c Combo) String() string { return c.text }

// Manager tracks pressed keys and fires registered combos
type Manager struct {
	mu      sync.Mutex
	hotkeys []*registeredHotkey
	down    map[string]bool

	platform platformState
}

type registeredHotkey struct {
	combo    Combo
	callback func()
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		down: make(map[string]bool),
	}
}

// Register adds a combination; an empty string is ignored
func (m *Manager) Register(combo string, callback func()) error {
	if combo == "" {
		return nil
	}
	c, err := ParseCombo(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{combo: c, callback: callback})
	log.Printf("Hotkey: Registered %s", c)
	return nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key press or release. A combo fires when the key
// that completes it goes down; key repeat while held does not fire again.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = strings.ToUpper(key)
	if a, ok := aliases[key]; ok {
		key = a
	}

	m.mu.Lock()
	if !isDown {
		delete(m.down, key)
		m.mu.Unlock()
		return
	}
	if m.down[key] {
		m.mu.Unlock()
		return
	}
	m.down[key] = true

	var fire []*registeredHotkey
	for _, hk := range m.hotkeys {
		if m.matches(hk.combo, key) {
			fire = append(fire, hk)
		}
	}
	m.mu.Unlock()

	for _, hk := range fire {
		log.Printf("Hotkey: Triggered %s", hk.combo)
		go hk.callback()
	}
}

// matches reports whether every key of c is down and key is one of them
func (m *Manager) matches(c Combo, key string) bool {
	member := false
	for _, k := range c.keys {
		if !m.down[k] {
			return false
		}
		if k == key {
			member = true
		}
	}
	return member
}

// Start installs the platform keyboard hook
func (m *Manager) Start() error {
	return m.startPlatform()
}

// Stop removes the platform hook
func (m *Manager) Stop() {
	m.stopPlatform()
}
