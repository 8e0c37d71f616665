// Package osutils holds small OS integrations. Inhibitor keeps the display
// and the system from sleeping while a run is typing.
package osutils

import (
	"log"
	"sync"
)

// Inhibitor prevents idle sleep while held. Hold and Release are idempotent.
type Inhibitor struct {
	mu   sync.Mutex
	held bool
	set  func(awake bool) error
}

// NewInhibitor uses the platform mechanism
func NewInhibitor() *Inhibitor {
	return &Inhibitor{set: platformSetAwake()}
}

// Hold keeps the machine awake until Release
func (i *Inhibitor) Hold() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.held {
		return
	}
	if err := i.set(true); err != nil {
		log.Printf("Awake: Failed to inhibit sleep: %v", err)
		return
	}
	i.held = true
}

// Release lets the machine sleep again
func (i *Inhibitor) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.held {
		return
	}
	if err := i.set(false); err != nil {
		log.Printf("Awake: Failed to release sleep inhibitor: %v", err)
	}
	i.held = false
}

// Held reports whether the inhibitor is active
func (i *Inhibitor) Held() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.held
}
