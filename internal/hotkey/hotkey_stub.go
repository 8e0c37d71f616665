//go:build !windows

package hotkey

import "log"

type platformState struct{}

// Supported reports whether global hooks work on this platform
func Supported() bool { return false }

func (m *Manager) startPlatform() error {
	log.Println("Hotkey: Global hooks not supported on this platform")
	return nil
}

func (m *Manager) stopPlatform() {}
