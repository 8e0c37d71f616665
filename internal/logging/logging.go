// Package logging sends the standard logger to stderr and a log file under
// the XDG state home (~/.local/state/autotyper/autotyper.log).
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// Disabled as a log file path turns file logging off
const Disabled = "none"

var (
	mu      sync.Mutex
	logFile *os.File
	logPath string
)

// DefaultPath resolves the log file under the XDG state home
func DefaultPath() (string, error) {
	p, err := xdg.StateFile(filepath.Join("autotyper", "autotyper.log"))
	if err != nil {
		return "", fmt.Errorf("logging: resolve state path: %w", err)
	}
	return p, nil
}

// Setup points the standard logger at stderr plus the file at path. An
// empty path means DefaultPath; Disabled keeps stderr only. It returns the
// resolved file path ("" when file logging is off).
func Setup(path string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	log.SetOutput(os.Stderr)

	if path == Disabled {
		return "", nil
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("logging: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("logging: open log file: %w", err)
	}

	logFile = f
	logPath = path
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return path, nil
}

// Path returns the active log file path (empty string if not initialised)
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Close restores stderr-only logging and closes the file
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(os.Stderr)
	return closeLocked()
}

func closeLocked() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logPath = ""
	return err
}
