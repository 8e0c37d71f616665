//go:build windows

package osutils

import (
	"runtime"

	"golang.org/x/sys/windows"
)

var (
	kernel32                    = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadExecutionState = kernel32.NewProc("SetThreadExecutionState")
)

const (
	esSystemRequired  = 0x00000001
	esDisplayRequired = 0x00000002
	esContinuous      = 0x80000000
)

// The execution state belongs to the calling thread, so every change is
// made from one locked OS thread
func platformSetAwake() func(bool) error {
	type request struct {
		awake bool
		done  chan error
	}
	reqs := make(chan request)

	go func() {
		runtime.LockOSThread()
		for r := range reqs {
			flags := uintptr(esContinuous)
			if r.awake {
				flags |= esSystemRequired | esDisplayRequired
			}
			ret, _, err := procSetThreadExecutionState.Call(flags)
			if ret == 0 {
				r.done <- err
				continue
			}
			r.done <- nil
		}
	}()

	return func(awake bool) error {
		done := make(chan error, 1)
		reqs <- request{awake: awake, done: done}
		return <-done
	}
}
