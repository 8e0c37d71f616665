//go:build !windows

package autostart

func enableRegistry([]string) error { return ErrUnsupported }
func disableRegistry() error        { return ErrUnsupported }
func isEnabledRegistry() bool       { return false }
