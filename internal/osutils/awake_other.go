//go:build !windows

package osutils

import (
	"fmt"
	"os/exec"
	"runtime"
)

// inhibitCommand returns a long-running command that holds a sleep
// inhibitor until it is killed, or nil when none is available
func inhibitCommand() *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("caffeinate", "-di")
	case "linux":
		if _, err := exec.LookPath("systemd-inhibit"); err != nil {
			return nil
		}
		return exec.Command("systemd-inhibit",
			"--what=idle:sleep", "--who=autotyper", "--why=typing", "--mode=block",
			"sleep", "infinity")
	}
	return nil
}

func platformSetAwake() func(bool) error {
	var cmd *exec.Cmd
	return func(awake bool) error {
		if !awake {
			if cmd == nil {
				return nil
			}
			err := cmd.Process.Kill()
			_ = cmd.Wait()
			cmd = nil
			return err
		}

		c := inhibitCommand()
		if c == nil {
			return fmt.Errorf("no sleep inhibitor available on %s", runtime.GOOS)
		}
		if err := c.Start(); err != nil {
			return err
		}
		cmd = c
		return nil
	}
}
