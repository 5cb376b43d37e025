//go:build windows

package host

import (
	"os/exec"
	"syscall"
)

func defaultShell() (string, []string) {
	return "cmd", []string{"/c"}
}

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// Windows has no TERM; both phases kill outright.
func terminateProcess(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
