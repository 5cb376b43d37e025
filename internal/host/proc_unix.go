//go:build !windows

package host

import (
	"os/exec"
	"syscall"
)

func defaultShell() (string, []string) {
	return "sh", []string{"-c"}
}

// Child processes get their own process group so terminate reaches the
// whole shell pipeline, not just the shell.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	_ = syscall.Kill(-cmd.Process.Pid, sig)
}
