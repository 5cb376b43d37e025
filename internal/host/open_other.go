//go:build !linux && !darwin && !windows

package host

import (
	"errors"
	"os/exec"
)

func (h *Local) openShellCmd(dir string) *exec.Cmd {
	term := h.opts.Terminal
	args := h.opts.TerminalArgs
	if term == "" {
		term = "xterm"
	}
	cmd := exec.Command(term, args...)
	cmd.Dir = dir
	return cmd
}

func openFolderCmd(dir string) *exec.Cmd {
	return exec.Command("xdg-open", dir)
}

func guiChooseFolder(start string) (string, error) {
	return "", errors.New("no folder picker on this platform")
}
