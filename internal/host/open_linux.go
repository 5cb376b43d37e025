//go:build linux

package host

import (
	"os/exec"
	"strings"
)

func (h *Local) openShellCmd(dir string) *exec.Cmd {
	term := h.opts.Terminal
	args := h.opts.TerminalArgs
	if term == "" {
		term = "x-terminal-emulator"
	}
	cmd := exec.Command(term, args...)
	cmd.Dir = dir
	return cmd
}

func openFolderCmd(dir string) *exec.Cmd {
	return exec.Command("xdg-open", dir)
}

func guiChooseFolder(start string) (string, error) {
	out, err := exec.Command("zenity", "--file-selection", "--directory",
		"--title", "Choose Folder", "--filename", start+"/").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
