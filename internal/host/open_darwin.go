//go:build darwin

package host

import (
	"fmt"
	"os/exec"
	"strings"
)

func (h *Local) openShellCmd(dir string) *exec.Cmd {
	if h.opts.Terminal != "" {
		cmd := exec.Command(h.opts.Terminal, h.opts.TerminalArgs...)
		cmd.Dir = dir
		return cmd
	}
	return exec.Command("open", "-a", "Terminal", dir)
}

func openFolderCmd(dir string) *exec.Cmd {
	return exec.Command("open", dir)
}

func guiChooseFolder(start string) (string, error) {
	script := fmt.Sprintf(
		`POSIX path of (choose folder with prompt "Choose Folder" default location POSIX file %q)`,
		start)
	out, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "/\n"), nil
}
