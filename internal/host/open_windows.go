//go:build windows

package host

import (
	"os/exec"
	"strings"
)

func (h *Local) openShellCmd(dir string) *exec.Cmd {
	if h.opts.Terminal != "" {
		cmd := exec.Command(h.opts.Terminal, h.opts.TerminalArgs...)
		cmd.Dir = dir
		return cmd
	}
	cmd := exec.Command("cmd", "/c", "start", "cmd")
	cmd.Dir = dir
	return cmd
}

func openFolderCmd(dir string) *exec.Cmd {
	return exec.Command("explorer", dir)
}

func guiChooseFolder(start string) (string, error) {
	script := `Add-Type -AssemblyName System.Windows.Forms;` +
		`$d = New-Object System.Windows.Forms.FolderBrowserDialog;` +
		`$d.SelectedPath = '` + strings.ReplaceAll(start, "'", "''") + `';` +
		`if ($d.ShowDialog() -eq 'OK') { Write-Output $d.SelectedPath } else { exit 1 }`
	out, err := exec.Command("powershell", "-NoProfile", "-Command", script).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ReplaceAll(string(out), "\\", "/")), nil
}
