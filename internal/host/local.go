package host

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/gfpath"
)

// Options configures a Local host. Zero values fall back to the
// platform's defaults.
type Options struct {
	Shell                string
	ShellArgs            []string
	Terminal             string
	TerminalArgs         []string
	PreferCLIFileChooser bool
	BaseEnv              map[string]string
}

// Local is the Host implementation for the machine GradeFast runs on.
// Platform differences (shell and file-manager openers, the GUI folder
// picker, path conversion) live in the per-platform files.
type Local struct {
	ch   channel.Channel
	opts Options
}

func NewLocal(ch channel.Channel, opts Options) *Local {
	return &Local{ch: ch, opts: opts}
}

// LocalPath converts a gfpath to a native path, expanding a leading "~".
func (h *Local) LocalPath(p gfpath.Path) string {
	s := p.String()
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = home + s[1:]
		}
	}
	return filepath.FromSlash(s)
}

func (h *Local) shellArgv(cmdline string) []string {
	if h.opts.Shell != "" {
		argv := append([]string{h.opts.Shell}, h.opts.ShellArgs...)
		return append(argv, cmdline)
	}
	shell, args := defaultShell()
	argv := append([]string{shell}, args...)
	return append(argv, cmdline)
}

func (h *Local) buildCmd(cmdline string, dir gfpath.Path, env map[string]string) *exec.Cmd {
	argv := h.shellArgv(cmdline)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = h.LocalPath(dir)

	environ := os.Environ()
	for k, v := range h.opts.BaseEnv {
		environ = append(environ, k+"="+v)
	}
	for k, v := range env {
		environ = append(environ, k+"="+v)
	}
	cmd.Env = environ
	cmd.SysProcAttr = sysProcAttr()
	return cmd
}

// RunCommand implements Host.
func (h *Local) RunCommand(ctx context.Context, cmdline string, dir gfpath.Path, env map[string]string, stdin string, printOutput bool) (string, error) {
	cmd := h.buildCmd(cmdline, dir, env)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var stdinPipe io.WriteCloser
	if stdin != "" || printOutput {
		var err error
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			return "", &CommandStartError{Command: cmdline, Err: err}
		}
	}

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return "", &CommandStartError{Command: cmdline, Err: err}
	}

	// Reader goroutine: each chunk goes to the terminal as it arrives
	// and into the capture buffer.
	var captured strings.Builder
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				chunk := string(buf[:n])
				captured.WriteString(chunk)
				if printOutput {
					h.ch.Output(channel.NewMsgSep("", "").Print(chunk))
				}
			}
			if err != nil {
				return
			}
		}
	}()

	if stdin != "" {
		// Pre-supplied input: write and close. A process that exits
		// without reading it all produces a broken pipe; ignore it.
		_, _ = io.WriteString(stdinPipe, stdin)
		_ = stdinPipe.Close()
	}

	procDone := make(chan struct{})
	var lease *channel.StdinLease
	if stdin == "" && printOutput {
		// The process owns the terminal's input until it exits.
		lease = h.ch.BlockingInput()
		go forwardStdin(lease, stdinPipe, procDone)
	}

	// Cancellation: ask nicely, then insist.
	go func() {
		select {
		case <-ctx.Done():
			terminateProcess(cmd, false)
			select {
			case <-procDone:
			case <-time.After(2 * time.Second):
				terminateProcess(cmd, true)
			}
		case <-procDone:
		}
	}()

	waitErr := cmd.Wait()
	close(procDone)
	_ = pw.Close()
	<-readerDone
	if lease != nil {
		lease.Release()
	}

	output := captured.String()
	if ctx.Err() != nil {
		return output, channel.ErrInterrupted
	}
	if waitErr != nil {
		return output, &CommandRunError{Command: cmdline, ExitCode: exitCode(waitErr)}
	}
	return output, nil
}

// forwardStdin feeds terminal lines into the subprocess until it exits
// or the write side fails. Reads go through the lease so a line typed
// just after the process exits is handed to the next prompt instead of
// being swallowed.
func forwardStdin(lease *channel.StdinLease, to io.WriteCloser, done <-chan struct{}) {
	defer func() { _ = to.Close() }()
	for {
		line, ok := lease.ReadLine(done)
		if !ok {
			return
		}
		if _, err := io.WriteString(to, line+"\n"); err != nil {
			return
		}
	}
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// RunCommandPassthrough implements Host.
func (h *Local) RunCommandPassthrough(cmdline string, dir gfpath.Path, env map[string]string) error {
	cmd := h.buildCmd(cmdline, dir, env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return &CommandStartError{Command: cmdline, Err: err}
	}
	if err := cmd.Wait(); err != nil {
		return &CommandRunError{Command: cmdline, ExitCode: exitCode(err)}
	}
	return nil
}

// StartBackgroundCommand implements Host.
func (h *Local) StartBackgroundCommand(cmdline string, dir gfpath.Path, env map[string]string, stdin string) (*BackgroundCommand, error) {
	cmd := h.buildCmd(cmdline, dir, env)

	var mu sync.Mutex
	out := &bytes.Buffer{}
	w := &lockedWriter{mu: &mu, w: out}
	cmd.Stdout = w
	cmd.Stderr = w

	var stdinPipe io.WriteCloser
	if stdin != "" {
		var err error
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			return nil, &CommandStartError{Command: cmdline, Err: err}
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, &CommandStartError{Command: cmdline, Err: err}
	}
	if stdinPipe != nil {
		go func() {
			_, _ = io.WriteString(stdinPipe, stdin)
			_ = stdinPipe.Close()
		}()
	}

	return &BackgroundCommand{
		description: fmt.Sprintf("%s (in %s)", cmdline, dir),
		cmd:         cmd,
		output:      out,
		outMu:       &mu,
	}, nil
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// Exists implements Host.
func (h *Local) Exists(p gfpath.Path) bool {
	_, err := os.Stat(h.LocalPath(p))
	return err == nil
}

// FolderExists implements Host.
func (h *Local) FolderExists(p gfpath.Path) bool {
	info, err := os.Stat(h.LocalPath(p))
	return err == nil && info.IsDir()
}

// ReadTextFile implements Host.
func (h *Local) ReadTextFile(p gfpath.Path) (string, error) {
	data, err := os.ReadFile(h.LocalPath(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListFolder implements Host. Entries are sorted by name; symlinks are
// classified by their target.
func (h *Local) ListFolder(p gfpath.Path) ([]FolderEntry, error) {
	entries, err := os.ReadDir(h.LocalPath(p))
	if err != nil {
		return nil, err
	}

	out := make([]FolderEntry, 0, len(entries))
	for _, e := range entries {
		fe := FolderEntry{Name: e.Name()}
		fe.IsLink = e.Type()&os.ModeSymlink != 0

		info, err := os.Stat(filepath.Join(h.LocalPath(p), e.Name()))
		switch {
		case err != nil:
			fe.Kind = KindUnknown
		case info.IsDir():
			fe.Kind = KindFolder
		case info.Mode().IsRegular():
			fe.Kind = KindFile
		default:
			fe.Kind = KindOther
		}
		out = append(out, fe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MoveToFolder implements Host.
func (h *Local) MoveToFolder(file gfpath.Path, folder gfpath.Path) error {
	dest := h.LocalPath(folder)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.Rename(h.LocalPath(file), filepath.Join(dest, file.Basename()))
}

// Unzip implements Host. Entries that would escape the destination
// folder are skipped.
func (h *Local) Unzip(file gfpath.Path, folder gfpath.Path) error {
	r, err := zip.OpenReader(h.LocalPath(file))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	dest := h.LocalPath(folder)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// OpenShell implements Host.
func (h *Local) OpenShell(dir gfpath.Path) {
	cmd := h.openShellCmd(h.LocalPath(dir))
	if cmd == nil {
		h.ch.Output(channel.NewMsg().Error("Don't know how to open a shell on this platform"))
		return
	}
	if err := cmd.Start(); err != nil {
		h.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Could not open shell: %v", err)))
		return
	}
	go func() { _ = cmd.Wait() }()
}

// OpenFolder implements Host.
func (h *Local) OpenFolder(dir gfpath.Path) {
	cmd := openFolderCmd(h.LocalPath(dir))
	if cmd == nil {
		h.ch.Output(channel.NewMsg().Error("Don't know how to open a file manager on this platform"))
		return
	}
	if err := cmd.Start(); err != nil {
		h.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Could not open folder: %v", err)))
		return
	}
	go func() { _ = cmd.Wait() }()
}
