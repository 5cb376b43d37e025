//go:build !windows

package host

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/gfpath"
)

func testHost(t *testing.T) (*Local, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ch := channel.NewConsole(channel.Options{
		In:  strings.NewReader(""),
		Out: &out,
	})
	return NewLocal(ch, Options{}), &out
}

func tempPath(t *testing.T) gfpath.Path {
	t.Helper()
	return gfpath.New(filepath.ToSlash(t.TempDir()))
}

func TestRunCommandCapturesAndStreams(t *testing.T) {
	h, out := testHost(t)
	dir := tempPath(t)

	captured, err := h.RunCommand(context.Background(),
		"echo hello; echo oops 1>&2", dir, nil, "x", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(captured, "hello") || !strings.Contains(captured, "oops") {
		t.Errorf("captured = %q, want merged stdout+stderr", captured)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("terminal did not see streamed output: %q", out.String())
	}
}

func TestRunCommandStdin(t *testing.T) {
	h, _ := testHost(t)
	captured, err := h.RunCommand(context.Background(),
		"cat", tempPath(t), nil, "fed to cat\n", false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(captured, "fed to cat") {
		t.Errorf("captured = %q", captured)
	}
}

func TestRunCommandForwardsTerminalLines(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	ch := channel.NewConsole(channel.Options{In: pr, Out: &out})
	h := NewLocal(ch, Options{})

	go func() { _, _ = pw.Write([]byte("forwarded\n")) }()
	captured, err := h.RunCommand(context.Background(),
		"head -n 1", tempPath(t), nil, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(captured, "forwarded") {
		t.Errorf("captured = %q, want the forwarded line", captured)
	}

	// A line typed just after the process exits answers the next prompt
	// instead of being swallowed by the dead forwarder.
	go func() { _, _ = pw.Write([]byte("for the menu\n")) }()
	line, err := ch.Input("", nil)
	if err != nil || line != "for the menu" {
		t.Errorf("Input after command = %q, %v", line, err)
	}
}

func TestRunCommandEnvAndDir(t *testing.T) {
	h, _ := testHost(t)
	dir := tempPath(t)

	captured, err := h.RunCommand(context.Background(),
		"echo $GREETING; pwd", dir, map[string]string{"GREETING": "hi there"}, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(captured, "hi there") {
		t.Errorf("env not passed: %q", captured)
	}
	if !strings.Contains(captured, filepath.Base(h.LocalPath(dir))) {
		t.Errorf("wrong working dir: %q", captured)
	}
}

func TestRunCommandNonzeroExit(t *testing.T) {
	h, _ := testHost(t)
	captured, err := h.RunCommand(context.Background(),
		"echo partial; exit 3", tempPath(t), nil, "", false)

	var runErr *CommandRunError
	if !errors.As(err, &runErr) {
		t.Fatalf("err = %v, want CommandRunError", err)
	}
	if runErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d", runErr.ExitCode)
	}
	if !strings.Contains(captured, "partial") {
		t.Errorf("output lost on failure: %q", captured)
	}
}

func TestRunCommandBadShellBinary(t *testing.T) {
	var out bytes.Buffer
	ch := channel.NewConsole(channel.Options{In: strings.NewReader(""), Out: &out})
	h := NewLocal(ch, Options{Shell: "/nonexistent/shell", ShellArgs: []string{"-c"}})

	_, err := h.RunCommand(context.Background(), "true", tempPath(t), nil, "", false)
	var startErr *CommandStartError
	if !errors.As(err, &startErr) {
		t.Fatalf("err = %v, want CommandStartError", err)
	}
}

func TestRunCommandInterrupt(t *testing.T) {
	h, _ := testHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := h.RunCommand(ctx, "sleep 30", tempPath(t), nil, "", false)
	if !errors.Is(err, channel.ErrInterrupted) {
		t.Errorf("err = %v, want ErrInterrupted", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("interrupt did not stop the process promptly")
	}
}

func TestBackgroundCommand(t *testing.T) {
	h, _ := testHost(t)
	bg, err := h.StartBackgroundCommand("cat; echo done", tempPath(t), nil, "bg input\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(bg.GetDescription(), "cat; echo done") {
		t.Errorf("description = %q", bg.GetDescription())
	}

	bg.Wait()
	bg.Wait() // idempotent
	if got := bg.GetOutput(); !strings.Contains(got, "bg input") || !strings.Contains(got, "done") {
		t.Errorf("output = %q", got)
	}
	if bg.GetError() != "" {
		t.Errorf("GetError = %q", bg.GetError())
	}
}

func TestBackgroundCommandFailure(t *testing.T) {
	h, _ := testHost(t)
	bg, err := h.StartBackgroundCommand("exit 7", tempPath(t), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	bg.Wait()
	if bg.GetError() == "" {
		t.Error("expected GetError after nonzero exit")
	}
}

func TestFilesystemProbes(t *testing.T) {
	h, _ := testHost(t)
	dir := tempPath(t)
	file := dir.Append("notes.txt")
	if err := os.WriteFile(h.LocalPath(file), []byte("remember this"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !h.Exists(file) || !h.Exists(dir) {
		t.Error("Exists false for existing entries")
	}
	if h.FolderExists(file) {
		t.Error("FolderExists true for a file")
	}
	if !h.FolderExists(dir) {
		t.Error("FolderExists false for a folder")
	}

	text, err := h.ReadTextFile(file)
	if err != nil || text != "remember this" {
		t.Errorf("ReadTextFile = %q, %v", text, err)
	}
	if _, err := h.ReadTextFile(dir.Append("missing.txt")); err == nil {
		t.Error("expected error reading missing file")
	}
}

func TestListFolder(t *testing.T) {
	h, _ := testHost(t)
	dir := tempPath(t)
	base := h.LocalPath(dir)
	if err := os.Mkdir(filepath.Join(base, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(base, "sub"), filepath.Join(base, "link")); err != nil {
		t.Fatal(err)
	}

	entries, err := h.ListFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]FolderEntry)
	for _, e := range entries {
		byName[e.Name] = e
	}
	if e := byName["a.txt"]; e.Kind != KindFile || e.IsLink {
		t.Errorf("a.txt = %+v", e)
	}
	if e := byName["sub"]; e.Kind != KindFolder {
		t.Errorf("sub = %+v", e)
	}
	// Symlinks are classified by target.
	if e := byName["link"]; e.Kind != KindFolder || !e.IsLink {
		t.Errorf("link = %+v", e)
	}
}

func TestMoveToFolder(t *testing.T) {
	h, _ := testHost(t)
	dir := tempPath(t)
	file := dir.Append("hw1.java")
	if err := os.WriteFile(h.LocalPath(file), []byte("class X {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := dir.Append("hw1")
	if err := h.MoveToFolder(file, dest); err != nil {
		t.Fatal(err)
	}
	if h.Exists(file) {
		t.Error("source still exists")
	}
	if !h.Exists(dest.Append("hw1.java")) {
		t.Error("file not moved into folder")
	}
}

func TestUnzip(t *testing.T) {
	h, _ := testHost(t)
	dir := tempPath(t)

	zipNative := filepath.Join(h.LocalPath(dir), "sub.zip")
	f, err := os.Create(zipNative)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("inner/main.c")
	_, _ = w.Write([]byte("int main() {}"))
	w, _ = zw.Create("../escape.txt")
	_, _ = w.Write([]byte("nope"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	dest := dir.Append("sub")
	if err := h.Unzip(dir.Append("sub.zip"), dest); err != nil {
		t.Fatal(err)
	}
	text, err := h.ReadTextFile(dest.Append("inner/main.c"))
	if err != nil || text != "int main() {}" {
		t.Errorf("extracted = %q, %v", text, err)
	}
	if h.Exists(dir.Append("escape.txt")) {
		t.Error("zip entry escaped the destination folder")
	}
}

func TestGfPathFoldsHome(t *testing.T) {
	h, _ := testHost(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	p := h.GfPath(filepath.Join(home, "grading", "lab1"))
	if p.String() != "~/grading/lab1" {
		t.Errorf("GfPath = %q", p)
	}
	if h.GfPath(home).String() != "~" {
		t.Errorf("GfPath(home) = %q", h.GfPath(home))
	}
}
