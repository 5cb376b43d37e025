// Package host mediates all contact with the machine running GradeFast:
// spawning submission commands, probing and reshaping the submission
// tree, and opening shells, file managers, and folder pickers. Paths
// cross this boundary in gfpath form and are converted to native paths
// only here.
package host

import (
	"context"
	"fmt"

	"github.com/jhartz/gradefast/internal/gfpath"
)

// EntryKind classifies a folder listing entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindFolder
	KindOther
	KindUnknown
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindOther:
		return "other"
	}
	return "unknown"
}

// FolderEntry is one entry of a folder listing.
type FolderEntry struct {
	Name   string
	Kind   EntryKind
	IsLink bool
}

// CommandStartError reports a command that could not be started at all:
// missing binary, bad working directory, unusable pipes.
type CommandStartError struct {
	Command string
	Err     error
}

func (e *CommandStartError) Error() string {
	return fmt.Sprintf("could not start %q: %v", e.Command, e.Err)
}

func (e *CommandStartError) Unwrap() error { return e.Err }

// CommandRunError reports a command that started but exited nonzero.
// The captured output is still returned alongside it.
type CommandRunError struct {
	Command  string
	ExitCode int
}

func (e *CommandRunError) Error() string {
	return fmt.Sprintf("%q exited with status %d", e.Command, e.ExitCode)
}

// Host is the machine-facing side of GradeFast.
type Host interface {
	// RunCommand runs cmd in dir with env merged over the base
	// environment, streaming merged stdout/stderr to the channel as it
	// arrives when printOutput is set, and returns the captured output.
	// If stdin is nonempty it is written to the process and closed;
	// otherwise, when printOutput is set, terminal input is forwarded to
	// the process until it exits. Cancelling ctx terminates the process
	// (TERM, then KILL).
	RunCommand(ctx context.Context, cmd string, dir gfpath.Path, env map[string]string, stdin string, printOutput bool) (string, error)

	// RunCommandPassthrough attaches the process directly to the user's
	// terminal and waits for it.
	RunCommandPassthrough(cmd string, dir gfpath.Path, env map[string]string) error

	// StartBackgroundCommand starts cmd detached from the terminal,
	// capturing its output for later retrieval through the handle.
	StartBackgroundCommand(cmd string, dir gfpath.Path, env map[string]string, stdin string) (*BackgroundCommand, error)

	Exists(p gfpath.Path) bool
	FolderExists(p gfpath.Path) bool
	ReadTextFile(p gfpath.Path) (string, error)
	ListFolder(p gfpath.Path) ([]FolderEntry, error)

	// MoveToFolder moves file into folder (creating it), keeping the
	// file's basename.
	MoveToFolder(file gfpath.Path, folder gfpath.Path) error

	// Unzip extracts the archive into folder, creating it.
	Unzip(file gfpath.Path, folder gfpath.Path) error

	// ChooseFolder asks the user to pick a folder, starting from start.
	// ok is false if the user gave up.
	ChooseFolder(start gfpath.Path) (chosen gfpath.Path, ok bool)

	OpenShell(dir gfpath.Path)
	OpenFolder(dir gfpath.Path)
}
