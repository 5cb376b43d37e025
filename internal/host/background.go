package host

import (
	"bytes"
	"os/exec"
	"sync"
)

// BackgroundCommand is a handle to a command started with
// StartBackgroundCommand. The grader queues these and collects them
// after the last submission.
type BackgroundCommand struct {
	description string
	cmd         *exec.Cmd
	output      *bytes.Buffer
	outMu       *sync.Mutex

	waitOnce sync.Once
	waitErr  error
}

// GetDescription returns the command line and folder the command was
// started with.
func (b *BackgroundCommand) GetDescription() string { return b.description }

// Wait blocks until the process exits. Safe to call more than once; the
// exit status is remembered.
func (b *BackgroundCommand) Wait() {
	b.waitOnce.Do(func() {
		b.waitErr = b.cmd.Wait()
	})
}

// Kill terminates the process if it is still running and reaps it.
func (b *BackgroundCommand) Kill() {
	terminateProcess(b.cmd, true)
	b.Wait()
}

// GetOutput returns the output captured so far. After Wait it is the
// complete merged stdout/stderr.
func (b *BackgroundCommand) GetOutput() string {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	return b.output.String()
}

// GetError returns a description of the process's failure, or "" if it
// exited cleanly (or has not been waited on yet).
func (b *BackgroundCommand) GetError() string {
	if b.waitErr == nil {
		return ""
	}
	return b.waitErr.Error()
}
