package channel

import (
	"fmt"
	"os"
	"sync"
)

// Log is a read-only mirror of a Channel. Mirrors only ever observe
// output; they have no input side by construction.
type Log interface {
	Output(m *Msg)
}

// MemoryLog accumulates channel output in memory, either as plain text or
// as color-tagged HTML. The grader attaches one of each per submission.
type MemoryLog struct {
	mu   sync.Mutex
	name string
	html bool
	buf  []byte
	done bool
}

// NewMemoryLog creates a plain-text memory mirror.
func NewMemoryLog(name string) *MemoryLog {
	return &MemoryLog{name: name}
}

// NewMemoryHTMLLog creates an HTML memory mirror.
func NewMemoryHTMLLog(name string) *MemoryLog {
	return &MemoryLog{name: name, html: true}
}

// Name identifies the log (usually the submission name).
func (l *MemoryLog) Name() string {
	return l.name
}

// Output appends the rendered message. Writes after Close are dropped.
func (l *MemoryLog) Output(m *Msg) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	if l.html {
		l.buf = append(l.buf, htmlMsg(m)...)
	} else {
		l.buf = append(l.buf, m.PlainText()...)
	}
}

// Content returns everything recorded so far.
func (l *MemoryLog) Content() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.buf)
}

// Close freezes the log and returns its final contents.
func (l *MemoryLog) Close() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = true
	return string(l.buf)
}

// FileLog mirrors channel output to a file for the lifetime of the
// process, independent of the per-submission memory logs.
type FileLog struct {
	mu   sync.Mutex
	f    *os.File
	html bool
}

// NewFileLog opens (appending) a log file mirror. When html is set the
// mirror records the HTML rendering instead of plain text.
func NewFileLog(path string, html bool) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileLog{f: f, html: html}, nil
}

// Output writes the rendered message to the file.
func (l *FileLog) Output(m *Msg) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.html {
		_, _ = l.f.WriteString(htmlMsg(m))
	} else {
		_, _ = l.f.WriteString(m.PlainText())
	}
}

// Close flushes and closes the underlying file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
