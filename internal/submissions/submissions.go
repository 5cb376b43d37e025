// Package submissions maintains the ordered set of discovered submissions
// and their derived statistics. The grader (main goroutine) is the only
// writer; the gradebook server reads under the shared lock.
package submissions

import (
	"fmt"
	"sync"
	"time"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/events"
	"github.com/jhartz/gradefast/internal/gfpath"
	"github.com/jhartz/gradefast/internal/grades"
)

// Interval is one span of time spent grading a submission. End is nil
// while the timer is running.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Submission is one student's unit of work.
type Submission struct {
	ID       int
	Name     string
	FullName string
	Path     gfpath.Path
	Grade    *grades.Grade

	Intervals []Interval
	HTMLLogs  []*channel.MemoryLog
	TextLogs  []*channel.MemoryLog
}

// TotalTime sums the submission's closed intervals.
func (s *Submission) TotalTime() time.Duration {
	var total time.Duration
	for _, iv := range s.Intervals {
		if iv.End != nil {
			total += iv.End.Sub(iv.Start)
		}
	}
	return total
}

// TimerContext identifies a running timer started by StartTimer.
type TimerContext struct {
	submissionID int
	index        int
}

// Manager is the insertion-ordered map of submissions. Ids increase
// monotonically and are never reused, even after a drop.
type Manager struct {
	mu     sync.RWMutex
	bus    *events.Bus
	order  []int
	byID   map[int]*Submission
	lastID int
}

// NewManager creates an empty Manager that announces changes on bus.
func NewManager(bus *events.Bus) *Manager {
	return &Manager{
		bus:  bus,
		byID: make(map[int]*Submission),
	}
}

// Add registers a new submission and returns it. Unless suppressEvent is
// set, a NewSubmissions event is dispatched so the gradebook re-pulls the
// list.
func (m *Manager) Add(name, fullName string, path gfpath.Path, grade *grades.Grade, suppressEvent bool) *Submission {
	m.mu.Lock()
	m.lastID++
	sub := &Submission{
		ID:       m.lastID,
		Name:     name,
		FullName: fullName,
		Path:     path,
		Grade:    grade,
	}
	m.order = append(m.order, sub.ID)
	m.byID[sub.ID] = sub
	m.mu.Unlock()

	if !suppressEvent && m.bus != nil {
		m.bus.Dispatch(events.NewSubmissions{Meta: events.NewMeta()})
	}
	return sub
}

// RestoreAt inserts a submission with a fixed id, used when loading a
// save file. Ids handed out afterward continue past the highest restored
// id. No event is dispatched; callers announce the full list when done.
func (m *Manager) RestoreAt(id int, name, fullName string, path gfpath.Path, grade *grades.Grade) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 {
		return nil, fmt.Errorf("invalid submission id %d", id)
	}
	if _, ok := m.byID[id]; ok {
		return nil, fmt.Errorf("submission id %d already exists", id)
	}

	sub := &Submission{
		ID:       id,
		Name:     name,
		FullName: fullName,
		Path:     path,
		Grade:    grade,
	}
	m.order = append(m.order, id)
	m.byID[id] = sub
	if id > m.lastID {
		m.lastID = id
	}
	return sub, nil
}

// Drop removes a submission. Its id is never reissued.
func (m *Manager) Drop(id int) error {
	m.mu.Lock()
	if _, ok := m.byID[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("no submission with id %d", id)
	}
	delete(m.byID, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Dispatch(events.NewSubmissions{Meta: events.NewMeta()})
	}
	return nil
}

// Get returns the submission with the given id, or nil.
func (m *Manager) Get(id int) *Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// All returns the submissions in insertion order.
func (m *Manager) All() []*Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Submission, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Len returns the number of submissions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// FirstID returns the id of the first submission, or 0 if none.
func (m *Manager) FirstID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return 0
	}
	return m.order[0]
}

// LastID returns the id of the last submission, or 0 if none.
func (m *Manager) LastID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return 0
	}
	return m.order[len(m.order)-1]
}

// NextID returns the id following id in insertion order, or 0 at the end.
func (m *Manager) NextID(id int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, oid := range m.order {
		if oid == id && i+1 < len(m.order) {
			return m.order[i+1]
		}
	}
	return 0
}

// PreviousID returns the id preceding id in insertion order, or 0 at the
// start.
func (m *Manager) PreviousID(id int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, oid := range m.order {
		if oid == id && i > 0 {
			return m.order[i-1]
		}
	}
	return 0
}

// StartTimer opens a new grading interval on the submission.
func (m *Manager) StartTimer(id int) (TimerContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byID[id]
	if !ok {
		return TimerContext{}, fmt.Errorf("no submission with id %d", id)
	}
	sub.Intervals = append(sub.Intervals, Interval{Start: time.Now()})
	return TimerContext{submissionID: id, index: len(sub.Intervals) - 1}, nil
}

// StopTimer closes the interval opened by StartTimer. Stopping twice is a
// no-op.
func (m *Manager) StopTimer(ctx TimerContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byID[ctx.submissionID]
	if !ok || ctx.index >= len(sub.Intervals) {
		return
	}
	if sub.Intervals[ctx.index].End == nil {
		now := time.Now()
		sub.Intervals[ctx.index].End = &now
	}
}

// AddLogs attaches the memory logs recorded while grading the submission.
func (m *Manager) AddLogs(id int, html, text *channel.MemoryLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.byID[id]; ok {
		sub.HTMLLogs = append(sub.HTMLLogs, html)
		sub.TextLogs = append(sub.TextLogs, text)
	}
}

// Infos returns the thin event-payload view of the submissions.
func (m *Manager) Infos() []events.SubmissionInfo {
	subs := m.All()
	out := make([]events.SubmissionInfo, 0, len(subs))
	for _, s := range subs {
		out = append(out, events.SubmissionInfo{
			ID:       s.ID,
			Name:     s.Name,
			FullName: s.FullName,
			Path:     s.Path.String(),
		})
	}
	return out
}
