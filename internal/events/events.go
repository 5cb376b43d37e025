// Package events implements the internal publish/subscribe bridge between
// the grader loop and the gradebook server. It is distinct from the SSE
// channel the browser sees: events here never leave the process.
package events

import "sync/atomic"

var lastEventID atomic.Int64

// nextEventID returns a process-wide monotonically increasing id.
func nextEventID() int64 {
	return lastEventID.Add(1)
}

// Event is implemented by every event type dispatched on the Bus.
type Event interface {
	EventID() int64
}

// Meta carries the identity shared by all events. Embed it and construct
// with NewMeta so the id is assigned exactly once.
type Meta struct {
	id int64
}

// NewMeta allocates the next event id.
func NewMeta() Meta {
	return Meta{id: nextEventID()}
}

// EventID returns the process-wide id of this event.
func (m Meta) EventID() int64 {
	return m.id
}

// SubmissionInfo is the thin view of a submission carried on events, kept
// free of the submissions package so payloads stay one-way.
type SubmissionInfo struct {
	ID       int
	Name     string
	FullName string
	Path     string
}

// NewSubmissionList announces that submissions were added or replaced and
// carries the full current list.
type NewSubmissionList struct {
	Meta
	Submissions []SubmissionInfo
}

// NewSubmissions signals that the submission set changed; handlers re-pull
// the list from the submission manager.
type NewSubmissions struct {
	Meta
}

// SubmissionStarted fires when the grader begins a submission. HTMLLog and
// TextLog are the live mirrors attached for the duration of the run.
type SubmissionStarted struct {
	Meta
	SubmissionID int
	HTMLLog      LogView
	TextLog      LogView
}

// LogView is the read side of a memory log carried on events.
type LogView interface {
	Name() string
	Content() string
}

// SubmissionFinished fires when the grader completes a submission and
// carries the rendered HTML log of the run.
type SubmissionFinished struct {
	Meta
	SubmissionID int
	LogHTML      string
}

// EndOfSubmissions fires when the grading loop exits.
type EndOfSubmissions struct {
	Meta
}

// AuthRequested is dispatched by the gradebook when a new client connects;
// the grader answers it by prompting the terminal user.
type AuthRequested struct {
	Meta
	RequestDetails string
}

// AuthGranted is the grader's affirmative answer to an AuthRequested event.
type AuthGranted struct {
	Meta
	AuthEventID int64
}
