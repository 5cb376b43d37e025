package web

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// lastUpdateID numbers ClientUpdates process-wide so every subscriber
// sees a strictly increasing id sequence.
var lastUpdateID atomic.Int64

// ClientUpdate is one message pushed to gradebook browsers over SSE.
// Privileged updates (anything carrying grade data) are withheld from
// subscribers that have not completed the auth handshake.
type ClientUpdate struct {
	ID                     int64
	Event                  string
	Data                   string
	RequiresAuthentication bool
}

func newUpdate(event string, data any, privileged bool) ClientUpdate {
	encoded, err := json.Marshal(data)
	if err != nil {
		encoded = []byte("{}")
	}
	return ClientUpdate{
		ID:                     lastUpdateID.Add(1),
		Event:                  event,
		Data:                   string(encoded),
		RequiresAuthentication: privileged,
	}
}

// NewListUpdate carries the full submission list.
func NewListUpdate(list any) ClientUpdate {
	return newUpdate("update", map[string]any{
		"update_type": "LIST",
		"update_data": list,
	}, true)
}

// NewSubmissionUpdate announces the submission currently being graded.
func NewSubmissionUpdate(submissionID int) ClientUpdate {
	return newUpdate("update", map[string]any{
		"update_type": "SUBMISSION_STARTED",
		"update_data": map[string]any{"submission_id": submissionID},
	}, true)
}

// NewLogUpdate carries the rendered HTML log of a finished submission.
func NewLogUpdate(submissionID int, logHTML string) ClientUpdate {
	return newUpdate("update", map[string]any{
		"update_type": "LOG",
		"update_data": map[string]any{
			"submission_id": submissionID,
			"log":           logHTML,
		},
	}, true)
}

// NewGradeUpdate carries a submission's updated grade state after a
// client action, tagged with the originating client for echo
// suppression.
func NewGradeUpdate(submissionID int, grade map[string]any, clientID string, clientSeq int64) ClientUpdate {
	return newUpdate("update", map[string]any{
		"update_type": "GRADE",
		"update_data": map[string]any{
			"submission_id":          submissionID,
			"grade":                  grade,
			"originating_client_id":  clientID,
			"originating_client_seq": clientSeq,
		},
	}, true)
}

// NewDoneUpdate tells clients grading is over. Not privileged: it
// carries nothing sensitive and lets unauthenticated pages stop waiting.
func NewDoneUpdate() ClientUpdate {
	return newUpdate("done", map[string]any{"grading_done": true}, false)
}

// NewAuthUpdate completes the handshake for one client.
func NewAuthUpdate(clientID string) ClientUpdate {
	return newUpdate("auth", map[string]any{"client_id": clientID}, false)
}

// Encode renders the update in SSE wire format:
// "id: <id>\nevent: <name>\ndata: <line>...\n\n". An update with empty
// data encodes to nothing at all.
func (u ClientUpdate) Encode() string {
	if u.Data == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", u.ID)
	if u.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", u.Event)
	}
	for _, line := range strings.Split(u.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}
