package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhartz/gradefast/internal/gfpath"
	"github.com/jhartz/gradefast/internal/grades"
	"github.com/jhartz/gradefast/internal/submissions"
)

const submissionKeyPrefix = "submission/"

// IntervalRecord is one closed or open grading interval in the save file.
type IntervalRecord struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// SubmissionRecord is the serialized form of one submission.
type SubmissionRecord struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	FullName  string            `json:"full_name"`
	Path      string            `json:"path"`
	Grade     grades.GradeState `json:"grade"`
	Intervals []IntervalRecord  `json:"intervals,omitempty"`
}

func submissionKey(id int) string {
	return fmt.Sprintf("%s%08d", submissionKeyPrefix, id)
}

// SaveSubmission writes one submission's current state.
func (s *Store) SaveSubmission(sub *submissions.Submission) error {
	rec := SubmissionRecord{
		ID:       sub.ID,
		Name:     sub.Name,
		FullName: sub.FullName,
		Path:     sub.Path.String(),
		Grade:    sub.Grade.State(),
	}
	for _, iv := range sub.Intervals {
		rec.Intervals = append(rec.Intervals, IntervalRecord{Start: iv.Start, End: iv.End})
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode submission %d: %w", sub.ID, err)
	}
	return s.Put(submissionKey(sub.ID), encoded)
}

// SaveAll writes every submission's current state.
func (s *Store) SaveAll(subs *submissions.Manager) error {
	for _, sub := range subs.All() {
		if err := s.SaveSubmission(sub); err != nil {
			return err
		}
	}
	return nil
}

// LoadSubmissions restores saved submissions into an empty manager,
// building each grade from defs and applying the saved state. Returns the
// number of submissions restored.
func (s *Store) LoadSubmissions(subs *submissions.Manager, defs []grades.Def) (int, error) {
	keys, err := s.Keys(submissionKeyPrefix)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, key := range keys {
		encoded, ok, err := s.Get(key)
		if err != nil {
			return restored, err
		}
		if !ok {
			continue
		}

		var rec SubmissionRecord
		if err := json.Unmarshal(encoded, &rec); err != nil {
			return restored, fmt.Errorf("decode %q: %w", key, err)
		}

		grade := grades.Build(defs)
		if err := grade.Restore(rec.Grade); err != nil {
			return restored, fmt.Errorf("restore %q: %w", key, err)
		}

		sub, err := subs.RestoreAt(rec.ID, rec.Name, rec.FullName, gfpath.New(rec.Path), grade)
		if err != nil {
			return restored, fmt.Errorf("restore %q: %w", key, err)
		}
		for _, iv := range rec.Intervals {
			sub.Intervals = append(sub.Intervals, submissions.Interval{Start: iv.Start, End: iv.End})
		}
		restored++
	}
	return restored, nil
}
