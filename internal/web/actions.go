package web

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jhartz/gradefast/internal/grades"
)

// BadSubmissionError reports an action aimed at a submission id that
// does not exist.
type BadSubmissionError struct {
	ID int
}

func (e *BadSubmissionError) Error() string {
	return fmt.Sprintf("no submission with id %d", e.ID)
}

// BadActionError reports a structurally invalid client action: unknown
// type, missing field, or a value of the wrong shape.
type BadActionError struct {
	Reason string
}

func (e *BadActionError) Error() string { return e.Reason }

// clientAction is the parsed "action" object of an _update request.
type clientAction struct {
	Type    string          `json:"type"`
	Path    []int           `json:"path"`
	Index   *int            `json:"index"`
	Value   json.RawMessage `json:"value"`
	Content *actionContent  `json:"content"`
}

type actionContent struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func (a *clientAction) boolValue() (bool, error) {
	var v bool
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return false, &BadActionError{Reason: fmt.Sprintf("%s needs a boolean value", a.Type)}
	}
	return v, nil
}

func (a *clientAction) stringValue() (string, error) {
	var v string
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return "", &BadActionError{Reason: fmt.Sprintf("%s needs a string value", a.Type)}
	}
	return v, nil
}

func (a *clientAction) numberValue() (float64, error) {
	var v float64
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return 0, &BadActionError{Reason: fmt.Sprintf("%s needs a numeric value", a.Type)}
	}
	return v, nil
}

func (a *clientAction) indexValue() (int, error) {
	if a.Index == nil {
		return 0, &BadActionError{Reason: fmt.Sprintf("%s needs an index", a.Type)}
	}
	return *a.Index, nil
}

func (a *clientAction) contentValue() (*actionContent, error) {
	if a.Content == nil || a.Content.Name == "" {
		return nil, &BadActionError{Reason: fmt.Sprintf("%s needs content with a name", a.Type)}
	}
	return a.Content, nil
}

// applyAction mutates the grade tree through its locked mutators, so
// concurrent score reads from the grading loop never see a torn tree.
// Hint structure changes (ADD_HINT, EDIT_HINT) reach every submission
// because the hint lists are shared.
func applyAction(g *grades.Grade, a clientAction) error {
	switch a.Type {
	case "SET_LATE":
		v, err := a.boolValue()
		if err != nil {
			return err
		}
		g.SetLate(v)
		return nil

	case "SET_OVERALL_COMMENTS":
		v, err := a.stringValue()
		if err != nil {
			return err
		}
		g.SetOverallComments(v)
		return nil

	case "ADD_HINT":
		content, err := a.contentValue()
		if err != nil {
			return err
		}
		return gradeErr(g.AddHintAt(a.Path, content.Name, content.Value))

	case "EDIT_HINT":
		content, err := a.contentValue()
		if err != nil {
			return err
		}
		index, err := a.indexValue()
		if err != nil {
			return err
		}
		return gradeErr(g.ReplaceHintAt(a.Path, index, content.Name, content.Value))

	case "SET_ENABLED":
		v, err := a.boolValue()
		if err != nil {
			return err
		}
		return gradeErr(g.SetEnabledAt(a.Path, v))

	case "SET_SCORE":
		v, err := a.numberValue()
		if err != nil {
			return err
		}
		return gradeErr(g.SetEffectiveScoreAt(a.Path, v))

	case "SET_COMMENTS":
		v, err := a.stringValue()
		if err != nil {
			return err
		}
		return gradeErr(g.SetCommentsAt(a.Path, v))

	case "SET_HINT":
		v, err := a.boolValue()
		if err != nil {
			return err
		}
		index, err := a.indexValue()
		if err != nil {
			return err
		}
		return gradeErr(g.SetHintEnabledAt(a.Path, index, v))

	default:
		return &BadActionError{Reason: fmt.Sprintf("unknown action type %q", a.Type)}
	}
}

// gradeErr classifies grade-tree errors for the client: bad paths keep
// their type, everything else (wrong item kind, hint index out of range)
// becomes a BadActionError with the underlying message.
func gradeErr(err error) error {
	if err == nil {
		return nil
	}
	var pathErr *grades.BadPathError
	if errors.As(err, &pathErr) {
		return err
	}
	return &BadActionError{Reason: err.Error()}
}
