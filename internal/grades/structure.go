package grades

import (
	"fmt"
	"sync"
)

// Hint is a named signed point adjustment attached to a grade item.
type Hint struct {
	Name           string
	Value          float64
	DefaultEnabled bool
}

// HintList is the structural list of hints for one grade item. Every
// submission's instance of that item references the same HintList, so
// adding or editing a hint is visible to all submissions at once.
type HintList struct {
	mu    sync.Mutex
	hints []Hint
}

// NewHintList creates a hint list seeded from the grade structure.
func NewHintList(hints []Hint) *HintList {
	l := &HintList{hints: make([]Hint, len(hints))}
	copy(l.hints, hints)
	return l
}

// All returns a snapshot of the hints.
func (l *HintList) All() []Hint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Hint, len(l.hints))
	copy(out, l.hints)
	return out
}

// Len returns the number of hints.
func (l *HintList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hints)
}

// Add appends a new hint, default-disabled, and returns its index.
func (l *HintList) Add(name string, value float64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hints = append(l.hints, Hint{Name: name, Value: value})
	return len(l.hints) - 1
}

// Replace overwrites the hint at index, preserving its default-enabled
// flag.
func (l *HintList) Replace(index int, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.hints) {
		return fmt.Errorf("hint index %d out of range", index)
	}
	l.hints[index].Name = name
	l.hints[index].Value = value
	return nil
}

// Def is one node of the immutable grade structure, either a ScoreDef
// leaf or a SectionDef.
type Def interface {
	DefName() string
	HintList() *HintList
}

// ScoreDef defines a leaf grade item.
type ScoreDef struct {
	Name            string
	Points          float64
	Hints           *HintList
	DefaultEnabled  bool
	DefaultScore    float64
	DefaultComments string
	Note            string
}

func (d *ScoreDef) DefName() string     { return d.Name }
func (d *ScoreDef) HintList() *HintList { return d.Hints }

// SectionDef defines an internal grade item with ordered children.
type SectionDef struct {
	Name           string
	Children       []Def
	Hints          *HintList
	DefaultEnabled bool
	LateDeduction  float64 // percent in [0, 100]; 0 means no deduction
	Note           string
}

func (d *SectionDef) DefName() string     { return d.Name }
func (d *SectionDef) HintList() *HintList { return d.Hints }
