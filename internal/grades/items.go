package grades

import (
	"fmt"
	"strings"
	"sync"
)

// BadPathError reports an integer path that does not address an item in
// the grade tree.
type BadPathError struct {
	Path   []int
	Reason string
}

func (e *BadPathError) Error() string {
	return fmt.Sprintf("bad grade path %v: %s", e.Path, e.Reason)
}

// Item is one mutable per-submission node of the grade tree. The
// structure behind it (name, points, hint list) is shared; everything
// settable here is this submission's own state.
//
// Items are not internally synchronized: the owning Grade's lock covers
// them. Mutating an item outside the Grade's *At methods is only safe
// when nothing else is reading the grade.
type Item interface {
	Name() string
	Note() string
	Enabled() bool
	SetEnabled(enabled bool)
	Hints() *HintList
	HintEnabled(index int) bool
	SetHintEnabled(index int, enabled bool) error
	AddHint(name string, value float64)
	ReplaceHint(index int, name string, value float64) error
	hintOverrides() map[int]bool
}

// itemState is the per-submission state common to scores and sections.
type itemState struct {
	enabled   bool
	overrides map[int]bool // hint index -> enabled override
}

func (s *itemState) Enabled() bool           { return s.enabled }
func (s *itemState) SetEnabled(enabled bool) { s.enabled = enabled }

func (s *itemState) hintOverrides() map[int]bool { return s.overrides }

// ScoreItem is a leaf grade item for one submission.
type ScoreItem struct {
	itemState
	def      *ScoreDef
	base     float64
	comments string
}

func (s *ScoreItem) Name() string     { return s.def.Name }
func (s *ScoreItem) Note() string     { return s.def.Note }
func (s *ScoreItem) Hints() *HintList { return s.def.Hints }
func (s *ScoreItem) Points() float64  { return s.def.Points }

func (s *ScoreItem) BaseScore() float64     { return s.base }
func (s *ScoreItem) SetBaseScore(n float64) { s.base = n }
func (s *ScoreItem) Comments() string       { return s.comments }
func (s *ScoreItem) SetComments(c string)   { s.comments = c }

func (s *ScoreItem) HintEnabled(index int) bool {
	return hintEnabled(s.def.Hints, s.overrides, index)
}

func (s *ScoreItem) SetHintEnabled(index int, enabled bool) error {
	return setHintEnabled(s.def.Hints, s.overrides, index, enabled)
}

func (s *ScoreItem) AddHint(name string, value float64) {
	s.def.Hints.Add(name, value)
}

func (s *ScoreItem) ReplaceHint(index int, name string, value float64) error {
	return s.def.Hints.Replace(index, name, value)
}

// SetEffectiveScore adjusts the base score so that the observed score
// (base plus currently enabled hint values) equals n.
func (s *ScoreItem) SetEffectiveScore(n float64) {
	s.base = n - enabledHintSum(s.def.Hints, s.overrides)
}

// IsTouched reports whether the grader has changed anything on this leaf
// from its structural defaults.
func (s *ScoreItem) IsTouched() bool {
	return s.enabled &&
		(s.base != s.def.DefaultScore ||
			s.comments != s.def.DefaultComments ||
			len(s.overrides) > 0)
}

// SectionItem is an internal grade item for one submission.
type SectionItem struct {
	itemState
	def      *SectionDef
	children []Item
}

func (s *SectionItem) Name() string     { return s.def.Name }
func (s *SectionItem) Note() string     { return s.def.Note }
func (s *SectionItem) Hints() *HintList { return s.def.Hints }
func (s *SectionItem) Children() []Item { return s.children }

// LateDeduction is the percent deducted when the submission is late.
func (s *SectionItem) LateDeduction() float64 { return s.def.LateDeduction }

func (s *SectionItem) HintEnabled(index int) bool {
	return hintEnabled(s.def.Hints, s.overrides, index)
}

func (s *SectionItem) SetHintEnabled(index int, enabled bool) error {
	return setHintEnabled(s.def.Hints, s.overrides, index, enabled)
}

func (s *SectionItem) AddHint(name string, value float64) {
	s.def.Hints.Add(name, value)
}

func (s *SectionItem) ReplaceHint(index int, name string, value float64) error {
	return s.def.Hints.Replace(index, name, value)
}

func hintEnabled(l *HintList, overrides map[int]bool, index int) bool {
	if on, ok := overrides[index]; ok {
		return on
	}
	hints := l.All()
	if index < 0 || index >= len(hints) {
		return false
	}
	return hints[index].DefaultEnabled
}

func setHintEnabled(l *HintList, overrides map[int]bool, index int, enabled bool) error {
	if index < 0 || index >= l.Len() {
		return fmt.Errorf("hint index %d out of range", index)
	}
	overrides[index] = enabled
	return nil
}

func enabledHintSum(l *HintList, overrides map[int]bool) float64 {
	var sum float64
	for i, h := range l.All() {
		on := h.DefaultEnabled
		if ov, ok := overrides[i]; ok {
			on = ov
		}
		if on {
			sum += h.Value
		}
	}
	return sum
}

// Grade is one submission's instance of the grade tree. The gradebook
// server mutates it from request handlers while the grading loop reads
// scores and snapshots state, so every compound operation runs under mu.
type Grade struct {
	mu              sync.Mutex
	items           []Item
	isLate          bool
	overallComments string
}

// Build instantiates a submission's mutable tree from the shared
// structure. Every instance built from the same defs shares hint lists.
func Build(defs []Def) *Grade {
	g := &Grade{items: make([]Item, 0, len(defs))}
	for _, d := range defs {
		g.items = append(g.items, buildItem(d))
	}
	return g
}

func buildItem(d Def) Item {
	switch def := d.(type) {
	case *ScoreDef:
		return &ScoreItem{
			itemState: itemState{enabled: def.DefaultEnabled, overrides: make(map[int]bool)},
			def:       def,
			base:      def.DefaultScore,
			comments:  def.DefaultComments,
		}
	case *SectionDef:
		children := make([]Item, 0, len(def.Children))
		for _, c := range def.Children {
			children = append(children, buildItem(c))
		}
		return &SectionItem{
			itemState: itemState{enabled: def.DefaultEnabled, overrides: make(map[int]bool)},
			def:       def,
			children:  children,
		}
	default:
		panic(fmt.Sprintf("unknown grade def type %T", d))
	}
}

// Items returns the root items of the tree. The tree's shape never
// changes after Build, so iterating the result is safe; mutating items
// concurrently with readers is not.
func (g *Grade) Items() []Item { return g.items }

func (g *Grade) IsLate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isLate
}

func (g *Grade) SetLate(late bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.isLate = late
}

func (g *Grade) OverallComments() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overallComments
}

func (g *Grade) SetOverallComments(c string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overallComments = c
}

// GetByPath descends the tree by child index.
func (g *Grade) GetByPath(path []int) (Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getByPath(path)
}

func (g *Grade) getByPath(path []int) (Item, error) {
	if len(path) == 0 {
		return nil, &BadPathError{Path: path, Reason: "empty path"}
	}
	items := g.items
	var cur Item
	for depth, idx := range path {
		if idx < 0 || idx >= len(items) {
			return nil, &BadPathError{
				Path:   path,
				Reason: fmt.Sprintf("index %d out of range at depth %d", idx, depth),
			}
		}
		cur = items[idx]
		if depth == len(path)-1 {
			break
		}
		section, ok := cur.(*SectionItem)
		if !ok {
			return nil, &BadPathError{
				Path:   path,
				Reason: fmt.Sprintf("item %q at depth %d has no children", cur.Name(), depth),
			}
		}
		items = section.Children()
	}
	return cur, nil
}

// GetByName finds the first item whose name matches, case-insensitively,
// in breadth-first order. Disabled items are skipped unless
// includeDisabled is set. Returns nil when nothing matches.
func (g *Grade) GetByName(name string, includeDisabled bool) Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	queue := make([]Item, len(g.items))
	copy(queue, g.items)
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if !item.Enabled() && !includeDisabled {
			continue
		}
		if strings.EqualFold(item.Name(), name) {
			return item
		}
		if section, ok := item.(*SectionItem); ok {
			queue = append(queue, section.Children()...)
		}
	}
	return nil
}

// Path-addressed mutators. These are the write side used by the
// gradebook server: each runs under the grade's lock so the grading
// loop and the save file always see a consistent tree.

// SetEnabledAt toggles the item at path.
func (g *Grade) SetEnabledAt(path []int, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, err := g.getByPath(path)
	if err != nil {
		return err
	}
	item.SetEnabled(enabled)
	return nil
}

// SetEffectiveScoreAt sets the observed score of the leaf at path.
func (g *Grade) SetEffectiveScoreAt(path []int, n float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	leaf, err := g.leafByPath(path)
	if err != nil {
		return err
	}
	leaf.SetEffectiveScore(n)
	return nil
}

// SetCommentsAt sets the comments of the leaf at path.
func (g *Grade) SetCommentsAt(path []int, comments string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	leaf, err := g.leafByPath(path)
	if err != nil {
		return err
	}
	leaf.SetComments(comments)
	return nil
}

// SetHintEnabledAt overrides one hint's enabled flag on the item at path,
// for this submission only.
func (g *Grade) SetHintEnabledAt(path []int, index int, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, err := g.getByPath(path)
	if err != nil {
		return err
	}
	return item.SetHintEnabled(index, enabled)
}

// AddHintAt appends a hint to the item at path. The hint list is shared,
// so the hint appears (default-disabled) on every submission.
func (g *Grade) AddHintAt(path []int, name string, value float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, err := g.getByPath(path)
	if err != nil {
		return err
	}
	item.AddHint(name, value)
	return nil
}

// ReplaceHintAt rewrites a hint on the item at path, on every submission.
func (g *Grade) ReplaceHintAt(path []int, index int, name string, value float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, err := g.getByPath(path)
	if err != nil {
		return err
	}
	return item.ReplaceHint(index, name, value)
}

func (g *Grade) leafByPath(path []int) (*ScoreItem, error) {
	item, err := g.getByPath(path)
	if err != nil {
		return nil, err
	}
	leaf, ok := item.(*ScoreItem)
	if !ok {
		return nil, fmt.Errorf("%q is not a score item", item.Name())
	}
	return leaf, nil
}
