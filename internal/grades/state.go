package grades

import "fmt"

// GradeState is the serializable form of one submission's grade tree,
// written to the save file and restored on resume.
type GradeState struct {
	IsLate          bool        `json:"is_late"`
	OverallComments string      `json:"overall_comments,omitempty"`
	Items           []ItemState `json:"items"`
}

// ItemState captures one item's per-submission state plus a snapshot of
// its shared hint list, so hints added from the gradebook survive a
// restart.
type ItemState struct {
	Name          string       `json:"name"`
	Enabled       bool         `json:"enabled"`
	Score         *float64     `json:"score,omitempty"` // base score, leaves only
	Comments      string       `json:"comments,omitempty"`
	HintOverrides map[int]bool `json:"hint_overrides,omitempty"`
	Hints         []Hint       `json:"hints,omitempty"`
	Children      []ItemState  `json:"children,omitempty"`
}

// State snapshots the grade for persistence.
func (g *Grade) State() GradeState {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := GradeState{
		IsLate:          g.isLate,
		OverallComments: g.overallComments,
		Items:           make([]ItemState, 0, len(g.items)),
	}
	for _, item := range g.items {
		state.Items = append(state.Items, itemStateOf(item))
	}
	return state
}

func itemStateOf(item Item) ItemState {
	s := ItemState{
		Name:    item.Name(),
		Enabled: item.Enabled(),
		Hints:   item.Hints().All(),
	}
	if overrides := item.hintOverrides(); len(overrides) > 0 {
		s.HintOverrides = make(map[int]bool, len(overrides))
		for i, on := range overrides {
			s.HintOverrides[i] = on
		}
	}
	switch it := item.(type) {
	case *ScoreItem:
		base := it.base
		s.Score = &base
		s.Comments = it.comments
	case *SectionItem:
		s.Children = make([]ItemState, 0, len(it.children))
		for _, child := range it.children {
			s.Children = append(s.Children, itemStateOf(child))
		}
	}
	return s
}

// Restore applies a saved state to a freshly built grade. The tree shapes
// must match: restoring a save file against a changed grade structure is
// an error. Hints present in the state but missing from the shared lists
// are re-added; since the lists are shared, this happens at most once no
// matter how many submissions restore.
func (g *Grade) Restore(state GradeState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(state.Items) != len(g.items) {
		return fmt.Errorf("saved state has %d root items, structure has %d",
			len(state.Items), len(g.items))
	}
	for i, item := range g.items {
		if err := restoreItem(item, state.Items[i]); err != nil {
			return err
		}
	}
	g.isLate = state.IsLate
	g.overallComments = state.OverallComments
	return nil
}

func restoreItem(item Item, state ItemState) error {
	if item.Name() != state.Name {
		return fmt.Errorf("saved item %q does not match structure item %q",
			state.Name, item.Name())
	}

	hints := item.Hints()
	for i := hints.Len(); i < len(state.Hints); i++ {
		hints.Add(state.Hints[i].Name, state.Hints[i].Value)
	}

	item.SetEnabled(state.Enabled)
	overrides := item.hintOverrides()
	for i, on := range state.HintOverrides {
		overrides[i] = on
	}

	switch it := item.(type) {
	case *ScoreItem:
		if state.Score != nil {
			it.base = *state.Score
		}
		it.comments = state.Comments

	case *SectionItem:
		if len(state.Children) != len(it.children) {
			return fmt.Errorf("saved section %q has %d children, structure has %d",
				state.Name, len(state.Children), len(it.children))
		}
		for i, child := range it.children {
			if err := restoreItem(child, state.Children[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
