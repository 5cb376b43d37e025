package grades

import (
	"math"
	"strings"
)

// PointEntry reports one leaf item's contribution to the total, labelled
// with its ancestry-qualified name.
type PointEntry struct {
	Name     string
	Earned   float64
	Possible float64
}

// GetScore computes the submission's total earned and possible points and
// the per-leaf breakdown, honoring hints and the late deduction.
func (g *Grade) GetScore() (earned, possible float64, points []PointEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getScore()
}

func (g *Grade) getScore() (earned, possible float64, points []PointEntry) {
	for _, item := range g.items {
		if !item.Enabled() {
			continue
		}
		e, p, entries := scoreItem(item, nil, g.isLate)
		earned += e
		possible += p
		points = append(points, entries...)
	}
	return earned, possible, points
}

// scoreItem computes one item's score. ancestors holds the enclosing
// section names for qualified labels.
func scoreItem(item Item, ancestors []string, isLate bool) (earned, possible float64, points []PointEntry) {
	switch it := item.(type) {
	case *ScoreItem:
		earned = it.base + enabledHintSum(it.def.Hints, it.overrides)
		possible = it.def.Points
		name := strings.Join(append(append([]string{}, ancestors...), it.Name()), ": ")
		points = []PointEntry{{Name: name, Earned: earned, Possible: possible}}
		return earned, possible, points

	case *SectionItem:
		childAncestors := append(append([]string{}, ancestors...), it.Name())
		for _, child := range it.children {
			if !child.Enabled() {
				continue
			}
			e, p, entries := scoreItem(child, childAncestors, isLate)
			earned += e
			possible += p
			points = append(points, entries...)
		}
		earned += enabledHintSum(it.def.Hints, it.overrides)
		if isLate && it.def.LateDeduction > 0 {
			deduction := math.Round(earned * it.def.LateDeduction / 100)
			if deduction > 0 {
				earned -= deduction
			}
		}
		return earned, possible, points
	}
	return 0, 0, nil
}

// LateDeductionPoints reports how many points this section's late
// deduction removes, for feedback rendering. isLate is the submission's
// flag; nested late sections below this one still deduct their own share.
func (s *SectionItem) LateDeductionPoints(isLate bool) float64 {
	var preLate float64
	for _, child := range s.children {
		if !child.Enabled() {
			continue
		}
		e, _, _ := scoreItem(child, nil, isLate)
		preLate += e
	}
	preLate += enabledHintSum(s.def.Hints, s.overrides)
	deduction := math.Round(preLate * s.def.LateDeduction / 100)
	if deduction < 0 {
		return 0
	}
	return deduction
}

// ItemScore computes one item's earned and possible points in the context
// of the submission's late flag.
func ItemScore(item Item, isLate bool) (earned, possible float64) {
	e, p, _ := scoreItem(item, nil, isLate)
	return e, p
}
