package grades

// ToPlainData serializes the submission's grade state into the JSON-ready
// form the browser client edits. Hint enabled flags reflect this
// submission's overrides on the shared hint list.
func (g *Grade) ToPlainData() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	earned, possible, _ := g.getScore()
	items := make([]map[string]any, 0, len(g.items))
	for _, item := range g.items {
		items = append(items, itemPlainData(item))
	}
	return map[string]any{
		"is_late":          g.isLate,
		"overall_comments": g.overallComments,
		"current_score":    ScoreNumber(earned),
		"max_score":        ScoreNumber(possible),
		"grades":           items,
	}
}

func itemPlainData(item Item) map[string]any {
	hints := item.Hints().All()
	hintData := make([]map[string]any, 0, len(hints))
	for i, h := range hints {
		hintData = append(hintData, map[string]any{
			"name":    h.Name,
			"value":   ScoreNumber(h.Value),
			"enabled": item.HintEnabled(i),
		})
	}

	data := map[string]any{
		"name":    item.Name(),
		"enabled": item.Enabled(),
		"hints":   hintData,
	}
	if note := item.Note(); note != "" {
		data["note"] = note
	}

	switch it := item.(type) {
	case *ScoreItem:
		data["score"] = ScoreNumber(it.base)
		data["points"] = ScoreNumber(it.def.Points)
		data["comments"] = it.comments
		data["touched"] = it.IsTouched()
	case *SectionItem:
		children := make([]map[string]any, 0, len(it.children))
		for _, c := range it.children {
			children = append(children, itemPlainData(c))
		}
		data["children"] = children
	}
	return data
}
