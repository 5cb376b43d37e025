package grades

import (
	"fmt"
	"strings"
)

// Feedback HTML fragments. These literals are part of the export format;
// graders paste the result into LMS feedback fields, so changing them
// changes what students see.
const (
	feedbackWrapperOpen = `<div style="font-family: Helvetica, Arial, sans-serif; ` +
		`font-size: 10pt; line-height: 1.3;">`
	feedbackWrapperClose = `</div>`

	feedbackOverallOpen  = `<div style="font-size: 10.5pt;">`
	feedbackOverallClose = `</div>`

	feedbackSectionBodyOpen  = `<div style="margin-left: 15px;">`
	feedbackSectionBodyClose = `</div>`

	feedbackHintOpen  = `<div style="text-indent:-20px;margin-left:20px;">`
	feedbackHintClose = `</div>`
)

// GetFeedback renders the submission's full feedback blob as HTML.
func (g *Grade) GetFeedback() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	b.WriteString(feedbackWrapperOpen)
	for _, item := range g.items {
		if item.Enabled() {
			writeItemFeedback(&b, item, 0, g.isLate)
		}
	}
	if g.overallComments != "" {
		b.WriteString(feedbackOverallOpen)
		b.WriteString(renderMarkdown(g.overallComments))
		b.WriteString(feedbackOverallClose)
	}
	b.WriteString(feedbackWrapperClose)
	return b.String()
}

func writeItemFeedback(b *strings.Builder, item Item, depth int, isLate bool) {
	switch it := item.(type) {
	case *ScoreItem:
		earned, possible := ItemScore(it, isLate)
		writeHeader(b, it.Name(), itemScoreText(earned, possible), depth)
		writeHints(b, it)
		if it.comments != "" {
			fmt.Fprintf(b, "<p>%s</p>", renderMarkdownInline(it.comments))
		}

	case *SectionItem:
		earned, possible := ItemScore(it, isLate)
		score := fmt.Sprintf("Section Score: %s / %s",
			FormatScore(earned), FormatScore(possible))
		writeHeader(b, it.Name(), score, depth)
		if isLate && it.def.LateDeduction > 0 {
			if points := it.LateDeductionPoints(isLate); points > 0 {
				fmt.Fprintf(b, "<p><b>-%s</b> (%s%%)<b>:</b> <i>Turned in late</i></p>",
					FormatScore(points), FormatScore(it.def.LateDeduction))
			}
		}
		writeHints(b, it)
		b.WriteString(feedbackSectionBodyOpen)
		for _, child := range it.children {
			if child.Enabled() {
				writeItemFeedback(b, child, depth+1, isLate)
			}
		}
		b.WriteString(feedbackSectionBodyClose)
	}
}

// writeHeader emits the title line; titles are bold at the top two depths.
func writeHeader(b *strings.Builder, name, score string, depth int) {
	title := renderMarkdownInline(name)
	if depth <= 1 {
		title = "<b><u>" + title + "</u></b>"
	} else {
		title = "<u>" + title + "</u>"
	}
	if score == "" {
		fmt.Fprintf(b, "<p>%s</p>", title)
		return
	}
	fmt.Fprintf(b, "<p>%s<br>%s</p>", title, score)
}

// itemScoreText formats a leaf score line. Extra-credit style items with
// no possible points show a bare adjustment; a zero-of-zero is omitted.
func itemScoreText(earned, possible float64) string {
	if possible == 0 {
		if earned == 0 {
			return ""
		}
		return fmt.Sprintf("%s Points", FormatScoreSigned(earned))
	}
	return fmt.Sprintf("Score: %s / %s", FormatScore(earned), FormatScore(possible))
}

// writeHints emits the enabled hints of an item.
func writeHints(b *strings.Builder, item Item) {
	for i, h := range item.Hints().All() {
		if !item.HintEnabled(i) {
			continue
		}
		b.WriteString(feedbackHintOpen)
		if h.Value != 0 {
			fmt.Fprintf(b, "<b>%s:</b> ", FormatScoreSigned(h.Value))
		}
		b.WriteString(renderMarkdownInline(h.Name))
		b.WriteString(feedbackHintClose)
	}
}
