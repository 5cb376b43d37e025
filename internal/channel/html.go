package channel

import "strings"

// htmlEscaper covers the five characters the HTML mirror must neutralize.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"\"", "&quot;",
	"'", "&#39;",
	"<", "&lt;",
	">", "&gt;",
)

// partCSS maps each part type to the inline style of its span in the HTML
// mirror. Print parts are emitted bare.
var partCSS = map[PartType]string{
	PartPromptQuestion: "color: #00b0b0;",
	PartPromptAnswer:   "color: #b08000;",
	PartStatus:         "color: #0000ff; font-weight: bold;",
	PartError:          "color: #ff0000; font-weight: bold;",
	PartBright:         "font-weight: bold;",
	PartBgHappy:        "background-color: #c0ffc0;",
	PartBgSad:          "background-color: #ffc0c0;",
	PartBgMeh:          "background-color: #e0e0e0;",
	PartAccentHappy:    "background-color: #c0ffc0; font-weight: bold;",
	PartAccentSad:      "background-color: #ffc0c0; font-weight: bold;",
	PartAccentMeh:      "background-color: #e0e0e0; font-weight: bold;",
}

// htmlPart escapes one part and wraps it in its color-tagged span.
// Newlines become <br> so the mirror reads like the terminal did.
func htmlPart(p Part) string {
	text := htmlEscaper.Replace(p.Text)
	text = strings.ReplaceAll(text, "\n", "<br>\n")
	if css, ok := partCSS[p.Type]; ok {
		return `<span style="` + css + `">` + text + `</span>`
	}
	return text
}

// htmlMsg renders a whole message for the HTML mirror.
func htmlMsg(m *Msg) string {
	var b strings.Builder
	sep := strings.ReplaceAll(htmlEscaper.Replace(m.Sep), "\n", "<br>\n")
	for i, p := range m.Parts {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(htmlPart(p))
	}
	b.WriteString(strings.ReplaceAll(htmlEscaper.Replace(m.End), "\n", "<br>\n"))
	return b.String()
}
