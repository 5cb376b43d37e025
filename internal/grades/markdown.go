package grades

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// gm is the shared Markdown renderer for comments, hints, and names.
var gm = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // tables, strikethrough, autolinks, task lists
	),
)

// renderMarkdown converts Markdown to HTML, falling back to the escaped
// source on renderer failure.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return htmlEscape(md)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// renderMarkdownInline renders Markdown and strips a single enclosing
// paragraph so the result can sit inside an existing block element.
func renderMarkdownInline(md string) string {
	out := renderMarkdown(md)
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") &&
		strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return out
}

var feedbackEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&#39;",
)

func htmlEscape(s string) string {
	return feedbackEscaper.Replace(s)
}
