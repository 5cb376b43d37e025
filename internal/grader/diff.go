package grader

import (
	"context"
	"errors"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/config"
	"github.com/jhartz/gradefast/internal/gfpath"
)

// buildDiffReference resolves the reference text a command's output is
// compared against. Exactly one source is set (validated at load time).
func (g *Grader) buildDiffReference(d *config.Diff, folder gfpath.Path, env map[string]string) (string, error) {
	switch {
	case d.Content != "":
		return d.Content, nil
	case d.File != "":
		if g.settings.DiffFilePath == "" {
			return "", errors.New("no \"diff file path\" configured")
		}
		return g.host.ReadTextFile(gfpath.New(g.settings.DiffFilePath).Append(d.File))
	case d.SubmissionFile != "":
		return g.host.ReadTextFile(folder.Append(d.SubmissionFile))
	case d.Command != "":
		return g.host.RunCommand(context.Background(), d.Command, folder, env, "", false)
	}
	return "", errors.New("empty diff source")
}

// renderDiff prints the line diff of output against reference. Reference
// lines that the output is missing show on the "happy" background, extra
// output lines on the "sad" one, and matching lines on the neutral one.
func (g *Grader) renderDiff(reference, output string, collapseWhitespace bool) {
	g.ch.Output(channel.NewMsg().Bright("Diff against expected output:"))
	for _, m := range diffMessages(reference, output, collapseWhitespace) {
		g.ch.Output(m)
	}
}

// diffMessages computes the diff as channel messages. Lines are compared
// case-insensitively (and with runs of whitespace collapsed, when asked),
// but the original lines are what gets printed. Replaced line pairs get
// "?" locator lines marking where within the line the two sides differ.
func diffMessages(reference, output string, collapseWhitespace bool) []*channel.Msg {
	refLines := splitDiffLines(reference)
	outLines := splitDiffLines(output)
	refClean := cleanDiffLines(refLines, collapseWhitespace)
	outClean := cleanDiffLines(outLines, collapseWhitespace)

	matcher := difflib.NewMatcher(refClean, outClean)

	var msgs []*channel.Msg
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for j := op.J1; j < op.J2; j++ {
				msgs = append(msgs, channel.NewMsg().BgMeh("  "+outLines[j]))
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				msgs = append(msgs, channel.NewMsg().BgHappy("- "+refLines[i]))
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				msgs = append(msgs, channel.NewMsg().BgSad("+ "+outLines[j]))
			}
		case 'r':
			i, j := op.I1, op.J1
			for i < op.I2 || j < op.J2 {
				switch {
				case i < op.I2 && j < op.J2:
					refMark, outMark := lineMarkers(refClean[i], outClean[j])
					msgs = append(msgs, channel.NewMsg().BgHappy("- "+refLines[i]))
					if refMark != "" {
						msgs = append(msgs, channel.NewMsg().AccentHappy("? "+refMark))
					}
					msgs = append(msgs, channel.NewMsg().BgSad("+ "+outLines[j]))
					if outMark != "" {
						msgs = append(msgs, channel.NewMsg().AccentSad("? "+outMark))
					}
					i++
					j++
				case i < op.I2:
					msgs = append(msgs, channel.NewMsg().BgHappy("- "+refLines[i]))
					i++
				default:
					msgs = append(msgs, channel.NewMsg().BgSad("+ "+outLines[j]))
					j++
				}
			}
		}
	}
	return msgs
}

// lineMarkers builds the locator strings for one replaced line pair:
// "^" under characters that changed, "-" under characters only in the
// reference, "+" under characters only in the output.
func lineMarkers(ref, out string) (refMark, outMark string) {
	matcher := difflib.NewMatcher(splitChars(ref), splitChars(out))
	var rb, ob strings.Builder
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			rb.WriteString(strings.Repeat(" ", op.I2-op.I1))
			ob.WriteString(strings.Repeat(" ", op.J2-op.J1))
		case 'd':
			rb.WriteString(strings.Repeat("-", op.I2-op.I1))
		case 'i':
			ob.WriteString(strings.Repeat("+", op.J2-op.J1))
		case 'r':
			rb.WriteString(strings.Repeat("^", op.I2-op.I1))
			ob.WriteString(strings.Repeat("^", op.J2-op.J1))
		}
	}
	return strings.TrimRight(rb.String(), " "), strings.TrimRight(ob.String(), " ")
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func splitDiffLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func cleanDiffLines(lines []string, collapseWhitespace bool) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		clean := strings.ToLower(line)
		if collapseWhitespace {
			clean = strings.Join(strings.Fields(clean), " ")
		}
		out[i] = clean
	}
	return out
}
