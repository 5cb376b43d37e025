// Package channel implements the grader's structured terminal I/O. All
// input and output flows through a Channel so it can be mirrored into
// in-memory logs (plain text and HTML) alongside the live terminal.
package channel

// PartType classifies a piece of a message for styling purposes.
type PartType int

const (
	PartPromptQuestion PartType = iota
	PartPromptAnswer
	PartPrint
	PartStatus
	PartError
	PartBright
	PartBgHappy
	PartBgSad
	PartBgMeh
	// Accent variants are the bright forms of the background styles,
	// used by the diff renderer's "?" locator lines.
	PartAccentHappy
	PartAccentSad
	PartAccentMeh
)

// Part is one styled segment of a message.
type Part struct {
	Type PartType
	Text string
}

// Msg is an ordered sequence of parts written atomically. Parts are joined
// by Sep and the whole message is terminated by End, mirroring the
// semantics of a print call.
type Msg struct {
	Parts []Part
	Sep   string
	End   string
}

// NewMsg returns a message with the default separator (space) and
// terminator (newline).
func NewMsg() *Msg {
	return &Msg{Sep: " ", End: "\n"}
}

// NewMsgSep returns a message with an explicit separator and terminator.
func NewMsgSep(sep, end string) *Msg {
	return &Msg{Sep: sep, End: end}
}

func (m *Msg) add(t PartType, text string) *Msg {
	m.Parts = append(m.Parts, Part{Type: t, Text: text})
	return m
}

func (m *Msg) Print(text string) *Msg       { return m.add(PartPrint, text) }
func (m *Msg) Status(text string) *Msg      { return m.add(PartStatus, text) }
func (m *Msg) Error(text string) *Msg       { return m.add(PartError, text) }
func (m *Msg) Bright(text string) *Msg      { return m.add(PartBright, text) }
func (m *Msg) BgHappy(text string) *Msg     { return m.add(PartBgHappy, text) }
func (m *Msg) BgSad(text string) *Msg       { return m.add(PartBgSad, text) }
func (m *Msg) BgMeh(text string) *Msg       { return m.add(PartBgMeh, text) }
func (m *Msg) AccentHappy(text string) *Msg { return m.add(PartAccentHappy, text) }
func (m *Msg) AccentSad(text string) *Msg   { return m.add(PartAccentSad, text) }
func (m *Msg) AccentMeh(text string) *Msg   { return m.add(PartAccentMeh, text) }

// Question and Answer record the two halves of a prompt exchange.
func (m *Msg) Question(text string) *Msg { return m.add(PartPromptQuestion, text) }
func (m *Msg) Answer(text string) *Msg   { return m.add(PartPromptAnswer, text) }

// PlainText renders the message with no styling.
func (m *Msg) PlainText() string {
	var out string
	for i, p := range m.Parts {
		if i > 0 {
			out += m.Sep
		}
		out += p.Text
	}
	return out + m.End
}
