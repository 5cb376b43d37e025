package channel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// ErrInterrupted reports that the user interrupted an input operation
// (Ctrl-C or EOF). The grader treats it as "abort the current submission",
// never as a reason to exit the program.
var ErrInterrupted = errors.New("interrupted")

// Channel is the structured terminal used by the grader. A single
// implementation talks to the real terminal; mirrors attach as Logs.
type Channel interface {
	Output(m *Msg)
	Input(prompt string, autocomplete []string) (string, error)
	Prompt(question string, choices []string, defaultChoice string, showChoices bool, hidden []string) (string, error)
	BlockingInput() *StdinLease
	AddDelegate(l Log)
	RemoveDelegate(l Log)
}

// Options configures a Console. Zero values mean: stdin/stdout, no
// readline, no color.
type Options struct {
	In          io.Reader
	Out         io.Writer
	UseReadline bool
	UseColor    bool
}

// Console is the terminal-backed Channel implementation.
//
// All line reads happen on a single pump goroutine (started on first
// use). Routing every read through it means a lease holder can abandon a
// pending read when its subprocess exits without losing the line the
// user was typing: it stays buffered for the next input consumer.
type Console struct {
	outMu    sync.Mutex // guards out and the mirrors against interleaving
	inputMu  sync.Mutex // serializes Input/Prompt and BlockingInput
	delMu    sync.Mutex
	out      io.Writer
	in       *bufio.Reader
	rl       *readline.Instance
	useColor bool
	mirrors  []Log

	pumpOnce sync.Once
	lineReq  chan struct{}
	lineRes  chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewConsole creates a Console. When UseReadline is set and no explicit
// reader is supplied, input goes through readline with history and
// autocomplete; otherwise a buffered reader is used.
func NewConsole(opts Options) *Console {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	c := &Console{
		out:      opts.Out,
		in:       bufio.NewReader(opts.In),
		useColor: opts.UseColor,
		lineReq:  make(chan struct{}),
		lineRes:  make(chan lineResult, 1),
	}
	if opts.UseReadline && opts.In == os.Stdin {
		rl, err := readline.NewEx(&readline.Config{
			InterruptPrompt: "^C",
			EOFPrompt:       "",
		})
		if err == nil {
			c.rl = rl
		}
	}
	return c
}

// Close releases the readline instance, if any.
func (c *Console) Close() error {
	if c.rl != nil {
		return c.rl.Close()
	}
	return nil
}

// AddDelegate attaches a read-only mirror for subsequent output.
func (c *Console) AddDelegate(l Log) {
	c.delMu.Lock()
	defer c.delMu.Unlock()
	c.mirrors = append(c.mirrors, l)
}

// RemoveDelegate detaches a previously attached mirror.
func (c *Console) RemoveDelegate(l Log) {
	c.delMu.Lock()
	defer c.delMu.Unlock()
	for i, m := range c.mirrors {
		if m == l {
			c.mirrors = append(c.mirrors[:i], c.mirrors[i+1:]...)
			return
		}
	}
}

func (c *Console) delegates() []Log {
	c.delMu.Lock()
	defer c.delMu.Unlock()
	out := make([]Log, len(c.mirrors))
	copy(out, c.mirrors)
	return out
}

func (c *Console) mirrorOutput(m *Msg) {
	for _, l := range c.delegates() {
		l.Output(m)
	}
}

// Output writes the message atomically to the terminal and every mirror.
// The mirrors are written under the same lock so they record messages in
// the order the terminal showed them.
func (c *Console) Output(m *Msg) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	var b strings.Builder
	for i, p := range m.Parts {
		if i > 0 {
			b.WriteString(m.Sep)
		}
		b.WriteString(styleText(p.Type, p.Text, c.useColor))
	}
	b.WriteString(m.End)
	_, _ = io.WriteString(c.out, b.String())
	c.mirrorOutput(m)
}

// Convenience single-part writers.
func (c *Console) Print(text string) {
	c.Output(NewMsg().Print(text))
}

func (c *Console) Status(text string) {
	c.Output(NewMsg().Status(text))
}

func (c *Console) Error(text string) {
	c.Output(NewMsg().Error(text))
}

// Input prints the prompt, reads one line, and echoes the answer into the
// mirrors. The terminal already saw the answer as it was typed, so only
// mirrors receive the PROMPT_ANSWER part.
func (c *Console) Input(prompt string, autocomplete []string) (string, error) {
	c.inputMu.Lock()
	defer c.inputMu.Unlock()
	return c.inputLocked(prompt, autocomplete)
}

func (c *Console) inputLocked(prompt string, autocomplete []string) (string, error) {
	if prompt != "" {
		c.mirrorOutput(NewMsgSep(" ", "").Question(prompt))
	}

	if c.rl != nil {
		cfg := c.rl.Config.Clone()
		if len(autocomplete) > 0 {
			items := make([]readline.PrefixCompleterInterface, len(autocomplete))
			for i, word := range autocomplete {
				items[i] = readline.PcItem(word)
			}
			cfg.AutoComplete = readline.NewPrefixCompleter(items...)
		} else {
			cfg.AutoComplete = nil
		}
		_ = c.rl.SetConfig(cfg)
		c.rl.SetPrompt(styleText(PartPromptQuestion, prompt, c.useColor))
	} else if prompt != "" {
		c.outMu.Lock()
		_, _ = io.WriteString(c.out, styleText(PartPromptQuestion, prompt, c.useColor))
		c.outMu.Unlock()
	}

	line, err := c.requestLine()
	if err != nil {
		return "", err
	}
	c.mirrorOutput(NewMsg().Answer(line))
	return line, nil
}

// startPump lazily starts the goroutine that owns all terminal reads.
func (c *Console) startPump() {
	c.pumpOnce.Do(func() {
		go func() {
			for range c.lineReq {
				line, err := c.readLine()
				c.lineRes <- lineResult{line: line, err: err}
			}
		}()
	})
}

// requestLine fetches the next terminal line, preferring a line left
// over from an abandoned lease read.
func (c *Console) requestLine() (string, error) {
	c.startPump()
	select {
	case res := <-c.lineRes:
		return res.line, res.err
	default:
	}
	c.lineReq <- struct{}{}
	res := <-c.lineRes
	return res.line, res.err
}

// readLine performs one read with whatever prompt and completion the
// requester configured. Runs only on the pump goroutine.
func (c *Console) readLine() (string, error) {
	if c.rl != nil {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", ErrInterrupted
			}
			return "", err
		}
		return line, nil
	}

	line, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", ErrInterrupted
		}
		if err != io.EOF {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Prompt repeats Input until the trimmed, lower-cased reply matches one of
// choices (or hidden). An empty reply is returned verbatim if "" is a
// choice, resolves to defaultChoice if one is given, and is otherwise an
// error that re-prompts.
func (c *Console) Prompt(question string, choices []string, defaultChoice string, showChoices bool, hidden []string) (string, error) {
	emptyAllowed := false
	display := make([]string, 0, len(choices))
	for _, ch := range choices {
		if ch == "" {
			emptyAllowed = true
			continue
		}
		display = append(display, ch)
	}

	prompt := question
	if showChoices && len(display) > 0 {
		prompt += fmt.Sprintf(" (%s)", strings.Join(display, "/"))
	}
	if defaultChoice != "" {
		prompt += fmt.Sprintf(" [%s]", defaultChoice)
	}
	prompt += ": "

	for {
		reply, err := c.Input(prompt, nil)
		if err != nil {
			return "", err
		}
		reply = strings.ToLower(strings.TrimSpace(reply))

		if reply == "" {
			if emptyAllowed {
				return "", nil
			}
			if defaultChoice != "" {
				return defaultChoice, nil
			}
			c.Error("Please enter a choice.")
			continue
		}
		for _, ch := range choices {
			if reply == ch {
				return reply, nil
			}
		}
		for _, ch := range hidden {
			if reply == ch {
				return reply, nil
			}
		}
		c.Error(fmt.Sprintf("Invalid choice: %s", reply))
	}
}

// StdinLease grants exclusive use of the terminal's input stream, for
// forwarding into a subprocess. Output is unaffected while a lease is
// held; Input and Prompt block until it is released.
type StdinLease struct {
	c    *Console
	once sync.Once
}

// BlockingInput acquires the input lease. Callers must Release it.
func (c *Console) BlockingInput() *StdinLease {
	c.inputMu.Lock()
	return &StdinLease{c: c}
}

// ReadLine returns the next terminal line for the lease holder. It
// reports false when cancel closes first or input is interrupted. A line
// that arrives after cancellation is kept for the next input consumer
// rather than dropped.
func (l *StdinLease) ReadLine(cancel <-chan struct{}) (string, bool) {
	c := l.c
	c.startPump()
	if c.rl != nil {
		c.rl.SetPrompt("")
	}

	select {
	case res := <-c.lineRes:
		return res.line, res.err == nil
	default:
	}
	select {
	case c.lineReq <- struct{}{}:
	case <-cancel:
		return "", false
	}
	select {
	case res := <-c.lineRes:
		return res.line, res.err == nil
	case <-cancel:
		return "", false
	}
}

// Release returns the input stream to the Channel. Safe to call twice.
func (l *StdinLease) Release() {
	l.once.Do(func() {
		l.c.inputMu.Unlock()
	})
}
