package channel

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	c := NewConsole(Options{
		In:  strings.NewReader(input),
		Out: &out,
	})
	return c, &out
}

func TestOutputReachesTerminalAndMirrors(t *testing.T) {
	c, out := newTestConsole("")
	html := NewMemoryHTMLLog("sub")
	text := NewMemoryLog("sub")
	c.AddDelegate(html)
	c.AddDelegate(text)

	c.Output(NewMsg().Status("Running:").Print("make test"))

	if got := out.String(); got != "Running: make test\n" {
		t.Errorf("terminal got %q", got)
	}
	if got := text.Content(); got != "Running: make test\n" {
		t.Errorf("text mirror got %q", got)
	}
	wantHTML := `<span style="color: #0000ff; font-weight: bold;">Running:</span> make test<br>` + "\n"
	if got := html.Content(); got != wantHTML {
		t.Errorf("html mirror got %q, want %q", got, wantHTML)
	}
}

func TestRemoveDelegate(t *testing.T) {
	c, _ := newTestConsole("")
	text := NewMemoryLog("sub")
	c.AddDelegate(text)
	c.Print("one")
	c.RemoveDelegate(text)
	c.Print("two")

	if got := text.Content(); got != "one\n" {
		t.Errorf("mirror got %q after removal", got)
	}
}

func TestInputEchoesAnswerToMirrorsOnly(t *testing.T) {
	c, out := newTestConsole("alice\n")
	text := NewMemoryLog("sub")
	c.AddDelegate(text)

	got, err := c.Input("Name: ", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "alice" {
		t.Errorf("Input = %q", got)
	}
	// Primary saw only the prompt (the typed line came from the user).
	if out.String() != "Name: " {
		t.Errorf("terminal got %q", out.String())
	}
	// Mirror saw both the question and the answer.
	if mirror := text.Content(); mirror != "Name: alice\n" {
		t.Errorf("mirror got %q", mirror)
	}
}

func TestInputEOFIsInterrupt(t *testing.T) {
	c, _ := newTestConsole("")
	if _, err := c.Input("? ", nil); err != ErrInterrupted {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestPromptMatchesChoice(t *testing.T) {
	c, _ := newTestConsole("  Y \n")
	got, err := c.Prompt("Continue?", []string{"y", "n"}, "", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "y" {
		t.Errorf("Prompt = %q", got)
	}
}

func TestPromptEmptyUsesDefault(t *testing.T) {
	c, _ := newTestConsole("\n")
	got, err := c.Prompt("Continue?", []string{"y", "n"}, "n", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "n" {
		t.Errorf("Prompt = %q, want default n", got)
	}
}

func TestPromptEmptyAllowedReturnsVerbatim(t *testing.T) {
	c, _ := newTestConsole("\n")
	got, err := c.Prompt("Next", []string{"", "s", "q"}, "", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("Prompt = %q, want empty", got)
	}
}

func TestPromptRepromptsOnInvalid(t *testing.T) {
	c, _ := newTestConsole("maybe\nn\n")
	got, err := c.Prompt("Continue?", []string{"y", "n"}, "", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "n" {
		t.Errorf("Prompt = %q after invalid reply", got)
	}
}

func TestPromptHiddenChoice(t *testing.T) {
	c, _ := newTestConsole("ss\n")
	got, err := c.Prompt("Item", []string{"", "s"}, "", false, []string{"ss", "?"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ss" {
		t.Errorf("Prompt = %q", got)
	}
}

func TestBlockingInputExcludesInputButNotOutput(t *testing.T) {
	c, out := newTestConsole("later\n")
	lease := c.BlockingInput()

	// Output still works while the lease is held.
	c.Print("status line")
	if !strings.Contains(out.String(), "status line") {
		t.Fatal("output blocked during lease")
	}

	inputDone := make(chan string)
	go func() {
		got, _ := c.Input("", nil)
		inputDone <- got
	}()

	select {
	case <-inputDone:
		t.Fatal("Input proceeded while lease held")
	default:
	}

	lease.Release()
	if got := <-inputDone; got != "later" {
		t.Errorf("Input after release = %q", got)
	}

	// Release is idempotent.
	lease.Release()
}

func TestLeaseReadLineDeliversTypedLines(t *testing.T) {
	c, _ := newTestConsole("one\ntwo\n")
	lease := c.BlockingInput()
	defer lease.Release()

	cancel := make(chan struct{})
	if line, ok := lease.ReadLine(cancel); !ok || line != "one" {
		t.Fatalf("ReadLine = %q, %v", line, ok)
	}
	if line, ok := lease.ReadLine(cancel); !ok || line != "two" {
		t.Fatalf("ReadLine = %q, %v", line, ok)
	}
	if _, ok := lease.ReadLine(cancel); ok {
		t.Error("ReadLine kept going past EOF")
	}
}

func TestLeaseCancelledReadKeepsLineForNextInput(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	c := NewConsole(Options{In: pr, Out: &out})
	lease := c.BlockingInput()

	cancel := make(chan struct{})
	res := make(chan bool, 1)
	go func() {
		_, ok := lease.ReadLine(cancel)
		res <- ok
	}()
	// Let the read start, then cancel before any line arrives: this is
	// the subprocess exiting while the user is mid-keystroke.
	time.Sleep(20 * time.Millisecond)
	close(cancel)
	if ok := <-res; ok {
		t.Fatal("cancelled ReadLine returned a line")
	}
	lease.Release()

	// The line that finally arrives answers the next prompt instead of
	// vanishing into the dead subprocess.
	go func() { _, _ = pw.Write([]byte("kept\n")) }()
	line, err := c.Input("", nil)
	if err != nil || line != "kept" {
		t.Fatalf("Input after cancelled lease read = %q, %v", line, err)
	}
}

func TestOutputOrderConsistentAcrossMirrors(t *testing.T) {
	c, out := newTestConsole("")
	text := NewMemoryLog("sub")
	c.AddDelegate(text)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.Print(fmt.Sprintf("writer %d line %d", w, i))
			}
		}(w)
	}
	wg.Wait()

	if out.String() != text.Content() {
		t.Error("mirror order diverged from terminal order")
	}
}

func TestHTMLEscaping(t *testing.T) {
	m := NewMsg().Print(`<b class="x">&'`)
	got := htmlMsg(m)
	want := "&lt;b class=&quot;x&quot;&gt;&amp;&#39;<br>\n"
	if got != want {
		t.Errorf("htmlMsg = %q, want %q", got, want)
	}
}

func TestMemoryLogCloseFreezes(t *testing.T) {
	l := NewMemoryLog("sub")
	l.Output(NewMsg().Print("kept"))
	final := l.Close()
	l.Output(NewMsg().Print("dropped"))
	if l.Content() != final {
		t.Errorf("log mutated after Close: %q vs %q", l.Content(), final)
	}
}
