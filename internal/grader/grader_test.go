package grader

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/config"
	"github.com/jhartz/gradefast/internal/events"
	"github.com/jhartz/gradefast/internal/gfpath"
	"github.com/jhartz/gradefast/internal/grades"
	"github.com/jhartz/gradefast/internal/host"
	"github.com/jhartz/gradefast/internal/submissions"
)

// testChannel scripts Input/Prompt replies and records output messages.
type testChannel struct {
	msgs   []*channel.Msg
	inputs []string
}

func (c *testChannel) Output(m *channel.Msg) { c.msgs = append(c.msgs, m) }

func (c *testChannel) pop() (string, error) {
	if len(c.inputs) == 0 {
		return "", channel.ErrInterrupted
	}
	v := c.inputs[0]
	c.inputs = c.inputs[1:]
	return v, nil
}

func (c *testChannel) Input(prompt string, autocomplete []string) (string, error) {
	return c.pop()
}

func (c *testChannel) Prompt(question string, choices []string, defaultChoice string, showChoices bool, hidden []string) (string, error) {
	reply, err := c.pop()
	if err != nil {
		return "", err
	}
	if reply == "" && defaultChoice != "" {
		return defaultChoice, nil
	}
	return reply, nil
}

func (c *testChannel) BlockingInput() *channel.StdinLease { return nil }
func (c *testChannel) AddDelegate(l channel.Log)          {}
func (c *testChannel) RemoveDelegate(l channel.Log)       {}

// fakeHost serves canned folder listings and file contents.
type fakeHost struct {
	folders  map[string][]host.FolderEntry
	files    map[string]string
	commands map[string]string
	unzipped []string
	moved    []string
}

func (h *fakeHost) RunCommand(ctx context.Context, cmd string, dir gfpath.Path, env map[string]string, stdin string, printOutput bool) (string, error) {
	if out, ok := h.commands[cmd]; ok {
		return out, nil
	}
	return "", &host.CommandStartError{Command: cmd, Err: errors.New("not scripted")}
}

func (h *fakeHost) RunCommandPassthrough(cmd string, dir gfpath.Path, env map[string]string) error {
	return nil
}

func (h *fakeHost) StartBackgroundCommand(cmd string, dir gfpath.Path, env map[string]string, stdin string) (*host.BackgroundCommand, error) {
	return nil, &host.CommandStartError{Command: cmd, Err: errors.New("no background in tests")}
}

func (h *fakeHost) Exists(p gfpath.Path) bool {
	_, okF := h.files[p.String()]
	_, okD := h.folders[p.String()]
	return okF || okD
}

func (h *fakeHost) FolderExists(p gfpath.Path) bool {
	_, ok := h.folders[p.String()]
	return ok
}

func (h *fakeHost) ReadTextFile(p gfpath.Path) (string, error) {
	if text, ok := h.files[p.String()]; ok {
		return text, nil
	}
	return "", errors.New("no such file: " + p.String())
}

func (h *fakeHost) ListFolder(p gfpath.Path) ([]host.FolderEntry, error) {
	entries, ok := h.folders[p.String()]
	if !ok {
		return nil, errors.New("no such folder: " + p.String())
	}
	return entries, nil
}

func (h *fakeHost) MoveToFolder(file gfpath.Path, folder gfpath.Path) error {
	h.moved = append(h.moved, file.String())
	h.folders[folder.String()] = nil
	return nil
}

func (h *fakeHost) Unzip(file gfpath.Path, folder gfpath.Path) error {
	h.unzipped = append(h.unzipped, file.String())
	h.folders[folder.String()] = nil
	return nil
}

func (h *fakeHost) ChooseFolder(start gfpath.Path) (gfpath.Path, bool) { return start, true }
func (h *fakeHost) OpenShell(dir gfpath.Path)                          {}
func (h *fakeHost) OpenFolder(dir gfpath.Path)                         {}

func testSettings() *config.Settings {
	return &config.Settings{
		GradeStructure: []grades.Def{
			&grades.ScoreDef{Name: "A", Points: 10, Hints: grades.NewHintList(nil), DefaultEnabled: true, DefaultScore: 10},
		},
		SubmissionRegex:     regexp.MustCompile(`^(\w+?)_submission$`),
		CheckZipfiles:       true,
		CheckFileExtensions: []string{"java"},
	}
}

func TestGotoIndex(t *testing.T) {
	tests := []struct {
		input   string
		current int
		n       int
		want    int
		ok      bool
	}{
		{"+99", 2, 3, 3, true},
		{"-10", 2, 3, 1, true},
		{"0", 2, 3, 0, false},
		{"2", 1, 3, 2, true},
		{"99", 1, 3, 3, true},
		{"+1", 2, 3, 3, true},
		{"-1", 2, 3, 1, true},
		{"x", 2, 3, 0, false},
		{"", 2, 3, 0, false},
	}
	for _, tt := range tests {
		got, ok := gotoIndex(tt.input, tt.current, tt.n)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("gotoIndex(%q, %d, %d) = %d, %v; want %d, %v",
				tt.input, tt.current, tt.n, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDiffMessagesAllMatch(t *testing.T) {
	msgs := diffMessages("hello\nWorld", "Hello\nworld", false)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	for _, m := range msgs {
		if m.Parts[0].Type != channel.PartBgMeh {
			t.Errorf("part type = %v, want BgMeh", m.Parts[0].Type)
		}
	}
	// The original output lines are printed, not the cleaned ones.
	if msgs[0].Parts[0].Text != "  Hello" {
		t.Errorf("line = %q", msgs[0].Parts[0].Text)
	}
}

func TestDiffMessagesMismatch(t *testing.T) {
	msgs := diffMessages("hello\nplanet", "Hello\nworld", false)

	var minus, plus, meh, locators int
	for _, m := range msgs {
		switch m.Parts[0].Type {
		case channel.PartBgHappy:
			minus++
			if m.Parts[0].Text != "- planet" {
				t.Errorf("minus line = %q", m.Parts[0].Text)
			}
		case channel.PartBgSad:
			plus++
			if m.Parts[0].Text != "+ world" {
				t.Errorf("plus line = %q", m.Parts[0].Text)
			}
		case channel.PartBgMeh:
			meh++
		case channel.PartAccentHappy, channel.PartAccentSad:
			locators++
			if !strings.HasPrefix(m.Parts[0].Text, "? ") {
				t.Errorf("locator line = %q", m.Parts[0].Text)
			}
		}
	}
	if minus != 1 || plus != 1 || meh != 1 {
		t.Errorf("minus/plus/meh = %d/%d/%d, want 1/1/1", minus, plus, meh)
	}
	if locators != 2 {
		t.Errorf("locator lines = %d, want 2", locators)
	}
}

func TestDiffMessagesReplaceLocators(t *testing.T) {
	msgs := diffMessages("value: 10", "value: 12", false)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages", len(msgs))
	}

	// "value: 1" matches; the marker points at the differing last digit.
	wantMark := "? " + strings.Repeat(" ", 8) + "^"
	want := []struct {
		typ  channel.PartType
		text string
	}{
		{channel.PartBgHappy, "- value: 10"},
		{channel.PartAccentHappy, wantMark},
		{channel.PartBgSad, "+ value: 12"},
		{channel.PartAccentSad, wantMark},
	}
	for i, w := range want {
		if msgs[i].Parts[0].Type != w.typ || msgs[i].Parts[0].Text != w.text {
			t.Errorf("msgs[%d] = (%v, %q), want (%v, %q)",
				i, msgs[i].Parts[0].Type, msgs[i].Parts[0].Text, w.typ, w.text)
		}
	}
}

func TestDiffMessagesCollapseWhitespace(t *testing.T) {
	msgs := diffMessages("a  b\tc", "a b c", true)
	if len(msgs) != 1 || msgs[0].Parts[0].Type != channel.PartBgMeh {
		t.Errorf("collapsed diff = %+v", msgs)
	}
}

func TestSubmissionName(t *testing.T) {
	g := &Grader{settings: testSettings()}
	name, ok := g.submissionName("alice_submission")
	if !ok || name != "alice" {
		t.Errorf("name = %q, %v", name, ok)
	}
	if _, ok := g.submissionName("README"); ok {
		t.Error("README should not match")
	}

	g.settings.SubmissionRegex = nil
	name, ok = g.submissionName("anything")
	if !ok || name != "anything" {
		t.Errorf("without regex: %q, %v", name, ok)
	}
}

func TestAddSubmissions(t *testing.T) {
	ch := &testChannel{}
	fh := &fakeHost{
		folders: map[string][]host.FolderEntry{
			"~/grading": {
				{Name: "alice_submission", Kind: host.KindFolder},
				{Name: "bob_submission.zip", Kind: host.KindFile},
				{Name: "carol_submission.java", Kind: host.KindFile},
				{Name: "dave_submission", Kind: host.KindFolder},
				{Name: "dave_submission.zip", Kind: host.KindFile},
				{Name: "README.txt", Kind: host.KindFile},
			},
		},
		files: map[string]string{},
	}

	bus := events.NewBus()
	var lists int
	bus.Register(events.HandlerFunc{
		AcceptFn: func(e events.Event) bool {
			_, ok := e.(events.NewSubmissionList)
			return ok
		},
		HandleFn: func(e events.Event) { lists++ },
	})

	subs := submissions.NewManager(bus)
	g := New(ch, fh, bus, subs, testSettings())
	g.AddSubmissions(gfpath.New("~/grading"))

	var names []string
	for _, s := range subs.All() {
		names = append(names, s.Name)
	}
	want := []string{"alice", "bob", "carol", "dave"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}

	if len(fh.unzipped) != 1 || fh.unzipped[0] != "~/grading/bob_submission.zip" {
		t.Errorf("unzipped = %v", fh.unzipped)
	}
	if len(fh.moved) != 1 || fh.moved[0] != "~/grading/carol_submission.java" {
		t.Errorf("moved = %v", fh.moved)
	}
	if lists != 1 {
		t.Errorf("NewSubmissionList dispatched %d times, want 1", lists)
	}

	sub := subs.Get(1)
	if sub.FullName != "alice_submission" || sub.Path.String() != "~/grading/alice_submission" {
		t.Errorf("submission = %+v", sub)
	}
}

func TestBuildDiffReference(t *testing.T) {
	fh := &fakeHost{
		files: map[string]string{
			"~/refs/expected.txt":    "from diff file path",
			"~/work/sub/student.out": "from submission",
		},
		commands: map[string]string{
			"./reference.sh": "from command",
		},
	}
	settings := testSettings()
	settings.DiffFilePath = "~/refs"
	g := New(&testChannel{}, fh, events.NewBus(), submissions.NewManager(nil), settings)

	folder := gfpath.New("~/work/sub")
	tests := []struct {
		diff *config.Diff
		want string
	}{
		{&config.Diff{Content: "literal"}, "literal"},
		{&config.Diff{File: "expected.txt"}, "from diff file path"},
		{&config.Diff{SubmissionFile: "student.out"}, "from submission"},
		{&config.Diff{Command: "./reference.sh"}, "from command"},
	}
	for _, tt := range tests {
		got, err := g.buildDiffReference(tt.diff, folder, nil)
		if err != nil || got != tt.want {
			t.Errorf("buildDiffReference(%+v) = %q, %v; want %q", tt.diff, got, err, tt.want)
		}
	}

	if _, err := g.buildDiffReference(&config.Diff{File: "missing.txt"}, folder, nil); err == nil {
		t.Error("expected error for missing reference file")
	}
}

func TestRunCommandsQuitCollectsEvents(t *testing.T) {
	ch := &testChannel{inputs: []string{"q"}}
	fh := &fakeHost{folders: map[string][]host.FolderEntry{}}

	bus := events.NewBus()
	var done int
	bus.Register(events.HandlerFunc{
		AcceptFn: func(e events.Event) bool {
			_, ok := e.(events.EndOfSubmissions)
			return ok
		},
		HandleFn: func(e events.Event) { done++ },
	})

	subs := submissions.NewManager(bus)
	subs.Add("a", "a", gfpath.New("~/a"), grades.Build(testSettings().GradeStructure), true)

	g := New(ch, fh, bus, subs, testSettings())
	g.RunCommands()

	if done != 1 {
		t.Errorf("EndOfSubmissions dispatched %d times, want 1", done)
	}
}

func TestHandleAuthRequests(t *testing.T) {
	ch := &testChannel{inputs: []string{"y"}}
	bus := events.NewBus()

	var granted []int64
	bus.Register(events.HandlerFunc{
		AcceptFn: func(e events.Event) bool {
			_, ok := e.(events.AuthGranted)
			return ok
		},
		HandleFn: func(e events.Event) {
			granted = append(granted, e.(events.AuthGranted).AuthEventID)
		},
	})

	g := New(ch, &fakeHost{}, bus, submissions.NewManager(nil), testSettings())
	g.HandleAuthRequests()

	req := events.AuthRequested{Meta: events.NewMeta(), RequestDetails: "127.0.0.1 / test-agent"}
	bus.Dispatch(req)

	if len(granted) != 1 || granted[0] != req.EventID() {
		t.Errorf("granted = %v, want [%d]", granted, req.EventID())
	}

	// A declined client never produces a grant.
	ch.inputs = []string{"n"}
	bus.Dispatch(events.AuthRequested{Meta: events.NewMeta(), RequestDetails: "10.0.0.9"})
	if len(granted) != 1 {
		t.Errorf("granted grew after decline: %v", granted)
	}
}

func TestFindFolderFromRegexUniqueMatch(t *testing.T) {
	fh := &fakeHost{
		folders: map[string][]host.FolderEntry{
			"~/sub": {
				{Name: "project4", Kind: host.KindFolder},
				{Name: "notes", Kind: host.KindFile},
			},
			"~/sub/project4": {},
		},
	}
	g := New(&testChannel{}, fh, events.NewBus(), submissions.NewManager(nil), testSettings())

	got, ok := g.findFolderFromRegex(gfpath.New("~/sub"), `project\d+`)
	if !ok || got.String() != "~/sub/project4" {
		t.Errorf("got %q, %v", got, ok)
	}

	if _, ok := g.findFolderFromRegex(gfpath.New("~/sub"), `lab\d+`); ok {
		t.Error("expected no match for lab regex")
	}
}
