// Package grader drives the interactive grading session: discovering
// submissions, walking the configured commands for each one, and keeping
// the gradebook informed through the event bus.
package grader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/config"
	"github.com/jhartz/gradefast/internal/events"
	"github.com/jhartz/gradefast/internal/gfpath"
	"github.com/jhartz/gradefast/internal/grades"
	"github.com/jhartz/gradefast/internal/host"
	"github.com/jhartz/gradefast/internal/submissions"
)

// Grader owns the main terminal loop. It runs on the main goroutine; the
// gradebook server and subprocess readers run beside it.
type Grader struct {
	ch       channel.Channel
	host     host.Host
	bus      *events.Bus
	subs     *submissions.Manager
	settings *config.Settings

	// Background commands survive across submissions and are collected
	// after the last one.
	background []*host.BackgroundCommand
}

func New(ch channel.Channel, h host.Host, bus *events.Bus, subs *submissions.Manager, settings *config.Settings) *Grader {
	return &Grader{
		ch:       ch,
		host:     h,
		bus:      bus,
		subs:     subs,
		settings: settings,
	}
}

// HandleAuthRequests registers the bus handler that asks the terminal
// user whether a newly connected gradebook client may see privileged
// updates.
func (g *Grader) HandleAuthRequests() {
	g.bus.Register(events.HandlerFunc{
		AcceptFn: func(e events.Event) bool {
			_, ok := e.(events.AuthRequested)
			return ok
		},
		HandleFn: func(e events.Event) {
			req := e.(events.AuthRequested)
			g.ch.Output(channel.NewMsg().Bright("Gradebook client connected: " + req.RequestDetails))
			reply, err := g.ch.Prompt("Allow?", []string{"y", "n"}, "y", true, nil)
			if err == nil && reply == "y" {
				g.bus.Dispatch(events.AuthGranted{
					Meta:        events.NewMeta(),
					AuthEventID: req.EventID(),
				})
			}
		},
	})
}

// PromptForSubmissions asks for submission folders until at least one
// submission exists or the user gives up. Reports whether any exist.
func (g *Grader) PromptForSubmissions() bool {
	for g.subs.Len() == 0 {
		g.ch.Output(channel.NewMsg().Status("Choose a folder of submissions"))
		folder, ok := g.host.ChooseFolder(gfpath.Path{})
		if !ok {
			break
		}
		g.AddSubmissions(folder)
		if g.subs.Len() == 0 {
			g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("No submissions found in %s", folder)))
		}
	}
	return g.subs.Len() > 0
}

// AddSubmissions scans folder for submissions, unpacking zip files and
// wrapping loose files into sibling folders as configured.
func (g *Grader) AddSubmissions(folder gfpath.Path) {
	entries, err := g.host.ListFolder(folder)
	if err != nil {
		g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Error listing %s: %v", folder, err)))
		return
	}

	type found struct{ name, fullName string }
	var accepted []found
	haveFolder := make(map[string]bool)
	for _, e := range entries {
		if e.Kind == host.KindFolder {
			haveFolder[e.Name] = true
		}
	}

	for _, e := range entries {
		switch e.Kind {
		case host.KindFolder:
			if name, ok := g.submissionName(e.Name); ok {
				accepted = append(accepted, found{name: name, fullName: e.Name})
			}
		case host.KindFile:
			stem, ext := splitExt(e.Name)
			if stem == "" {
				continue
			}
			name, ok := g.submissionName(stem)
			if !ok {
				continue
			}
			if haveFolder[stem] {
				continue
			}
			sibling := folder.Append(stem)
			switch {
			case g.settings.CheckZipfiles && strings.EqualFold(ext, "zip"):
				if err := g.host.Unzip(folder.Append(e.Name), sibling); err != nil {
					g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Error unzipping %s: %v", e.Name, err)))
					continue
				}
			case extListed(ext, g.settings.CheckFileExtensions):
				if err := g.host.MoveToFolder(folder.Append(e.Name), sibling); err != nil {
					g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Error moving %s: %v", e.Name, err)))
					continue
				}
			default:
				continue
			}
			haveFolder[stem] = true
			accepted = append(accepted, found{name: name, fullName: stem})
		}
	}

	for _, f := range accepted {
		g.subs.Add(f.name, f.fullName, folder.Append(f.fullName),
			grades.Build(g.settings.GradeStructure), true)
		g.ch.Output(channel.NewMsg().Status("Added submission: " + f.name))
	}
	if len(accepted) > 0 {
		g.bus.Dispatch(events.NewSubmissionList{
			Meta:        events.NewMeta(),
			Submissions: g.subs.Infos(),
		})
	}
}

// submissionName applies the submission regex. The display name is the
// first non-empty capture group, else the entry name itself. ok is false
// when a regex is configured and does not match.
func (g *Grader) submissionName(entry string) (string, bool) {
	re := g.settings.SubmissionRegex
	if re == nil {
		return entry, true
	}
	m := re.FindStringSubmatch(entry)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if group != "" {
			return group, true
		}
	}
	return entry, true
}

func splitExt(name string) (stem, ext string) {
	e := filepath.Ext(name)
	return strings.TrimSuffix(name, e), strings.TrimPrefix(e, ".")
}

func extListed(ext string, list []string) bool {
	for _, l := range list {
		if strings.EqualFold(strings.TrimPrefix(l, "."), ext) {
			return true
		}
	}
	return false
}

// RunCommands is the interactive grading loop. It returns after the user
// quits or declines to loop around, once all background commands have
// been collected.
func (g *Grader) RunCommands() {
	currentID := g.subs.FirstID()

loop:
	for currentID != 0 {
		sub := g.subs.Get(currentID)
		if sub == nil {
			currentID = g.subs.FirstID()
			continue
		}

		reply, err := g.ch.Prompt(
			fmt.Sprintf("Press Enter to grade \"%s\"", sub.Name),
			[]string{"", "g", "goto", "b", "back", "s", "skip", "l", "list", "a", "add", "q", "quit"},
			"", false,
			[]string{"h", "?"})
		if err != nil {
			break
		}

		switch reply {
		case "":
			g.runOne(sub)
			next := g.subs.NextID(currentID)
			if next == 0 {
				if !g.loopAround() {
					break loop
				}
				next = g.subs.FirstID()
			}
			currentID = next

		case "g", "goto":
			currentID = g.promptGoto(currentID)

		case "b", "back":
			if prev := g.subs.PreviousID(currentID); prev != 0 {
				currentID = prev
			}

		case "s", "skip":
			next := g.subs.NextID(currentID)
			if next == 0 {
				if !g.loopAround() {
					break loop
				}
				next = g.subs.FirstID()
			}
			currentID = next

		case "l", "list":
			g.listSubmissions()

		case "a", "add":
			g.ch.Output(channel.NewMsg().Status("Choose a folder of submissions"))
			if folder, ok := g.host.ChooseFolder(gfpath.Path{}); ok {
				g.AddSubmissions(folder)
			}

		case "q", "quit":
			break loop

		case "h", "?":
			g.printTopHelp()
		}
	}

	g.finish()
}

func (g *Grader) loopAround() bool {
	reply, err := g.ch.Prompt("End of the list. Loop around?", []string{"y", "n"}, "n", true, nil)
	return err == nil && reply == "y"
}

func (g *Grader) listSubmissions() {
	for _, sub := range g.subs.All() {
		earned, possible, _ := sub.Grade.GetScore()
		g.ch.Output(channel.NewMsg().Print(fmt.Sprintf("%4d: %s (%s / %s)",
			sub.ID, sub.Name, grades.FormatScore(earned), grades.FormatScore(possible))))
	}
}

func (g *Grader) printTopHelp() {
	for _, line := range []string{
		"Enter       grade this submission",
		"g, goto     jump to a submission (n, +n, or -n)",
		"b, back     go back one submission",
		"s, skip     skip this submission",
		"l, list     list submissions and scores",
		"a, add      add more submissions",
		"q, quit     stop grading",
	} {
		g.ch.Output(channel.NewMsg().Print("  " + line))
	}
}

// promptGoto reads a goto target and returns the new current id. The
// cursor is clamped to the submission range; 0 and unparseable input are
// rejected.
func (g *Grader) promptGoto(currentID int) int {
	reply, err := g.ch.Input("Go to (n, +n, -n): ", nil)
	if err != nil {
		return currentID
	}

	ids := make([]int, 0, g.subs.Len())
	index := 0
	for i, sub := range g.subs.All() {
		ids = append(ids, sub.ID)
		if sub.ID == currentID {
			index = i + 1
		}
	}

	target, ok := gotoIndex(reply, index, len(ids))
	if !ok {
		g.ch.Output(channel.NewMsg().Error("Invalid position: " + strings.TrimSpace(reply)))
		return currentID
	}
	return ids[target-1]
}

// gotoIndex resolves a goto expression against a 1-based cursor over n
// entries. "+k"/"-k" move relatively; a bare number jumps absolutely.
// Results are clamped to [1, n]; 0 and non-numbers are rejected.
func gotoIndex(input string, current, n int) (int, bool) {
	input = strings.TrimSpace(input)
	if input == "" || n == 0 {
		return 0, false
	}
	relative := input[0] == '+' || input[0] == '-'
	v, err := strconv.Atoi(input)
	if err != nil {
		return 0, false
	}

	var target int
	if relative {
		target = current + v
	} else {
		if v == 0 {
			return 0, false
		}
		target = v
	}
	if target < 1 {
		target = 1
	}
	if target > n {
		target = n
	}
	return target, true
}

// runOne grades a single submission: mirrors attached, events dispatched,
// timer running.
func (g *Grader) runOne(sub *submissions.Submission) {
	htmlLog := channel.NewMemoryHTMLLog(sub.Name)
	textLog := channel.NewMemoryLog(sub.Name)
	g.ch.AddDelegate(htmlLog)
	g.ch.AddDelegate(textLog)

	g.bus.Dispatch(events.SubmissionStarted{
		Meta:         events.NewMeta(),
		SubmissionID: sub.ID,
		HTMLLog:      htmlLog,
		TextLog:      textLog,
	})

	timer, _ := g.subs.StartTimer(sub.ID)
	err := g.runSubmission(sub)
	g.subs.StopTimer(timer)

	g.ch.RemoveDelegate(htmlLog)
	g.ch.RemoveDelegate(textLog)
	htmlLog.Close()
	textLog.Close()
	g.subs.AddLogs(sub.ID, htmlLog, textLog)

	g.bus.Dispatch(events.SubmissionFinished{
		Meta:         events.NewMeta(),
		SubmissionID: sub.ID,
		LogHTML:      htmlLog.Content(),
	})

	if errors.Is(err, channel.ErrInterrupted) {
		g.ch.Output(channel.NewMsg().Error("Submission interrupted"))
	}
}

// finish ends the grading loop: announce, drain background commands, and
// show end-of-run statistics.
func (g *Grader) finish() {
	g.bus.Dispatch(events.EndOfSubmissions{Meta: events.NewMeta()})

	for _, bg := range g.background {
		g.ch.Output(channel.NewMsg().Status("Waiting for: " + bg.GetDescription()))
		bg.Wait()
		if out := bg.GetOutput(); out != "" {
			g.ch.Output(channel.NewMsgSep("", "\n").Print(out))
		}
		if errMsg := bg.GetError(); errMsg != "" {
			g.ch.Output(channel.NewMsg().Error(errMsg))
		}
	}
	g.background = nil

	g.showStats()
}

func (g *Grader) showStats() {
	if g.subs.Len() == 0 {
		return
	}

	g.ch.Output(channel.NewMsg().Bright("Scores"))
	g.printStats(g.subs.GradingStats(), func(v float64) string {
		return grades.FormatScore(v)
	})
	g.ch.Output(channel.NewMsg().Bright("Grading time (seconds)"))
	g.printStats(g.subs.TimingStats(), func(v float64) string {
		return fmt.Sprintf("%.0f", v)
	})
}

func (g *Grader) printStats(s submissions.Stats, format func(float64) string) {
	if s.N == 0 {
		return
	}
	line := func(label, value string, ids []int) {
		text := fmt.Sprintf("  %-8s %s", label, value)
		if len(ids) > 0 {
			text += fmt.Sprintf("  %v", g.names(ids))
		}
		g.ch.Output(channel.NewMsg().Print(text))
	}
	line("Min:", format(s.Min.Value), s.Min.IDs)
	line("Max:", format(s.Max.Value), s.Max.IDs)
	line("Median:", format(s.Median.Value), s.Median.IDs)
	line("Mean:", format(s.Mean), nil)
	line("Std Dev:", format(s.StdDev), nil)
	modes := make([]string, len(s.Modes))
	for i, m := range s.Modes {
		modes[i] = format(m)
	}
	line("Modes:", strings.Join(modes, ", "), nil)
}

func (g *Grader) names(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if sub := g.subs.Get(id); sub != nil {
			out = append(out, sub.Name)
		}
	}
	return out
}
