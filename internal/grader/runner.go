package grader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strconv"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/config"
	"github.com/jhartz/gradefast/internal/gfpath"
	"github.com/jhartz/gradefast/internal/host"
	"github.com/jhartz/gradefast/internal/submissions"
)

// errSkipSubmission unwinds the command traversal back to the top of the
// grading loop without touching the rest of the submission's commands.
var errSkipSubmission = errors.New("skip rest of submission")

// runSubmission walks the configured command tree for one submission.
func (g *Grader) runSubmission(sub *submissions.Submission) error {
	g.ch.Output(channel.NewMsg().BgHappy(fmt.Sprintf("Grading \"%s\"", sub.Name)))

	folder, ok := g.host.ChooseFolder(sub.Path)
	if !ok {
		g.ch.Output(channel.NewMsg().Error("No folder chosen; skipping submission"))
		return nil
	}

	env := map[string]string{
		"SUBMISSION_NAME":                sub.Name,
		"GRADEFAST_SUBMISSION_NAME":      sub.Name,
		"GRADEFAST_SUBMISSION_FULL_NAME": sub.FullName,
		"GRADEFAST_SUBMISSION_ID":        strconv.Itoa(sub.ID),
		"GRADEFAST_SUBMISSION_PATH":      folder.String(),
	}

	err := g.runList(sub, g.settings.Commands, folder, env)
	if errors.Is(err, errSkipSubmission) {
		return nil
	}
	return err
}

// runList executes a command list with the current (folder, env) context.
func (g *Grader) runList(sub *submissions.Submission, cmds []config.Command, folder gfpath.Path, env map[string]string) error {
	for _, cmd := range cmds {
		var err error
		switch c := cmd.(type) {
		case *config.CommandSet:
			err = g.runSet(sub, c, folder, env)
		case *config.CommandItem:
			err = g.runItem(sub, c, folder, env)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Grader) runSet(sub *submissions.Submission, set *config.CommandSet, folder gfpath.Path, env map[string]string) error {
	if set.Name != "" {
		g.ch.Output(channel.NewMsg().Status("Starting: " + set.Name))
	}

	setFolder, ok := g.findFolder(folder, set)
	if !ok {
		g.ch.Output(channel.NewMsg().Error("Skipping: " + set.Name))
		return nil
	}

	err := g.runList(sub, set.Commands, setFolder, mergeEnv(env, set.Environment))
	if set.Name != "" && err == nil {
		g.ch.Output(channel.NewMsg().Status("Finished: " + set.Name))
	}
	return err
}

// findFolder resolves a command set's working folder below the current
// one: a literal subfolder name, or a chain of regexes each selecting one
// subdirectory level.
func (g *Grader) findFolder(folder gfpath.Path, set *config.CommandSet) (gfpath.Path, bool) {
	resolved := folder
	switch {
	case set.Folder != "":
		resolved = folder.Append(set.Folder)
		if !g.host.FolderExists(resolved) {
			g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Folder not found: %s", resolved)))
			return g.host.ChooseFolder(folder)
		}
	case len(set.FolderRegexes) > 0:
		for _, pattern := range set.FolderRegexes {
			next, ok := g.findFolderFromRegex(resolved, pattern)
			if !ok {
				return g.host.ChooseFolder(resolved)
			}
			resolved = next
		}
	}

	if set.ConfirmFolder {
		return g.host.ChooseFolder(resolved)
	}
	return resolved, true
}

// Folder regexes must match the whole subdirectory name.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// findFolderFromRegex picks the subdirectory matching pattern. A unique
// match wins outright; multiple matches go to the user.
func (g *Grader) findFolderFromRegex(folder gfpath.Path, pattern string) (gfpath.Path, bool) {
	re, err := compileAnchored(pattern)
	if err != nil {
		g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Bad folder regex %q: %v", pattern, err)))
		return gfpath.Path{}, false
	}

	entries, err := g.host.ListFolder(folder)
	if err != nil {
		g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Error listing %s: %v", folder, err)))
		return gfpath.Path{}, false
	}

	var matches []string
	for _, e := range entries {
		if e.Kind == host.KindFolder && re.MatchString(e.Name) {
			matches = append(matches, e.Name)
		}
	}

	switch len(matches) {
	case 0:
		g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("No folder in %s matches %q", folder, pattern)))
		return gfpath.Path{}, false
	case 1:
		return folder.Append(matches[0]), true
	default:
		reply, err := g.ch.Prompt(
			fmt.Sprintf("Multiple folders match %q; which one?", pattern),
			matches, "", true, nil)
		if err != nil {
			return gfpath.Path{}, false
		}
		return folder.Append(reply), true
	}
}

// runItem shows the pre-run menu for one command, runs it, and offers to
// repeat.
func (g *Grader) runItem(sub *submissions.Submission, item *config.CommandItem, folder gfpath.Path, env map[string]string) error {
	for {
		reply, err := g.ch.Prompt(
			fmt.Sprintf("About to run: %s", item.CommandName()),
			[]string{"", "o", "f", "m", "s", "ss"},
			"", false,
			[]string{"?", "h"})
		if err != nil {
			return err
		}

		switch reply {
		case "o":
			g.host.OpenShell(folder)
			continue
		case "f":
			g.host.OpenFolder(folder)
			continue
		case "m":
			line, err := g.ch.Input("New command: ", nil)
			if err != nil {
				return err
			}
			if line != "" {
				item.Modify(line)
			}
			continue
		case "s":
			return nil
		case "ss":
			return errSkipSubmission
		case "?", "h":
			g.printItemHelp()
			continue
		}

		if err := g.executeItem(item, folder, mergeEnv(env, item.Environment)); err != nil {
			return err
		}
		if item.IsBackground || item.IsPassthrough {
			return nil
		}

		again, err := g.ch.Prompt("Run again?", []string{"y", "n"}, "n", true, nil)
		if err != nil {
			return err
		}
		if again != "y" {
			return nil
		}
	}
}

func (g *Grader) printItemHelp() {
	for _, line := range []string{
		"Enter   run the command",
		"o       open a shell in the working folder",
		"f       open the working folder",
		"m       modify the command for this submission",
		"s       skip this command",
		"ss      skip the rest of this submission",
	} {
		g.ch.Output(channel.NewMsg().Print("  " + line))
	}
}

// executeItem dispatches one command item. Start and run failures are
// reported and absorbed here; only an interrupt propagates.
func (g *Grader) executeItem(item *config.CommandItem, folder gfpath.Path, env map[string]string) error {
	if item.IsBackground {
		bg, err := g.host.StartBackgroundCommand(item.Command, folder, env, item.Stdin)
		if err != nil {
			g.ch.Output(channel.NewMsg().Error(err.Error()))
			return nil
		}
		g.background = append(g.background, bg)
		g.ch.Output(channel.NewMsg().Status("Started in background: " + bg.GetDescription()))
		return nil
	}

	if item.IsPassthrough {
		if err := g.host.RunCommandPassthrough(item.Command, folder, env); err != nil {
			g.ch.Output(channel.NewMsg().Error(err.Error()))
		}
		return nil
	}

	var reference string
	haveReference := false
	if item.Diff != nil {
		ref, err := g.buildDiffReference(item.Diff, folder, env)
		if err != nil {
			g.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Could not build diff reference: %v", err)))
		} else {
			reference = ref
			haveReference = true
		}
	}

	// Ctrl-C during the run terminates the subprocess, not the grader.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	output, err := g.host.RunCommand(ctx, item.Command, folder, env, item.Stdin, true)
	stop()

	switch {
	case errors.Is(err, channel.ErrInterrupted):
		return err
	case err != nil:
		g.ch.Output(channel.NewMsg().Error(err.Error()))
	}

	if haveReference {
		g.renderDiff(reference, output, item.Diff.CollapseWhitespace)
	}
	return nil
}

func mergeEnv(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
