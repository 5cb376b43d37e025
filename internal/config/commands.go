package config

import "fmt"

// Command is one node of the per-submission execution script: either an
// atomic CommandItem or a composite CommandSet.
type Command interface {
	CommandName() string
}

// Diff describes the reference a command's output is compared against.
// Exactly one of Content, File, SubmissionFile, or Command is set.
type Diff struct {
	Content            string `yaml:"content,omitempty"`
	File               string `yaml:"file,omitempty"`
	SubmissionFile     string `yaml:"submission file,omitempty"`
	Command            string `yaml:"command,omitempty"`
	CollapseWhitespace bool   `yaml:"collapse whitespace,omitempty"`
}

func (d *Diff) sources() int {
	n := 0
	if d.Content != "" {
		n++
	}
	if d.File != "" {
		n++
	}
	if d.SubmissionFile != "" {
		n++
	}
	if d.Command != "" {
		n++
	}
	return n
}

// CommandItem is an atomic command run in each submission's folder.
// Version counts in-flight modifications by the grader; the display name
// becomes "name (modified N)" once it is nonzero.
type CommandItem struct {
	Name          string
	Command       string
	Environment   map[string]string
	IsBackground  bool
	IsPassthrough bool
	Stdin         string
	Diff          *Diff
	Version       int
}

func (c *CommandItem) CommandName() string {
	if c.Version > 0 {
		return fmt.Sprintf("%s (modified %d)", c.Name, c.Version)
	}
	return c.Name
}

// Modify replaces the command line and bumps the version counter.
func (c *CommandItem) Modify(command string) {
	c.Command = command
	c.Version++
}

// CommandSet is an ordered group of commands sharing a working folder and
// environment.
type CommandSet struct {
	Name          string
	Commands      []Command
	Folder        string   // literal subfolder, when FolderRegexes is empty
	FolderRegexes []string // searched against subdirectory names in order
	ConfirmFolder bool
	Environment   map[string]string
}

func (c *CommandSet) CommandName() string { return c.Name }

// commandYAML is the raw YAML form of a command item or set; which one it
// is depends on whether "command" or "commands" is present.
type commandYAML struct {
	Name        string            `yaml:"name,omitempty"`
	Command     string            `yaml:"command,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Background  bool              `yaml:"background,omitempty"`
	Passthrough bool              `yaml:"passthrough,omitempty"`
	Stdin       string            `yaml:"stdin,omitempty"`
	Input       string            `yaml:"input,omitempty"` // alias for stdin
	Diff        *Diff             `yaml:"diff,omitempty"`

	Commands      []commandYAML `yaml:"commands,omitempty"`
	Folder        any           `yaml:"folder,omitempty"` // string or list of regexes
	ConfirmFolder bool          `yaml:"confirm folder,omitempty"`
}

// buildCommands converts the raw YAML list into the command model,
// validating the invariants as it goes.
func buildCommands(raw []commandYAML) ([]Command, error) {
	out := make([]Command, 0, len(raw))
	for i, r := range raw {
		cmd, err := buildCommand(r)
		if err != nil {
			return nil, &ModelParseError{
				Section: "commands",
				Msg:     fmt.Sprintf("item %d: %v", i, err),
			}
		}
		out = append(out, cmd)
	}
	return out, nil
}

func buildCommand(r commandYAML) (Command, error) {
	isItem := r.Command != ""
	isSet := len(r.Commands) > 0
	switch {
	case isItem && isSet:
		return nil, fmt.Errorf("%q has both \"command\" and \"commands\"", r.Name)
	case !isItem && !isSet:
		return nil, fmt.Errorf("%q has neither \"command\" nor \"commands\"", r.Name)
	}

	if isItem {
		stdin := r.Stdin
		if stdin == "" {
			stdin = r.Input
		}
		if r.Passthrough && (r.Background || stdin != "" || r.Diff != nil) {
			return nil, fmt.Errorf("%q: passthrough excludes background, stdin, and diff", r.Name)
		}
		if r.Diff != nil && r.Diff.sources() != 1 {
			return nil, fmt.Errorf("%q: diff needs exactly one of content, file, submission file, command", r.Name)
		}
		name := r.Name
		if name == "" {
			name = r.Command
		}
		return &CommandItem{
			Name:          name,
			Command:       r.Command,
			Environment:   r.Environment,
			IsBackground:  r.Background,
			IsPassthrough: r.Passthrough,
			Stdin:         stdin,
			Diff:          r.Diff,
		}, nil
	}

	set := &CommandSet{
		Name:          r.Name,
		ConfirmFolder: r.ConfirmFolder,
		Environment:   r.Environment,
	}
	switch folder := r.Folder.(type) {
	case nil:
	case string:
		set.Folder = folder
	case []any:
		for _, f := range folder {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("%q: folder list entries must be strings", r.Name)
			}
			set.FolderRegexes = append(set.FolderRegexes, s)
		}
	default:
		return nil, fmt.Errorf("%q: folder must be a string or a list of regexes", r.Name)
	}

	for _, child := range r.Commands {
		built, err := buildCommand(child)
		if err != nil {
			return nil, fmt.Errorf("in set %q: %v", r.Name, err)
		}
		set.Commands = append(set.Commands, built)
	}
	return set, nil
}
