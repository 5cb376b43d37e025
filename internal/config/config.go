// Package config loads the GradeFast YAML configuration and produces the
// immutable Settings record the rest of the system is wired from. Flag
// and GRADEFAST_* environment overrides are merged in through viper.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jhartz/gradefast/internal/grades"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// DefaultPort is the gradebook's default listen port.
const DefaultPort = 8051

// Settings is the immutable runtime configuration.
type Settings struct {
	ProjectName string
	SaveFile    string
	LogFile     string
	LogAsHTML   bool

	GradeStructure []grades.Def
	Commands       []Command

	Host string
	Port int

	SubmissionRegex     *regexp.Regexp
	CheckZipfiles       bool
	CheckFileExtensions []string
	DiffFilePath        string

	UseReadline          bool
	UseColor             bool
	BaseEnv              map[string]string
	PreferCLIFileChooser bool

	ShellCommand    string
	ShellArgs       []string
	TerminalCommand string
	TerminalArgs    []string
}

type hintYAML struct {
	Name           string  `yaml:"name"`
	Value          float64 `yaml:"value"`
	DefaultEnabled bool    `yaml:"default enabled"`
}

type gradeYAML struct {
	Name            string      `yaml:"name"`
	Points          *float64    `yaml:"points,omitempty"`
	Grades          []gradeYAML `yaml:"grades,omitempty"`
	Hints           []hintYAML  `yaml:"hints,omitempty"`
	DefaultEnabled  *bool       `yaml:"default enabled,omitempty"`
	DefaultScore    *float64    `yaml:"default score,omitempty"`
	DefaultComments string      `yaml:"default comments,omitempty"`
	Note            string      `yaml:"note,omitempty"`
	LatePercent     float64     `yaml:"deduct percent if late,omitempty"`
}

type settingsYAML struct {
	ProjectName          string            `yaml:"project name,omitempty"`
	SaveFile             string            `yaml:"save file,omitempty"`
	LogFile              string            `yaml:"log file,omitempty"`
	LogAsHTML            bool              `yaml:"log as html,omitempty"`
	Host                 string            `yaml:"host,omitempty"`
	Port                 int               `yaml:"port,omitempty"`
	SubmissionRegex      string            `yaml:"submission regex,omitempty"`
	CheckZipfiles        bool              `yaml:"check zipfiles,omitempty"`
	CheckFileExtensions  []string          `yaml:"check file extensions,omitempty"`
	DiffFilePath         string            `yaml:"diff file path,omitempty"`
	UseReadline          *bool             `yaml:"use readline,omitempty"`
	UseColor             *bool             `yaml:"use color,omitempty"`
	BaseEnv              map[string]string `yaml:"base env,omitempty"`
	PreferCLIFileChooser bool              `yaml:"prefer cli file chooser,omitempty"`
	ShellCommand         string            `yaml:"shell command,omitempty"`
	ShellArgs            []string          `yaml:"shell args,omitempty"`
	TerminalCommand      string            `yaml:"terminal command,omitempty"`
	TerminalArgs         []string          `yaml:"terminal args,omitempty"`
}

type configYAML struct {
	Grades   []gradeYAML   `yaml:"grades"`
	Commands []commandYAML `yaml:"commands"`
	Settings settingsYAML  `yaml:"settings,omitempty"`
}

// Load reads and validates the YAML config file, then applies viper
// overrides (flags and GRADEFAST_* env vars bound by cmd/gradefast).
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UsageError{Msg: fmt.Sprintf("cannot read config file %s: %v", path, err)}
	}
	return Parse(data, path)
}

// Parse builds Settings from raw YAML config bytes.
func Parse(data []byte, path string) (*Settings, error) {
	var raw configYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ModelParseError{Section: "settings", Msg: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if len(raw.Grades) == 0 {
		return nil, &ModelParseError{Section: "grades", Msg: "no grade items defined"}
	}

	structure, err := buildGradeDefs(raw.Grades)
	if err != nil {
		return nil, err
	}
	commands, err := buildCommands(raw.Commands)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		ProjectName:          raw.Settings.ProjectName,
		SaveFile:             raw.Settings.SaveFile,
		LogFile:              raw.Settings.LogFile,
		LogAsHTML:            raw.Settings.LogAsHTML,
		GradeStructure:       structure,
		Commands:             commands,
		Host:                 raw.Settings.Host,
		Port:                 raw.Settings.Port,
		CheckZipfiles:        raw.Settings.CheckZipfiles,
		CheckFileExtensions:  raw.Settings.CheckFileExtensions,
		DiffFilePath:         raw.Settings.DiffFilePath,
		UseReadline:          true,
		UseColor:             true,
		BaseEnv:              raw.Settings.BaseEnv,
		PreferCLIFileChooser: raw.Settings.PreferCLIFileChooser,
		ShellCommand:         raw.Settings.ShellCommand,
		ShellArgs:            raw.Settings.ShellArgs,
		TerminalCommand:      raw.Settings.TerminalCommand,
		TerminalArgs:         raw.Settings.TerminalArgs,
	}
	if s.ProjectName == "" {
		s.ProjectName = path
	}
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if raw.Settings.UseReadline != nil {
		s.UseReadline = *raw.Settings.UseReadline
	}
	if raw.Settings.UseColor != nil {
		s.UseColor = *raw.Settings.UseColor
	}
	if raw.Settings.SubmissionRegex != "" {
		re, err := regexp.Compile(raw.Settings.SubmissionRegex)
		if err != nil {
			return nil, &ModelParseError{
				Section: "settings",
				Msg:     fmt.Sprintf("invalid submission regex: %v", err),
			}
		}
		s.SubmissionRegex = re
	}

	applyViperOverrides(s)
	return s, nil
}

// applyViperOverrides lets flags and GRADEFAST_* env vars win over the
// YAML settings block.
func applyViperOverrides(s *Settings) {
	if v := viper.GetString("host"); v != "" {
		s.Host = v
	}
	if v := viper.GetInt("port"); v != 0 {
		s.Port = v
	}
	if v := viper.GetString("save_file"); v != "" {
		s.SaveFile = v
	}
	if v := viper.GetString("log_file"); v != "" {
		s.LogFile = v
	}
	if viper.GetBool("log_html") {
		s.LogAsHTML = true
	}
	if viper.GetBool("no_color") {
		s.UseColor = false
	}
	if viper.GetBool("no_readline") {
		s.UseReadline = false
	}
}

// buildGradeDefs converts the raw grade YAML into the shared structure.
func buildGradeDefs(raw []gradeYAML) ([]grades.Def, error) {
	defs := make([]grades.Def, 0, len(raw))
	for _, r := range raw {
		def, err := buildGradeDef(r)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func buildGradeDef(r gradeYAML) (grades.Def, error) {
	if r.Name == "" {
		return nil, &ModelParseError{Section: "grades", Msg: "grade item with no name"}
	}
	isLeaf := r.Points != nil
	isSection := len(r.Grades) > 0
	if isLeaf && isSection {
		return nil, &ModelParseError{
			Section: "grades",
			Msg:     fmt.Sprintf("%q has both \"points\" and \"grades\"", r.Name),
		}
	}
	if !isLeaf && !isSection {
		return nil, &ModelParseError{
			Section: "grades",
			Msg:     fmt.Sprintf("%q has neither \"points\" nor \"grades\"", r.Name),
		}
	}

	hints := make([]grades.Hint, 0, len(r.Hints))
	for _, h := range r.Hints {
		hints = append(hints, grades.Hint{
			Name:           h.Name,
			Value:          h.Value,
			DefaultEnabled: h.DefaultEnabled,
		})
	}

	enabled := true
	if r.DefaultEnabled != nil {
		enabled = *r.DefaultEnabled
	}

	if isLeaf {
		points := *r.Points
		if points < 0 {
			return nil, &ModelParseError{
				Section: "grades",
				Msg:     fmt.Sprintf("%q: points must be >= 0", r.Name),
			}
		}
		// Grading is by deduction: a leaf starts at full credit unless
		// the structure says otherwise.
		score := points
		if r.DefaultScore != nil {
			score = *r.DefaultScore
		}
		if score < 0 || score > points {
			return nil, &ModelParseError{
				Section: "grades",
				Msg:     fmt.Sprintf("%q: default score must be in [0, %s]", r.Name, grades.FormatScore(points)),
			}
		}
		return &grades.ScoreDef{
			Name:            r.Name,
			Points:          points,
			Hints:           grades.NewHintList(hints),
			DefaultEnabled:  enabled,
			DefaultScore:    score,
			DefaultComments: r.DefaultComments,
			Note:            r.Note,
		}, nil
	}

	if r.LatePercent < 0 || r.LatePercent > 100 {
		return nil, &ModelParseError{
			Section: "grades",
			Msg:     fmt.Sprintf("%q: deduct percent if late must be in [0, 100]", r.Name),
		}
	}
	children, err := buildGradeDefs(r.Grades)
	if err != nil {
		return nil, err
	}
	return &grades.SectionDef{
		Name:           r.Name,
		Children:       children,
		Hints:          grades.NewHintList(hints),
		DefaultEnabled: enabled,
		LateDeduction:  r.LatePercent,
		Note:           r.Note,
	}, nil
}
