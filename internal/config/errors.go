package config

import "fmt"

// UsageError reports a problem with the command line or the top-level
// shape of the config file. main prints it and exits 2.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// ModelParseError reports a config file whose YAML parsed but whose
// contents do not form a valid grade structure or command list. Fatal at
// startup; main exits 1.
type ModelParseError struct {
	Section string // "grades", "commands", or "settings"
	Msg     string
}

func (e *ModelParseError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Section, e.Msg)
}
