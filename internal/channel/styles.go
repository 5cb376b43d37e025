package channel

import "github.com/charmbracelet/lipgloss"

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorWhite  = lipgloss.Color("255")
	colorBlack  = lipgloss.Color("0")
)

var partStyles = map[PartType]lipgloss.Style{
	PartPromptQuestion: lipgloss.NewStyle().Foreground(colorCyan),
	PartPromptAnswer:   lipgloss.NewStyle().Foreground(colorYellow),
	PartPrint:          lipgloss.NewStyle(),
	PartStatus:         lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
	PartError:          lipgloss.NewStyle().Bold(true).Foreground(colorRed),
	PartBright:         lipgloss.NewStyle().Bold(true).Foreground(colorWhite),
	PartBgHappy:        lipgloss.NewStyle().Foreground(colorBlack).Background(colorGreen),
	PartBgSad:          lipgloss.NewStyle().Foreground(colorWhite).Background(colorRed),
	PartBgMeh:          lipgloss.NewStyle().Foreground(colorBlack).Background(lipgloss.Color("250")),
	PartAccentHappy:    lipgloss.NewStyle().Bold(true).Foreground(colorBlack).Background(colorGreen),
	PartAccentSad:      lipgloss.NewStyle().Bold(true).Foreground(colorWhite).Background(colorRed),
	PartAccentMeh:      lipgloss.NewStyle().Bold(true).Foreground(colorBlack).Background(lipgloss.Color("250")),
}

// styleText applies the ANSI styling for a part type, or returns the text
// unchanged when color is disabled.
func styleText(t PartType, text string, useColor bool) string {
	if !useColor || text == "" {
		return text
	}
	style, ok := partStyles[t]
	if !ok {
		return text
	}
	return style.Render(text)
}
