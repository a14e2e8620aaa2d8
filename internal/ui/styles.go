package ui

import "github.com/charmbracelet/lipgloss"

// Color palette, carried over from the teacher's asitop-inspired lime
// green theme (internal/ui/styles.go) unchanged, since nothing in the
// spec calls for a different palette.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
	ColorCyan     = "51"
	ColorMagenta  = "201"
)

// Styles holds the lipgloss styles used by the browse/search/preview
// model, trimmed to what this TUI actually renders (no sparkline/speed
// metrics — those belonged to the teacher's indexing-progress view).
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Border    lipgloss.Style
	Label     lipgloss.Style
	Selected  lipgloss.Style
	Project   lipgloss.Style
	Source    lipgloss.Style
	Highlight lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Selected:  lipgloss.NewStyle().Bold(true).Reverse(true).Foreground(lipgloss.Color(ColorLime)),
		Project:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
		Source:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMagenta)),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
	}
}

func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain,
		Dim: plain, Active: plain, Border: plain, Label: plain,
		Selected: lipgloss.NewStyle().Reverse(true),
		Project:  plain, Source: plain, Highlight: plain,
	}
}

func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
