package tui

import "github.com/charmbracelet/lipgloss"

// Color palette - keeping it minimal and accessible.
var (
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("245") // Gray
	ColorSuccess   = lipgloss.Color("34")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().Padding(0, 1)

	NumberStyle = CellStyle.Align(lipgloss.Right)

	BorderStyle = lipgloss.NewStyle().Foreground(ColorSecondary)

	SuccessStyle = CellStyle.Foreground(ColorSuccess)
	ErrorStyle   = CellStyle.Foreground(ColorError)
	WarningStyle = CellStyle.Foreground(ColorWarning)
)

// Status words shown in the last column of a summary.
const (
	StatusLoaded  = "loaded"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)
