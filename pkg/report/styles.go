// Package report renders run results, plans, doctor checks and recorded
// state for the terminal.
package report

import "github.com/charmbracelet/lipgloss"

// Styles for terminal output
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	CommandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)
)

// Status symbols
const (
	symbolOK      = "✓"
	symbolFailed  = "✗"
	symbolWarning = "⚠"
	symbolPending = "•"
	symbolSkipped = "-"
)
