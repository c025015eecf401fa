// Package theme holds the lipgloss styles used by the speakbot CLI.
package theme

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Vivid Purple
	Accent  = lipgloss.Color("#F97316") // Orange
	Success = lipgloss.Color("#22C55E") // Green
	Error   = lipgloss.Color("#F43F5E") // Rose
	TextDim = lipgloss.Color("#94A3B8") // Slate
	Border  = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// States
var (
	Granted = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Denied = lipgloss.NewStyle().
		Foreground(Error)
)

// Separator renders a horizontal rule of width cells.
func Separator(width int) string {
	if width <= 0 {
		return ""
	}
	return Rule.Render(strings.Repeat("\u2500", width))
}

// Mark renders a success or failure tick.
func Mark(ok bool) string {
	if ok {
		return Granted.Render("✓")
	}
	return Denied.Render("✗")
}
