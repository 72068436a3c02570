// Package ui provides consistent styling and components for the wlbar CLI
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across the application
var (
	ColorPrimary   = lipgloss.Color("39")  // Bright blue
	ColorSecondary = lipgloss.Color("205") // Pink/magenta
	ColorSuccess   = lipgloss.Color("82")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorInfo      = lipgloss.Color("86")  // Cyan

	ColorText      = lipgloss.Color("252") // Light gray
	ColorSubtle    = lipgloss.Color("241") // Medium gray
	ColorMuted     = lipgloss.Color("238") // Dark gray
	ColorHighlight = lipgloss.Color("255") // White

	ColorFocused = ColorPrimary
	ColorUrgent  = ColorWarning
	ColorDormant = ColorMuted
)

// Base styles - building blocks for other styles
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorMuted).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	ControlKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	ControlDescStyle = lipgloss.NewStyle().
				Foreground(ColorText)

	// Live and dead backend indicators
	AliveIndicator = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Render("●")

	DeadIndicator = lipgloss.NewStyle().
			Foreground(ColorError).
			Render("○")
)

// Icons shared by the commands
var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconFocused = "◀"
	IconPinned  = "*"
)

// FormatControl renders a key binding hint
func FormatControl(key, desc string) string {
	return ControlKeyStyle.Render(key) + " - " + ControlDescStyle.Render(desc)
}

// FormatStatus prefixes status with the backend liveness indicator
func FormatStatus(alive bool, status string) string {
	indicator := DeadIndicator
	if alive {
		indicator = AliveIndicator
	}
	return indicator + " " + status
}

// FormatAppHeader renders the title line used by the listing commands
func FormatAppHeader(title, subtitle string) string {
	header := TitleStyle.Render(title)
	if subtitle != "" {
		header += " " + SubtleStyle.Render(subtitle)
	}
	return header
}

// FormatResult renders a one-line command outcome
func FormatResult(ok bool, message string) string {
	if ok {
		return SuccessStyle.Render(IconSuccess) + " " + message
	}
	return ErrorStyle.Render(IconError) + " " + message
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}
	return lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(strings.Repeat(char, width))
}
