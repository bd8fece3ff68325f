package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/session-sentry/ssw/internal/tui/theme"
)

const (
	sessionDialogDefaultWidth  = 120
	sessionDialogDefaultHeight = 30
	sessionDialogMinimumWidth  = 40

	// pixelsPerColumn converts the configured dialog width into terminal columns.
	pixelsPerColumn = 8
)

// SessionDialogConfig is the render payload for the session expiry dialog.
type SessionDialogConfig struct {
	// Width and Height are the terminal dimensions.
	Width  int
	Height int
	// DialogWidth is the configured dialog width in pixels.
	DialogWidth int

	Title          string
	Message        string
	Question       string
	Remaining      int
	Countdown      int
	KeepAliveLabel string
	LogoutLabel    string
	Modal          bool
	// KeepAliveSelected reports which button is highlighted.
	KeepAliveSelected bool
	HelpLine          string
}

// DialogColumns converts a pixel width into terminal columns, never narrower than the
// minimum dialog and never wider than the terminal.
func DialogColumns(pixels int, terminalWidth int) int {
	if terminalWidth <= 0 {
		terminalWidth = sessionDialogDefaultWidth
	}
	columns := pixels / pixelsPerColumn
	if columns < sessionDialogMinimumWidth {
		columns = sessionDialogMinimumWidth
	}
	if columns > terminalWidth {
		columns = terminalWidth
	}
	return columns
}

// RenderSessionDialog renders the dialog box. Modal dialogs are centered over a
// dimmed full-screen backdrop; non-modal ones are returned as a plain box.
func RenderSessionDialog(config SessionDialogConfig) string {
	width := config.Width
	if width <= 0 {
		width = sessionDialogDefaultWidth
	}
	height := config.Height
	if height <= 0 {
		height = sessionDialogDefaultHeight
	}

	dialogWidth := DialogColumns(config.DialogWidth, width)
	contentWidth := max(20, dialogWidth-6)

	keepLabel := strings.TrimSpace(config.KeepAliveLabel)
	if keepLabel == "" {
		keepLabel = "Stay"
	}
	logoutLabel := strings.TrimSpace(config.LogoutLabel)
	if logoutLabel == "" {
		logoutLabel = "Log out"
	}

	centered := lipgloss.NewStyle().Align(lipgloss.Center).Width(contentWidth)
	sections := []string{
		centered.Inherit(theme.WarningStyle).Render(theme.IconWarning + " " + strings.TrimSpace(config.Title)),
		centered.Foreground(theme.PaperColor).Render(strings.TrimSpace(config.Message)),
		renderCountdownBar(config.Remaining, config.Countdown, contentWidth),
	}
	if question := strings.TrimSpace(config.Question); question != "" {
		sections = append(sections, centered.Foreground(theme.MistColor).Render(question))
	}
	sections = append(sections, renderSessionButtons(config.KeepAliveSelected, keepLabel, logoutLabel))
	if hint := strings.TrimSpace(config.HelpLine); hint != "" {
		sections = append(sections, centered.Inherit(theme.HintStyle).Render(hint))
	}

	box := theme.DialogBorder.
		Padding(1, 2).
		Width(dialogWidth).
		Render(lipgloss.JoinVertical(lipgloss.Center, sections...))

	if !config.Modal {
		return box
	}
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars("┄"),
		lipgloss.WithWhitespaceForeground(theme.SlateColor),
	)
}

func renderCountdownBar(remaining int, countdown int, width int) string {
	fraction := 0.0
	if countdown > 0 && remaining > 0 {
		fraction = float64(remaining) / float64(countdown)
	}
	if fraction > 1 {
		fraction = 1
	}

	bar := progress.New(
		progress.WithWidth(max(10, width-8)),
		progress.WithoutPercentage(),
		progress.WithFillCharacters('█', '░'),
		progress.WithScaledGradient(theme.Expired, theme.Caution),
	).ViewAs(fraction)

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		bar,
		" ",
		theme.WarningStyle.Render(fmt.Sprintf("%3ds", max(0, remaining))),
	)
}

// renderSessionButtons renders the two choices through a huh confirm field so the
// dialog matches the rest of the form styling.
func renderSessionButtons(keepAliveSelected bool, keepLabel string, logoutLabel string) string {
	value := keepAliveSelected
	field := huh.NewConfirm().
		Affirmative(keepLabel).
		Negative(logoutLabel).
		Value(&value)
	_ = field.Init()
	if view := strings.TrimSpace(field.View()); view != "" {
		return view
	}
	return renderFallbackButtons(keepAliveSelected, keepLabel, logoutLabel)
}

func renderFallbackButtons(keepAliveSelected bool, keepLabel string, logoutLabel string) string {
	idle := lipgloss.NewStyle().
		Foreground(theme.MistColor).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.SlateColor).
		Padding(0, 1)
	keep, logout := idle, idle
	if keepAliveSelected {
		keep = lipgloss.NewStyle().Background(theme.AmberColor).Foreground(theme.InkColor).Bold(true).Padding(0, 1)
	} else {
		logout = lipgloss.NewStyle().Background(theme.ExpiredColor).Foreground(theme.InkColor).Bold(true).Padding(0, 1)
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, keep.Render(keepLabel), "  ", logout.Render(logoutLabel))
}
