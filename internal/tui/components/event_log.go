package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/tui/theme"
)

const (
	eventLogMinimumWidth      = 24
	eventLogMinimumLines      = 2
	eventLogDefaultMaxEntries = 50
)

// EventLogConfig contains render-time settings for the event log panel.
type EventLogConfig struct {
	Width      int
	Height     int
	Events     []events.Event
	MaxEntries int
}

// TrimEvents keeps the newest limit entries.
func TrimEvents(entries []events.Event, limit int) []events.Event {
	if limit <= 0 {
		limit = eventLogDefaultMaxEntries
	}
	if len(entries) <= limit {
		return entries
	}
	return append([]events.Event(nil), entries[len(entries)-limit:]...)
}

// BuildEventLogViewport constructs a viewport scrolled to the newest event.
func BuildEventLogViewport(config EventLogConfig) viewport.Model {
	width := max(eventLogMinimumWidth, config.Width)
	height := max(eventLogMinimumLines, config.Height)

	entries := TrimEvents(config.Events, config.MaxEntries)
	lines := make([]string, 0, len(entries))
	for _, event := range entries {
		lines = append(lines, renderEventRow(event))
	}
	if len(lines) == 0 {
		lines = []string{theme.HintStyle.Render("No session activity yet")}
	}

	model := viewport.New(width, height)
	model.SetContent(strings.Join(lines, "\n"))
	model.GotoBottom()
	return model
}

// RenderEventLog renders the event log panel.
func RenderEventLog(config EventLogConfig) string {
	return BuildEventLogViewport(config).View()
}

func renderEventRow(event events.Event) string {
	timestamp := "--:--:--"
	if !event.Timestamp.IsZero() {
		timestamp = event.Timestamp.In(time.Local).Format("15:04:05")
	}
	message := strings.TrimSpace(event.Message)
	if message == "" {
		message = "-"
	}
	if event.Type == events.EventTypeKeepAliveSent {
		message = theme.IconRenewed + " " + message
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		severityStyle(event).Render(fmt.Sprintf("[%-5s]", strings.ToUpper(strings.TrimSpace(event.Severity)))),
		" ",
		lipgloss.NewStyle().Foreground(theme.MistColor).Render(timestamp),
		" ",
		lipgloss.NewStyle().Foreground(theme.PaperColor).Bold(true).Render(event.Type),
		" ",
		lipgloss.NewStyle().Foreground(theme.PaperColor).Render(message),
	)
}

func severityStyle(event events.Event) lipgloss.Style {
	if event.Type == events.EventTypeKeepAliveSent {
		return theme.SuccessStyle
	}
	switch strings.ToUpper(strings.TrimSpace(event.Severity)) {
	case events.SeverityWarn:
		return theme.WarningStyle
	case events.SeverityError:
		return theme.ErrorStyle
	default:
		return theme.InfoStyle
	}
}
