package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/prompt"
)

// PromptShownMsg opens the session dialog.
type PromptShownMsg struct {
	Prompt  prompt.Prompt
	Actions prompt.Actions
}

// CountdownMsg updates the visible countdown.
type CountdownMsg struct {
	Remaining int
}

// PromptHiddenMsg closes the session dialog.
type PromptHiddenMsg struct{}

// EventMsg appends one bus event to the log.
type EventMsg struct {
	Event events.Event
}

// LeaveMsg tells the host its page was replaced by target.
type LeaveMsg struct {
	Target string
}

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Surface renders the watchdog prompt inside the Bubble Tea host.
type Surface struct {
	sender Sender
}

var _ prompt.Surface = (*Surface)(nil)

// NewSurface returns a surface that forwards to sender.
func NewSurface(sender Sender) *Surface {
	return &Surface{sender: sender}
}

// Show opens or refreshes the dialog.
func (s *Surface) Show(p prompt.Prompt, actions prompt.Actions) {
	s.sender.Send(PromptShownMsg{Prompt: p, Actions: actions})
}

// UpdateCountdown refreshes the counter.
func (s *Surface) UpdateCountdown(remaining int) {
	s.sender.Send(CountdownMsg{Remaining: remaining})
}

// Hide closes the dialog.
func (s *Surface) Hide() {
	s.sender.Send(PromptHiddenMsg{})
}

// Leave is a navigation.LeaveFunc that ends the host program.
func Leave(sender Sender) func(target string) {
	return func(target string) {
		sender.Send(LeaveMsg{Target: target})
	}
}

// Forward is an events.Handler that feeds the event log.
func Forward(sender Sender) events.Handler {
	return func(event events.Event) {
		sender.Send(EventMsg{Event: event})
	}
}
