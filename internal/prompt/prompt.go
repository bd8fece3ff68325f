// Package prompt defines the interactive surface that warns the user before the
// session lapses and offers the two ways out: stay logged in or log out.
package prompt

import (
	"sync"

	"github.com/session-sentry/ssw/internal/config"
)

// Prompt is everything a surface needs to render one warning.
type Prompt struct {
	Title          string
	Message        string
	Question       string
	Countdown      int
	KeepAliveLabel string
	LogoutLabel    string
	Modal          bool
	Width          int

	// MessageFor renders the message for a live countdown value.
	MessageFor func(seconds int) string
}

// MessageAt returns the message for remaining seconds, falling back to Message.
func (p Prompt) MessageAt(remaining int) string {
	if p.MessageFor == nil {
		return p.Message
	}
	return p.MessageFor(remaining)
}

// Actions are the callbacks wired to the two buttons. Surfaces invoke them from their
// own goroutine; the watchdog re-posts them onto its scheduler.
type Actions struct {
	KeepAlive func()
	Logout    func()
}

// Surface renders the prompt. Show on a visible surface only refreshes its content.
// Hide keeps the surface around so the next Show reuses it.
type Surface interface {
	Show(p Prompt, actions Actions)
	UpdateCountdown(remaining int)
	Hide()
}

// Factory creates the surface for one page. It is called at most once per watchdog.
type Factory func(pageID string) Surface

// FromOptions builds the prompt shown when the warning opens.
func FromOptions(opts config.Options) Prompt {
	return Prompt{
		Title:          opts.Title,
		Message:        opts.RenderMessage(opts.Countdown),
		Question:       opts.Question,
		Countdown:      opts.Countdown,
		KeepAliveLabel: opts.KeepAliveButton,
		LogoutLabel:    opts.LogoutButton,
		Modal:          opts.Modal,
		Width:          opts.Width,
		MessageFor:     opts.RenderMessage,
	}
}

// Call is one recorded surface interaction.
type Call struct {
	Method    string
	Prompt    Prompt
	Remaining int
}

// Recording is an in-memory Surface. It keeps every call and the most recent actions so
// callers can press the buttons programmatically.
type Recording struct {
	mu      sync.Mutex
	calls   []Call
	actions Actions
	visible bool
}

// Show records the call and marks the surface visible.
func (r *Recording) Show(p Prompt, actions Actions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: "Show", Prompt: p, Remaining: p.Countdown})
	r.actions = actions
	r.visible = true
}

// UpdateCountdown records the displayed value.
func (r *Recording) UpdateCountdown(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: "UpdateCountdown", Remaining: remaining})
}

// Hide records the call and marks the surface hidden.
func (r *Recording) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: "Hide"})
	r.visible = false
}

// Visible reports whether the last Show has not been followed by Hide.
func (r *Recording) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// Calls returns a copy of every recorded call.
func (r *Recording) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Displayed returns the countdown values shown so far: the initial value of each Show
// followed by every update.
func (r *Recording) Displayed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []int{}
	for _, call := range r.calls {
		if call.Method == "Show" || call.Method == "UpdateCountdown" {
			out = append(out, call.Remaining)
		}
	}
	return out
}

// PressKeepAlive invokes the keep-alive action of the last Show.
func (r *Recording) PressKeepAlive() {
	r.mu.Lock()
	fn := r.actions.KeepAlive
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PressLogout invokes the logout action of the last Show.
func (r *Recording) PressLogout() {
	r.mu.Lock()
	fn := r.actions.Logout
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}
