// Package tui is the terminal host a watchdog lives in. It plays the part of the page:
// it renders the session dialog, shows what the watchdog is doing and quits when the
// watchdog navigates away.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/prompt"
	"github.com/session-sentry/ssw/internal/state"
	"github.com/session-sentry/ssw/internal/tui/components"
	"github.com/session-sentry/ssw/internal/tui/theme"
	"github.com/session-sentry/ssw/internal/watchdog"
	"golang.org/x/time/rate"
)

const (
	defaultWidth     = 100
	defaultHeight    = 30
	maxLoggedEvents  = 50
	statusRefresh    = time.Second
	eventLogReserved = 8
)

// StatusFunc reports the watchdog currently guarding the page, if any.
type StatusFunc func() (watchdog.Snapshot, bool)

// Config wires a Model to the rest of the process.
type Config struct {
	PageID string
	Status StatusFunc
	// OnActivity is called for key presses while no dialog is open, at most once per
	// ActivityInterval. Nil disables activity tracking.
	OnActivity       func()
	ActivityInterval time.Duration
	Keys             KeyMap
	Now              func() time.Time
}

type statusTickMsg time.Time

// Model is the root Bubble Tea model of the host.
type Model struct {
	cfg     Config
	keys    KeyMap
	help    help.Model
	limiter *rate.Limiter
	now     func() time.Time
	width   int
	height  int

	dialogOpen   bool
	prompt       prompt.Prompt
	actions      prompt.Actions
	remaining    int
	keepSelected bool
	answered     bool

	events     []events.Event
	left       bool
	leftTarget string
	quitting   bool
}

// NewModel builds the host model.
func NewModel(cfg Config) *Model {
	keys := cfg.Keys
	if len(keys.Quit.Keys()) == 0 {
		keys = DefaultKeyMap()
	}
	interval := cfg.ActivityInterval
	if interval <= 0 {
		interval = time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Model{
		cfg:     cfg,
		keys:    keys,
		help:    help.New(),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     now,
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return scheduleStatusTick()
}

func scheduleStatusTick() tea.Cmd {
	return tea.Tick(statusRefresh, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Update satisfies tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.help.Width = typed.Width
		return m, nil
	case PromptShownMsg:
		if !m.dialogOpen {
			m.keepSelected = true
		}
		m.dialogOpen = true
		m.answered = false
		m.prompt = typed.Prompt
		m.actions = typed.Actions
		m.remaining = typed.Prompt.Countdown
		return m, nil
	case CountdownMsg:
		m.remaining = typed.Remaining
		return m, nil
	case PromptHiddenMsg:
		m.dialogOpen = false
		return m, nil
	case EventMsg:
		m.events = components.TrimEvents(append(m.events, typed.Event), maxLoggedEvents)
		return m, nil
	case LeaveMsg:
		m.left = true
		m.leftTarget = typed.Target
		m.dialogOpen = false
		return m, tea.Quit
	case statusTickMsg:
		return m, scheduleStatusTick()
	case tea.KeyMsg:
		return m.handleKey(typed)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.dialogOpen && !m.answered {
		switch {
		case key.Matches(msg, m.keys.KeepAlive):
			m.choose(true)
		case key.Matches(msg, m.keys.Logout):
			m.choose(false)
		case key.Matches(msg, m.keys.SelectKeepAlive):
			m.keepSelected = true
		case key.Matches(msg, m.keys.SelectLogout):
			m.keepSelected = false
		case key.Matches(msg, m.keys.Toggle):
			m.keepSelected = !m.keepSelected
		case key.Matches(msg, m.keys.Submit):
			m.choose(m.keepSelected)
		default:
			if m.prompt.Modal {
				return m, nil
			}
			return m.handleHostKey(msg)
		}
		return m, nil
	}
	if m.dialogOpen && m.prompt.Modal {
		return m, nil
	}
	return m.handleHostKey(msg)
}

func (m *Model) handleHostKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if !m.dialogOpen {
		m.recordActivity()
	}
	return m, nil
}

// choose presses one of the dialog buttons. The watchdog answers with hide or leave.
func (m *Model) choose(keepAlive bool) {
	m.answered = true
	action := m.actions.Logout
	if keepAlive {
		action = m.actions.KeepAlive
	}
	if action != nil {
		action()
	}
}

func (m *Model) recordActivity() {
	if m.cfg.OnActivity == nil {
		return
	}
	if m.limiter.AllowN(m.now(), 1) {
		m.cfg.OnActivity()
	}
}

// View satisfies tea.Model.
func (m *Model) View() string {
	width, height := m.dimensions()
	if m.left {
		return theme.ErrorStyle.Render(fmt.Sprintf("%s Session ended. Page replaced by %s", theme.IconTerminated, m.leftTarget)) + "\n"
	}

	if m.dialogOpen && m.prompt.Modal {
		return components.RenderSessionDialog(m.dialogConfig(width, height))
	}

	sections := []string{m.renderStatus()}
	if m.dialogOpen {
		sections = append(sections, components.RenderSessionDialog(m.dialogConfig(width, height)))
	}
	sections = append(sections,
		theme.PanelBorder.Render(components.RenderEventLog(components.EventLogConfig{
			Width:  max(24, width-2),
			Height: max(2, height-eventLogReserved),
			Events: m.events,
		})),
		m.renderHelp(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) dialogConfig(width int, height int) components.SessionDialogConfig {
	return components.SessionDialogConfig{
		Width:             width,
		Height:            height,
		DialogWidth:       m.prompt.Width,
		Title:             m.prompt.Title,
		Message:           m.prompt.MessageAt(m.remaining),
		Question:          m.prompt.Question,
		Remaining:         m.remaining,
		Countdown:         m.prompt.Countdown,
		KeepAliveLabel:    m.prompt.KeepAliveLabel,
		LogoutLabel:       m.prompt.LogoutLabel,
		Modal:             m.prompt.Modal,
		KeepAliveSelected: m.keepSelected,
		HelpLine:          m.help.ShortHelpView(dialogKeys{m.keys}.ShortHelp()),
	}
}

func (m *Model) renderStatus() string {
	parts := []string{theme.InfoStyle.Render("ssw"), theme.HintStyle.Render("page " + m.cfg.PageID)}

	snapshot, ok := watchdog.Snapshot{}, false
	if m.cfg.Status != nil {
		snapshot, ok = m.cfg.Status()
	}
	switch {
	case !ok:
		parts = append(parts, theme.HintStyle.Render("no watchdog"))
	case snapshot.State == state.Warning:
		parts = append(parts, components.RenderStateBadge(snapshot.State, components.WithBadgeBold(true))+
			theme.WarningStyle.Render(fmt.Sprintf("  logging out in %ds", m.remaining)))
	case snapshot.State == state.Idle && !snapshot.Deadline.IsZero():
		wait := snapshot.Deadline.Sub(m.now()).Round(time.Second)
		if wait < 0 {
			wait = 0
		}
		parts = append(parts, components.RenderStateBadge(snapshot.State)+theme.ActiveStyle.Render("  warning in "+wait.String()))
	default:
		parts = append(parts, components.RenderStateBadge(snapshot.State))
	}
	return strings.Join(parts, theme.HintStyle.Render(" · "))
}

func (m *Model) renderHelp() string {
	return m.help.View(hostKeys{m.keys})
}

func (m *Model) dimensions() (int, int) {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return width, height
}

// DialogOpen reports whether the session dialog is visible.
func (m *Model) DialogOpen() bool {
	return m.dialogOpen
}

// Remaining returns the countdown value on screen.
func (m *Model) Remaining() int {
	return m.remaining
}

// Left reports whether the page was replaced and where it went.
func (m *Model) Left() (bool, string) {
	return m.left, m.leftTarget
}

// Quitting reports whether the user asked to quit.
func (m *Model) Quitting() bool {
	return m.quitting
}

// Events returns the logged events, oldest first.
func (m *Model) Events() []events.Event {
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}
