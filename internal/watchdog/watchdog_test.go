package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/session-sentry/ssw/internal/config"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/navigation"
	"github.com/session-sentry/ssw/internal/prompt"
	"github.com/session-sentry/ssw/internal/scheduler"
	"github.com/session-sentry/ssw/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	mu      sync.Mutex
	targets []string
	err     error
}

func (f *fakePinger) Ping(_ context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	return f.err
}

func (f *fakePinger) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.targets))
	copy(out, f.targets)
	return out
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeBus) Subscribe(string, events.Handler) func() { return func() {} }
func (f *fakeBus) SubscribeAll(events.Handler) func()      { return func() {} }

func (f *fakeBus) Publish(event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBus) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.Type)
	}
	return out
}

type harness struct {
	sched     *scheduler.Manual
	navigator *navigation.Recorder
	surface   *prompt.Recording
	surfaces  int
	pinger    *fakePinger
	bus       *fakeBus
	registry  *Registry
	page      Page
}

func newHarness(t *testing.T, options ...Option) *harness {
	t.Helper()

	h := &harness{
		sched:     scheduler.NewManual(),
		navigator: &navigation.Recorder{},
		surface:   &prompt.Recording{},
		pinger:    &fakePinger{},
		bus:       &fakeBus{},
	}
	options = append([]Option{
		WithBus(h.bus),
		WithAsync(func(fn func()) { fn() }),
	}, options...)
	h.registry = NewRegistry(h.pinger, options...)
	h.page = Page{
		ID:        "page-1",
		Scheduler: h.sched,
		Navigator: h.navigator,
		Surfaces: func(string) prompt.Surface {
			h.surfaces++
			return h.surface
		},
	}
	return h
}

func (h *harness) configure(t *testing.T, overrides config.Overrides) *Watchdog {
	t.Helper()
	w, err := h.registry.Configure(context.Background(), h.page, overrides)
	require.NoError(t, err)
	return w
}

func shortSession() config.Overrides {
	return config.Overrides{Countdown: config.Int(5), Timeout: config.Int(20)}
}

func countCalls(calls []prompt.Call, method string) int {
	n := 0
	for _, call := range calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

func TestPromptAppearsAfterTimeoutMinusCountdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.configure(t, shortSession())

	h.sched.Advance(14 * time.Second)
	assert.Equal(t, 0, countCalls(h.surface.Calls(), "Show"))
	assert.Equal(t, state.Idle, w.Snapshot().State)

	h.sched.Advance(time.Second)
	calls := h.surface.Calls()
	require.Equal(t, 1, countCalls(calls, "Show"))
	assert.Equal(t, 5, calls[0].Prompt.Countdown)
	assert.Equal(t, "You will be logged out in 5 seconds.", calls[0].Prompt.Message)
	assert.Equal(t, state.Warning, w.Snapshot().State)
	assert.Equal(t, 5, w.Snapshot().Remaining)
}

func TestCountdownShowsEveryValueThenLogsOutOneTickAfterZero(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.configure(t, shortSession())

	for second := 1; second <= 20; second++ {
		h.sched.Advance(time.Second)
		assert.LessOrEqual(t, h.sched.Pending(), 1, "at t=%ds", second)
	}
	assert.Equal(t, []int{5, 4, 3, 2, 1, 0}, h.surface.Displayed())
	assert.Empty(t, h.navigator.Targets())

	h.sched.Advance(time.Second)
	assert.Equal(t, []string{"/logout"}, h.navigator.Targets())
	assert.Equal(t, state.Terminated, w.Snapshot().State)
	assert.Equal(t, 0, h.sched.Pending())
	assert.Empty(t, h.pinger.calls())

	h.sched.Advance(time.Minute)
	assert.Len(t, h.navigator.Targets(), 1)
}

func TestRepeatedConfigureYieldsSinglePromptAfterLastReset(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := h.configure(t, shortSession())
	h.sched.Advance(5 * time.Second)
	second := h.configure(t, shortSession())
	h.sched.Advance(5 * time.Second)
	third := h.configure(t, shortSession())

	assert.Same(t, first, second)
	assert.Same(t, first, third)
	assert.Equal(t, 1, h.registry.Len())
	assert.Equal(t, 1, h.sched.Pending())

	// Last reset at t=10s, so the prompt opens at t=25s.
	h.sched.Advance(14 * time.Second)
	assert.Equal(t, 0, countCalls(h.surface.Calls(), "Show"))
	h.sched.Advance(time.Second)
	assert.Equal(t, 1, countCalls(h.surface.Calls(), "Show"))
}

func TestKeepAliveHidesPromptPingsAndRestartsTimer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.configure(t, shortSession())

	h.sched.Advance(17 * time.Second)
	require.True(t, h.surface.Visible())
	assert.Equal(t, []int{5, 4, 3}, h.surface.Displayed())

	h.surface.PressKeepAlive()
	assert.False(t, h.surface.Visible())
	assert.Equal(t, []string{"/keepalive"}, h.pinger.calls())
	assert.Equal(t, state.Idle, w.Snapshot().State)
	assert.Equal(t, 5, w.Snapshot().Remaining)
	assert.Equal(t, 1, h.sched.Pending())

	// Prompt reopens 15s after the keep-alive at t=17s.
	h.sched.Advance(14 * time.Second)
	assert.False(t, h.surface.Visible())
	h.sched.Advance(time.Second)
	assert.True(t, h.surface.Visible())
	assert.Equal(t, 2, countCalls(h.surface.Calls(), "Show"))
	assert.Equal(t, 1, h.surfaces)
	assert.Empty(t, h.navigator.Targets())
}

func TestKeepAliveFailureLogsOut(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.pinger.err = errors.New("keep-alive rejected: 401")
	w := h.configure(t, shortSession())

	h.sched.Advance(15 * time.Second)
	h.surface.PressKeepAlive()

	assert.Equal(t, []string{"/logout"}, h.navigator.Targets())
	assert.Equal(t, state.Terminated, w.Snapshot().State)
	assert.Equal(t, 0, h.sched.Pending())
	assert.Contains(t, h.bus.types(), events.EventTypeKeepAliveFailed)

	h.sched.Advance(time.Minute)
	assert.Equal(t, 1, countCalls(h.surface.Calls(), "Show"))
}

func TestLogoutChoiceNavigatesWithoutNetworkCall(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.configure(t, config.Overrides{
		Countdown: config.Int(5),
		Timeout:   config.Int(20),
		LogoutURL: config.String("/signout?reason=idle"),
	})

	h.sched.Advance(16 * time.Second)
	h.surface.PressLogout()
	h.surface.PressLogout()

	assert.Equal(t, []string{"/signout?reason=idle"}, h.navigator.Targets())
	assert.Empty(t, h.pinger.calls())
	assert.Equal(t, state.Terminated, w.Snapshot().State)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestLateKeepAliveFailureAfterLogoutIsIgnored(t *testing.T) {
	t.Parallel()

	var deferred []func()
	h := newHarness(t, WithAsync(func(fn func()) { deferred = append(deferred, fn) }))
	h.pinger.err = errors.New("connection reset")
	h.configure(t, shortSession())

	h.sched.Advance(15 * time.Second)
	h.surface.PressKeepAlive()
	require.Len(t, deferred, 1)

	h.sched.Advance(15 * time.Second)
	require.True(t, h.surface.Visible())
	h.surface.PressLogout()
	require.Equal(t, []string{"/logout"}, h.navigator.Targets())

	deferred[0]()
	assert.Equal(t, []string{"/logout"}, h.navigator.Targets())
	assert.NotContains(t, h.bus.types(), events.EventTypeKeepAliveFailed)
}

func TestConfigureDuringWarningHidesPromptAndRestarts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.configure(t, shortSession())
	h.sched.Advance(17 * time.Second)
	require.True(t, h.surface.Visible())

	h.configure(t, shortSession())
	assert.False(t, h.surface.Visible())
	assert.Equal(t, state.Idle, w.Snapshot().State)
	assert.Equal(t, 5, w.Snapshot().Remaining)
	assert.Equal(t, 1, h.sched.Pending())

	h.sched.Advance(10 * time.Second)
	assert.Empty(t, h.navigator.Targets())
	h.sched.Advance(5 * time.Second)
	assert.True(t, h.surface.Visible())
}

func TestPartialConfigureRevertsUnspecifiedOptionsToDefaults(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.configure(t, shortSession())
	h.configure(t, config.Overrides{Timeout: config.Int(120)})

	opts := w.Snapshot().Options
	assert.Equal(t, 60, opts.Countdown)
	assert.Equal(t, 120, opts.Timeout)

	h.sched.Advance(59 * time.Second)
	assert.False(t, h.surface.Visible())
	h.sched.Advance(time.Second)
	assert.True(t, h.surface.Visible())
}

func TestConfigureRejectsInvalidOptionsWithoutSideEffects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		overrides config.Overrides
	}{
		{name: "countdown exceeds timeout", overrides: config.Overrides{Countdown: config.Int(30), Timeout: config.Int(20)}},
		{name: "zero countdown", overrides: config.Overrides{Countdown: config.Int(0)}},
		{name: "blank logout url", overrides: config.Overrides{LogoutURL: config.String("  ")}},
		{name: "broken message", overrides: config.Overrides{Message: config.String("{{.Seconds")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			w, err := h.registry.Configure(context.Background(), h.page, tt.overrides)
			assert.ErrorIs(t, err, config.ErrInvalidOptions)
			assert.Nil(t, w)
			assert.Equal(t, 0, h.registry.Len())
			assert.Equal(t, 0, h.sched.Pending())
		})
	}
}

func TestConfigureRejectsIncompletePage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	pages := []Page{
		{Scheduler: h.sched, Navigator: h.navigator, Surfaces: h.page.Surfaces},
		{ID: "p", Navigator: h.navigator, Surfaces: h.page.Surfaces},
		{ID: "p", Scheduler: h.sched, Surfaces: h.page.Surfaces},
		{ID: "p", Scheduler: h.sched, Navigator: h.navigator},
	}
	for _, page := range pages {
		_, err := h.registry.Configure(context.Background(), page, config.Overrides{})
		assert.ErrorIs(t, err, ErrInvalidPage)
	}
}

func TestTerminatedWatchdogIsReleasedAndPageCanStartOver(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := h.configure(t, shortSession())
	h.sched.Advance(21 * time.Second)
	require.Equal(t, state.Terminated, first.Snapshot().State)

	_, ok := h.registry.Lookup(h.page.ID)
	assert.False(t, ok)

	second := h.configure(t, shortSession())
	assert.NotSame(t, first, second)
	assert.Equal(t, state.Idle, second.Snapshot().State)
	assert.Equal(t, 1, h.sched.Pending())
}

func TestPagesAreIndependent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	other := &prompt.Recording{}
	otherNavigator := &navigation.Recorder{}
	otherPage := Page{
		ID:        "page-2",
		Scheduler: h.sched,
		Navigator: otherNavigator,
		Surfaces:  func(string) prompt.Surface { return other },
	}

	h.configure(t, shortSession())
	_, err := h.registry.Configure(context.Background(), otherPage, config.Overrides{
		Countdown: config.Int(5),
		Timeout:   config.Int(60),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.registry.Len())

	h.sched.Advance(21 * time.Second)
	assert.Equal(t, []string{"/logout"}, h.navigator.Targets())
	assert.Empty(t, otherNavigator.Targets())
	assert.False(t, other.Visible())
	assert.Equal(t, 1, h.registry.Len())
}

func TestLifecycleEventsArePublished(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.configure(t, config.Overrides{Countdown: config.Int(1), Timeout: config.Int(2)})
	h.sched.Advance(3 * time.Second)

	assert.Equal(t, []string{
		events.EventTypeWatchdogConfigured,
		events.EventTypeStateTransition,
		events.EventTypeWarningShown,
		events.EventTypeCountdownTick,
		events.EventTypeStateTransition,
		events.EventTypeLoggedOut,
	}, h.bus.types())
}

func TestReconfigureKeepsOriginalPageCapabilities(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := h.configure(t, shortSession())

	otherSched := scheduler.NewManual()
	otherNavigator := &navigation.Recorder{}
	otherSurface := &prompt.Recording{}
	replacement := Page{
		ID:        h.page.ID,
		Scheduler: otherSched,
		Navigator: otherNavigator,
		Surfaces:  func(string) prompt.Surface { return otherSurface },
	}
	second, err := h.registry.Configure(context.Background(), replacement, shortSession())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 0, otherSched.Pending())

	h.sched.Advance(21 * time.Second)
	assert.Equal(t, []string{"/logout"}, h.navigator.Targets())
	assert.Empty(t, otherNavigator.Targets())
	assert.Empty(t, otherSurface.Calls())
	assert.Equal(t, 1, h.surfaces)
}

func TestConfiguredEventDescribesDelayAndCountdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.configure(t, shortSession())

	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	require.NotEmpty(t, h.bus.events)
	configured := h.bus.events[0]
	assert.Equal(t, events.EventTypeWatchdogConfigured, configured.Type)
	assert.Equal(t, "warning in 15s, countdown 5s", configured.Message)
}
