package watchdog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/session-sentry/ssw/internal/config"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/prompt"
	"github.com/session-sentry/ssw/internal/scheduler"
	"github.com/session-sentry/ssw/internal/state"
	"github.com/session-sentry/ssw/internal/telemetry/invariants"
)

const tickInterval = time.Second

// Snapshot is a point-in-time view of a watchdog, safe to read from any goroutine.
type Snapshot struct {
	PageID    string
	State     state.State
	Remaining int
	Options   config.Options
	// Deadline is when the pending pre-warning timer fires. Zero while warning.
	Deadline time.Time
}

// Watchdog drives one page through idle, warning and terminated.
type Watchdog struct {
	registry *Registry
	page     Page
	machine  *state.Machine
	logger   *log.Logger

	// Owned by the page scheduler.
	ctx         context.Context
	opts        config.Options
	started     bool
	surface     prompt.Surface
	visible     bool
	warningTask scheduler.Task
	tickTask    scheduler.Task
	remaining   int
	navigations int

	snapshot atomic.Pointer[Snapshot]
}

func newWatchdog(registry *Registry, page Page, opts config.Options) (*Watchdog, error) {
	w := &Watchdog{
		registry:  registry,
		page:      page,
		logger:    registry.logger.With("page_id", page.ID),
		ctx:       context.Background(),
		opts:      opts,
		remaining: opts.Countdown,
	}
	machine, err := state.NewMachine(page.ID,
		state.WithTracer(registry.tracer),
		state.WithRecorder(w),
	)
	if err != nil {
		return nil, fmt.Errorf("create lifecycle machine: %w", err)
	}
	w.machine = machine
	w.storeSnapshot(time.Time{})
	return w, nil
}

// PageID returns the identity of the page this watchdog guards.
func (w *Watchdog) PageID() string {
	return w.page.ID
}

// Snapshot returns the latest published view of the watchdog.
func (w *Watchdog) Snapshot() Snapshot {
	if current := w.snapshot.Load(); current != nil {
		return *current
	}
	return Snapshot{PageID: w.page.ID, State: state.Idle}
}

// RecordTransition forwards lifecycle transitions to the event bus.
func (w *Watchdog) RecordTransition(record state.TransitionRecord) {
	w.registry.publish(events.Event{
		Type:      events.EventTypeStateTransition,
		Timestamp: record.Timestamp,
		PageID:    record.PageID,
		Message:   fmt.Sprintf("%s -> %s (%s)", record.FromState, record.ToState, record.Reason),
		Payload:   record,
	})
}

// configure starts the watchdog or resets a running one with opts.
func (w *Watchdog) configure(ctx context.Context, opts config.Options) {
	if w.machine.Is(state.Terminated) {
		w.logger.Debug("configure ignored after logout")
		return
	}
	w.ctx = ctx
	w.opts = opts
	w.cancelTasks()
	if w.visible {
		w.surface.Hide()
		w.visible = false
	}
	w.resetDisplay()

	if w.started {
		if err := w.machine.Transition(ctx, state.Idle, "reconfigured"); err != nil {
			w.logger.Error("reset transition rejected", "error", err)
			return
		}
	}
	w.started = true

	w.startTimer()
	w.logger.Info("watchdog configured",
		"countdown", opts.CountdownDuration().String(),
		"timeout", opts.Timeout,
		"warning_in", opts.WarningDelay().String(),
	)
	w.registry.publish(events.Event{
		Type:    events.EventTypeWatchdogConfigured,
		PageID:  w.page.ID,
		Message: fmt.Sprintf("warning in %s, countdown %s", opts.WarningDelay(), opts.CountdownDuration()),
		Payload: opts,
	})
}

func (w *Watchdog) startTimer() {
	w.warningTask = w.page.Scheduler.After(w.opts.WarningDelay(), w.showWarning)
	invariants.CheckSingleScheduledTask(w.ctx, "watchdog.start_timer", w.warningTask != nil, w.tickTask != nil)
	w.storeSnapshot(time.Now().Add(w.opts.WarningDelay()))
}

func (w *Watchdog) showWarning() {
	w.warningTask = nil
	if !w.machine.Is(state.Idle) {
		return
	}
	if err := w.machine.Transition(w.ctx, state.Warning, "pre-warning timer fired"); err != nil {
		w.logger.Error("warning transition rejected", "error", err)
		return
	}

	if w.surface == nil {
		w.surface = w.page.Surfaces(w.page.ID)
	}
	w.remaining = w.opts.Countdown
	w.surface.Show(prompt.FromOptions(w.opts), prompt.Actions{
		KeepAlive: func() { w.page.Scheduler.Post(w.keepAlive) },
		Logout: func() {
			w.page.Scheduler.Post(func() { w.chooseLogout() })
		},
	})
	w.visible = true

	w.tickTask = w.page.Scheduler.Every(tickInterval, w.tick)
	invariants.CheckSingleScheduledTask(w.ctx, "watchdog.show_warning", w.warningTask != nil, w.tickTask != nil)
	w.storeSnapshot(time.Time{})

	w.logger.Info("session warning shown", "remaining", w.remaining)
	w.registry.publish(events.Event{
		Type:     events.EventTypeWarningShown,
		PageID:   w.page.ID,
		Message:  w.opts.Title,
		Payload:  w.remaining,
		Severity: events.SeverityWarn,
	})
}

// tick runs once per second while warning. The visible count goes countdown..0 and the
// tick after 0 logs out.
func (w *Watchdog) tick() {
	if !w.machine.Is(state.Warning) {
		scheduler.Cancel(w.tickTask)
		w.tickTask = nil
		return
	}

	w.remaining--
	if w.remaining < 0 {
		scheduler.Cancel(w.tickTask)
		w.tickTask = nil
		w.logout("countdown expired")
		return
	}

	w.surface.UpdateCountdown(w.remaining)
	w.storeSnapshot(time.Time{})
	w.registry.publish(events.Event{
		Type:    events.EventTypeCountdownTick,
		PageID:  w.page.ID,
		Message: w.opts.RenderMessage(w.remaining),
		Payload: w.remaining,
	})
}

func (w *Watchdog) keepAlive() {
	if !w.machine.Is(state.Warning) {
		w.logger.Debug("keep-alive ignored outside warning", "state", w.machine.Current())
		return
	}

	w.surface.Hide()
	w.visible = false
	scheduler.Cancel(w.tickTask)
	w.tickTask = nil

	if err := w.machine.Transition(w.ctx, state.Idle, "keep-alive chosen"); err != nil {
		w.logger.Error("keep-alive transition rejected", "error", err)
		return
	}
	w.resetDisplay()
	w.startTimer()

	target := w.opts.KeepAliveURL
	w.logger.Info("keep-alive requested", "target", target)
	w.registry.publish(events.Event{
		Type:    events.EventTypeKeepAliveSent,
		PageID:  w.page.ID,
		Message: target,
		Payload: target,
	})
	w.ping(target)
}

// ping issues the keep-alive request off the scheduler and reports a failure back onto it.
func (w *Watchdog) ping(target string) {
	if w.registry.pinger == nil {
		return
	}
	ctx := w.ctx
	pinger := w.registry.pinger
	w.registry.async(func() {
		err := pinger.Ping(ctx, target)
		if err == nil {
			return
		}
		w.page.Scheduler.Post(func() {
			w.keepAliveFailed(err)
		})
	})
}

func (w *Watchdog) keepAliveFailed(err error) {
	if w.machine.Is(state.Terminated) {
		w.logger.Debug("keep-alive failure after logout ignored", "error", err)
		return
	}
	w.logger.Warn("keep-alive failed", "error", err)
	w.registry.publish(events.Event{
		Type:     events.EventTypeKeepAliveFailed,
		PageID:   w.page.ID,
		Message:  err.Error(),
		Payload:  err,
		Severity: events.SeverityError,
	})
	w.logout("keep-alive failed")
}

func (w *Watchdog) chooseLogout() {
	if !w.machine.Is(state.Warning) {
		w.logger.Debug("logout choice ignored outside warning", "state", w.machine.Current())
		return
	}
	w.logout("logout chosen")
}

// logout cancels everything, terminates and leaves the page. It runs at most once.
func (w *Watchdog) logout(reason string) {
	if w.machine.Is(state.Terminated) {
		return
	}
	w.cancelTasks()
	if err := w.machine.Transition(w.ctx, state.Terminated, reason); err != nil {
		w.logger.Error("logout transition rejected", "error", err)
		return
	}
	w.storeSnapshot(time.Time{})
	w.registry.release(w)

	w.navigations++
	invariants.CheckSingleNavigation(w.ctx, "watchdog.logout", w.navigations)

	target := w.opts.LogoutURL
	w.logger.Info("logging out", "reason", reason, "target", target)
	w.registry.publish(events.Event{
		Type:     events.EventTypeLoggedOut,
		PageID:   w.page.ID,
		Message:  reason,
		Payload:  target,
		Severity: events.SeverityWarn,
	})
	if err := w.page.Navigator.Navigate(w.ctx, target); err != nil {
		w.logger.Error("logout navigation failed", "target", target, "error", err)
	}
}

func (w *Watchdog) cancelTasks() {
	scheduler.Cancel(w.warningTask)
	scheduler.Cancel(w.tickTask)
	w.warningTask = nil
	w.tickTask = nil
}

// resetDisplay puts the full countdown back on an existing surface.
func (w *Watchdog) resetDisplay() {
	w.remaining = w.opts.Countdown
	if w.surface != nil {
		w.surface.UpdateCountdown(w.remaining)
	}
}

func (w *Watchdog) storeSnapshot(deadline time.Time) {
	w.snapshot.Store(&Snapshot{
		PageID:    w.page.ID,
		State:     w.machine.Current(),
		Remaining: w.remaining,
		Options:   w.opts,
		Deadline:  deadline,
	})
}
