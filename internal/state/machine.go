package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/session-sentry/ssw/internal/telemetry/invariants"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is one watchdog lifecycle state.
type State string

const (
	// Idle means the pre-warning timer is counting down and no prompt is visible.
	Idle State = "idle"
	// Warning means the prompt is visible and the countdown tick is running.
	Warning State = "warning"
	// Terminated means the logout path ran. It is final.
	Terminated State = "terminated"
)

var allowedTransitions = map[State]map[State]struct{}{
	Idle: {
		// configure while idle restarts the cycle
		Idle:       {},
		Warning:    {},
		Terminated: {},
	},
	Warning: {
		Idle:       {},
		Terminated: {},
	},
}

// Recorder receives every accepted transition.
type Recorder interface {
	RecordTransition(record TransitionRecord)
}

// Option configures Machine construction.
type Option func(*Machine)

// WithTracer configures the tracer used for state transition spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(machine *Machine) {
		if tracer == nil {
			return
		}
		machine.tracer = tracer
	}
}

// WithRecorder forwards accepted transitions to recorder.
func WithRecorder(recorder Recorder) Option {
	return func(machine *Machine) {
		machine.recorder = recorder
	}
}

// WithClock overrides the transition timestamp source.
func WithClock(now func() time.Time) Option {
	return func(machine *Machine) {
		if now != nil {
			machine.now = now
		}
	}
}

// TransitionRecord stores transition metadata for local history.
type TransitionRecord struct {
	PageID    string
	FromState State
	ToState   State
	Reason    string
	Timestamp time.Time
}

// IllegalTransitionError is returned for a disallowed transition.
type IllegalTransitionError struct {
	PageID    string
	FromState State
	ToState   State
	Reason    string
}

func (e *IllegalTransitionError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "illegal transition for watchdog lifecycle"
	}
	return fmt.Sprintf(
		"cannot transition watchdog %q from %q to %q: %s",
		e.PageID,
		e.FromState,
		e.ToState,
		reason,
	)
}

// Is enables errors.Is checks for illegal transition failures.
func (e *IllegalTransitionError) Is(target error) bool {
	_, ok := target.(*IllegalTransitionError)
	return ok
}

// Machine tracks the lifecycle state of one watchdog and rejects illegal moves.
// It is not safe for concurrent use; the owning watchdog serializes access.
type Machine struct {
	pageID   string
	current  State
	tracer   trace.Tracer
	recorder Recorder
	now      func() time.Time
	history  []TransitionRecord
}

// NewMachine builds a machine in the Idle state.
func NewMachine(pageID string, options ...Option) (*Machine, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, errors.New("page id must not be empty")
	}

	machine := &Machine{
		pageID:  pageID,
		current: Idle,
		tracer:  otel.Tracer("ssw/state"),
		now:     time.Now,
		history: []TransitionRecord{},
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(machine)
	}
	if machine.tracer == nil {
		machine.tracer = otel.Tracer("ssw/state")
	}

	return machine, nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	if m == nil {
		return ""
	}
	return m.current
}

// Is reports whether the machine is in state s.
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Transition validates and applies one state transition.
func (m *Machine) Transition(ctx context.Context, toState State, reason string) error {
	if m == nil {
		return errors.New("machine is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	normalizedReason := strings.TrimSpace(reason)
	fromState := m.current

	ctx, span := m.tracer.Start(ctx, "state.transition")
	defer func() {
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(started).Milliseconds()))
		span.End()
	}()

	span.SetAttributes(
		attribute.String("page_id", m.pageID),
		attribute.String("from_state", string(fromState)),
		attribute.String("to_state", string(toState)),
		attribute.String("reason", normalizedReason),
	)

	if !isAllowed(fromState, toState) {
		invariants.CheckStateTransitionLegal(
			ctx,
			"state.machine.transition",
			"watchdog",
			string(fromState),
			string(toState),
			false,
		)
		err := &IllegalTransitionError{
			PageID:    m.pageID,
			FromState: fromState,
			ToState:   toState,
			Reason:    "illegal transition for watchdog lifecycle",
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	record := TransitionRecord{
		PageID:    m.pageID,
		FromState: fromState,
		ToState:   toState,
		Reason:    normalizedReason,
		Timestamp: m.now().UTC(),
	}
	m.current = toState
	m.history = append(m.history, record)
	if m.recorder != nil {
		m.recorder.RecordTransition(record)
	}
	span.SetStatus(codes.Ok, "state transition applied")
	return nil
}

// History returns transition records captured by this machine.
func (m *Machine) History() []TransitionRecord {
	if m == nil {
		return nil
	}
	out := make([]TransitionRecord, len(m.history))
	copy(out, m.history)
	return out
}

func isAllowed(fromState, toState State) bool {
	nextStates, ok := allowedTransitions[fromState]
	if !ok {
		return false
	}
	_, ok = nextStates[toState]
	return ok
}
