// Package watchdog warns a user before their server session lapses and resolves the
// warning by renewing the session or logging out.
//
// Each page gets at most one Watchdog. All of a watchdog's work runs on its page's
// scheduler, so its fields are only ever touched from one logical thread.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/session-sentry/ssw/internal/config"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/keepalive"
	"github.com/session-sentry/ssw/internal/navigation"
	"github.com/session-sentry/ssw/internal/prompt"
	"github.com/session-sentry/ssw/internal/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidPage is returned when a page is missing an identity or a host capability.
var ErrInvalidPage = errors.New("invalid page")

// Page is the host a watchdog lives in: an identity plus the capabilities the
// watchdog needs from it.
type Page struct {
	ID        string
	Scheduler scheduler.Scheduler
	Navigator navigation.Navigator
	Surfaces  prompt.Factory
}

func (p Page) validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id must not be empty", ErrInvalidPage)
	case p.Scheduler == nil:
		return fmt.Errorf("%w: %s: scheduler is required", ErrInvalidPage, p.ID)
	case p.Navigator == nil:
		return fmt.Errorf("%w: %s: navigator is required", ErrInvalidPage, p.ID)
	case p.Surfaces == nil:
		return fmt.Errorf("%w: %s: surface factory is required", ErrInvalidPage, p.ID)
	}
	return nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by every watchdog in the registry.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBus publishes watchdog events to bus.
func WithBus(bus events.Bus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// WithTracer sets the tracer handed to each lifecycle machine.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithAsync replaces how keep-alive requests are started. The default runs each
// request on its own goroutine.
func WithAsync(async func(fn func())) Option {
	return func(r *Registry) {
		if async != nil {
			r.async = async
		}
	}
}

// Registry maps page identities to their watchdog. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	watchdogs map[string]*Watchdog

	pinger keepalive.Pinger
	logger *log.Logger
	bus    events.Bus
	tracer trace.Tracer
	async  func(fn func())
}

// NewRegistry creates an empty registry whose watchdogs renew sessions through pinger.
func NewRegistry(pinger keepalive.Pinger, options ...Option) *Registry {
	registry := &Registry{
		watchdogs: make(map[string]*Watchdog),
		pinger:    pinger,
		logger:    log.New(io.Discard),
		tracer:    otel.Tracer("ssw/watchdog"),
		async:     func(fn func()) { go fn() },
	}
	for _, option := range options {
		if option != nil {
			option(registry)
		}
	}
	return registry
}

// Configure merges overrides over the defaults, validates the result and then starts
// the page's watchdog, or resets it when one already exists. Invalid options are
// rejected before any state changes. The start or reset itself is posted to the page
// scheduler, so Configure never blocks on it.
//
// A page's capabilities are bound when its watchdog is created. Configuring an existing
// page ID only changes the options: the Scheduler, Navigator and Surfaces passed in later
// calls are ignored and the original ones stay in use until the watchdog terminates.
func (r *Registry) Configure(ctx context.Context, page Page, overrides config.Overrides) (*Watchdog, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := page.validate(); err != nil {
		return nil, err
	}
	opts := config.Resolve(overrides)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("configure watchdog for page %s: %w", page.ID, err)
	}

	r.mu.Lock()
	w, ok := r.watchdogs[page.ID]
	if !ok {
		created, err := newWatchdog(r, page, opts)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		w = created
		r.watchdogs[page.ID] = w
	}
	r.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	w.page.Scheduler.Post(func() {
		w.configure(runCtx, opts)
	})
	return w, nil
}

// Lookup returns the live watchdog for pageID.
func (r *Registry) Lookup(pageID string) (*Watchdog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.watchdogs[pageID]
	return w, ok
}

// Len reports how many pages have a live watchdog.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchdogs)
}

// release forgets w once its page is gone.
func (r *Registry) release(w *Watchdog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.watchdogs[w.page.ID]; ok && current == w {
		delete(r.watchdogs, w.page.ID)
	}
}

func (r *Registry) publish(event events.Event) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(event)
}
