// Package navigation leaves the current page for another location with replace
// semantics: the page being left is not kept in any history.
package navigation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrAlreadyNavigated is returned when a navigator is asked to leave a page twice.
var ErrAlreadyNavigated = errors.New("navigator already left the page")

// Navigator replaces the current page with target.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Visitor requests a url on behalf of the page. *keepalive.Client satisfies it.
type Visitor interface {
	Visit(ctx context.Context, target string) error
}

// LeaveFunc tears down the host once the page has been replaced.
type LeaveFunc func(target string)

// HTTPNavigator requests the target the way a browser would load it, then hands
// control to the host's leave hook. The request is best effort; leaving always happens.
type HTTPNavigator struct {
	visitor Visitor
	leave   LeaveFunc
	logger  *log.Logger

	once sync.Once
}

// NewHTTPNavigator creates a navigator. A nil visitor skips the request; a nil leave
// hook makes leaving a no-op.
func NewHTTPNavigator(visitor Visitor, leave LeaveFunc, logger *log.Logger) *HTTPNavigator {
	return &HTTPNavigator{
		visitor: visitor,
		leave:   leave,
		logger:  logger,
	}
}

// Navigate visits target and leaves the page. Only the first call does anything.
func (n *HTTPNavigator) Navigate(ctx context.Context, target string) error {
	if n == nil {
		return errors.New("navigator is nil")
	}
	target = strings.TrimSpace(target)

	navigated := false
	n.once.Do(func() {
		navigated = true
		if n.visitor != nil {
			if err := n.visitor.Visit(ctx, target); err != nil && n.logger != nil {
				n.logger.Warn("logout request failed; leaving anyway", "target", target, "error", err)
			}
		}
		if n.logger != nil {
			n.logger.Info("page replaced", "target", target)
		}
		if n.leave != nil {
			n.leave(target)
		}
	})
	if !navigated {
		return ErrAlreadyNavigated
	}
	return nil
}

// Recorder is an in-memory Navigator that only remembers where it was sent.
type Recorder struct {
	mu      sync.Mutex
	targets []string
}

// Navigate records target.
func (r *Recorder) Navigate(_ context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
	return nil
}

// Targets returns every recorded navigation in order.
func (r *Recorder) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.targets))
	copy(out, r.targets)
	return out
}
