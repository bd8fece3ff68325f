package keepalive

import (
	"context"
	"time"
)

// DefaultTimeout is the request timeout used by NewConfig.
const DefaultTimeout = 10 * time.Second

// Pinger renews a server session by requesting target.
type Pinger interface {
	Ping(ctx context.Context, target string) error
}

// Config defines the session endpoint the client talks to.
type Config struct {
	// BaseURL is the origin relative targets such as "/keepalive" resolve against.
	BaseURL string
	// Timeout bounds every request; it is the only backstop for a hung endpoint.
	Timeout time.Duration
	// Cookie is sent verbatim as the Cookie header when non-empty.
	Cookie string
}

// NewConfig returns a Config with DefaultTimeout.
func NewConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: DefaultTimeout,
	}
}
