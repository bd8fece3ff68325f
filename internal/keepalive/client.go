// Package keepalive renews the server session with a plain GET and reports failures as
// typed errors the watchdog collapses into its logout path.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	logFieldTarget = "target"
	logFieldError  = "error"
	logFieldStatus = "status_code"
)

const (
	spanPing  = "keepalive.ping"
	spanVisit = "keepalive.visit"

	// maxDrainBytes caps how much of a response body is read for connection reuse.
	maxDrainBytes = 64 << 10
)

// Option customizes Client construction.
type Option func(*Client)

// WithTracer configures the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(client *Client) {
		if tracer != nil {
			client.tracer = tracer
		}
	}
}

// WithTransport swaps the HTTP round tripper.
func WithTransport(transport http.RoundTripper) Option {
	return func(client *Client) {
		if transport != nil {
			client.httpClient.Transport = transport
		}
	}
}

// Client issues session requests against one origin. Cookies set by the server are
// kept in a jar and replayed, the way a browser tab would.
type Client struct {
	base       *url.URL
	cookie     string
	httpClient *http.Client
	logger     *log.Logger
	tracer     trace.Tracer
}

// NewClient creates a session client.
//
// Possible errors:
//   - ErrEmptyBaseURL if cfg.BaseURL is blank
//   - ErrInvalidBaseURL if cfg.BaseURL is not an absolute http or https url
//   - ErrInvalidTimeout if cfg.Timeout is zero or negative
//   - ErrNilLogger if logger is nil
func NewClient(cfg Config, logger *log.Logger, options ...Option) (*Client, error) {
	base, err := validateConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := &Client{
		base:   base,
		cookie: strings.TrimSpace(cfg.Cookie),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		logger: logger,
		tracer: otel.Tracer("ssw/keepalive"),
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

func validateConfig(cfg Config, logger *log.Logger) (*url.URL, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, ErrEmptyBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	scheme := strings.ToLower(base.Scheme)
	if (scheme != "http" && scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidBaseURL, raw)
	}
	if cfg.Timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return base, nil
}

// Resolve turns target into an absolute URL. Relative targets resolve against the base
// url the same way a browser resolves them against the page.
func (c *Client) Resolve(target string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidTarget, target, err)
	}
	resolved := c.base.ResolveReference(ref)
	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidTarget, target)
	}
	return resolved.String(), nil
}

// Ping sends one keep-alive GET to target. A 2xx answer renews the session; anything
// else is ErrKeepAliveRejected, and a transport failure is ErrNetworkError. There is
// no retry.
func (c *Client) Ping(ctx context.Context, target string) error {
	return c.get(ctx, spanPing, target)
}

// Visit requests target and discards the answer. The navigator uses it to hit the
// logout endpoint.
func (c *Client) Visit(ctx context.Context, target string) error {
	return c.get(ctx, spanVisit, target)
}

func (c *Client) get(ctx context.Context, spanName, target string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	ctx, span := c.tracer.Start(ctx, spanName)
	defer func() {
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(started).Milliseconds()))
		span.End()
	}()

	endpoint, err := c.Resolve(target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("http.url", endpoint))
	c.logger.Debug("sending session request", logFieldTarget, endpoint, "span", spanName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		err = fmt.Errorf("%w: create request for %s: %w", ErrNetworkError, endpoint, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("session request failed with network error",
			logFieldTarget, endpoint,
			logFieldError, err,
		)
		err = fmt.Errorf("%w: %s: %w", ErrNetworkError, endpoint, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("session request rejected",
			logFieldTarget, endpoint,
			logFieldStatus, resp.StatusCode,
		)
		err = fmt.Errorf("%w: %d", ErrKeepAliveRejected, resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.logger.Info("session request succeeded",
		logFieldTarget, endpoint,
		logFieldStatus, resp.StatusCode,
	)
	span.SetStatus(codes.Ok, "session request succeeded")
	return nil
}
