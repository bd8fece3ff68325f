package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"text/template"
	"time"
)

const (
	defaultCountdown       = 60
	defaultTimeout         = 900
	defaultKeepAliveURL    = "/keepalive"
	defaultLogoutURL       = "/logout"
	defaultKeepAliveButton = "Yes, keep me logged in"
	defaultLogoutButton    = "No, log me out"
	defaultMessage         = "You will be logged out in {{.Seconds}} seconds."
	defaultQuestion        = "Do you want to stay logged in?"
	defaultTitle           = "Your session is about to expire!"
	defaultModal           = true
	defaultWidth           = 350

	// maxTimeoutSeconds is the largest timeout whose delay still fits in a time.Duration.
	maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)
)

// ErrInvalidOptions is the sentinel wrapped by every watchdog option validation failure.
var ErrInvalidOptions = errors.New("invalid watchdog options")

// Options is the resolved, immutable watchdog configuration.
type Options struct {
	Countdown       int    `yaml:"countdown"`
	Timeout         int    `yaml:"timeout"`
	KeepAliveURL    string `yaml:"keep_alive_url"`
	LogoutURL       string `yaml:"logout_url"`
	KeepAliveButton string `yaml:"keep_alive_button"`
	LogoutButton    string `yaml:"logout_button"`
	Message         string `yaml:"message"`
	Question        string `yaml:"question"`
	Title           string `yaml:"title"`
	Modal           bool   `yaml:"modal"`
	Width           int    `yaml:"width"`
}

// Overrides holds caller-supplied option values. Nil fields keep their defaults.
type Overrides struct {
	Countdown       *int    `toml:"countdown"`
	Timeout         *int    `toml:"timeout"`
	KeepAliveURL    *string `toml:"keep_alive_url"`
	LogoutURL       *string `toml:"logout_url"`
	KeepAliveButton *string `toml:"keep_alive_button"`
	LogoutButton    *string `toml:"logout_button"`
	Message         *string `toml:"message"`
	Question        *string `toml:"question"`
	Title           *string `toml:"title"`
	Modal           *bool   `toml:"modal"`
	Width           *int    `toml:"width"`
}

// ValidationError reports one rejected option.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidOptions, e.Field, e.Reason)
}

// Unwrap exposes ErrInvalidOptions to errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidOptions
}

// Defaults returns the stock watchdog options.
func Defaults() Options {
	return Options{
		Countdown:       defaultCountdown,
		Timeout:         defaultTimeout,
		KeepAliveURL:    defaultKeepAliveURL,
		LogoutURL:       defaultLogoutURL,
		KeepAliveButton: defaultKeepAliveButton,
		LogoutButton:    defaultLogoutButton,
		Message:         defaultMessage,
		Question:        defaultQuestion,
		Title:           defaultTitle,
		Modal:           defaultModal,
		Width:           defaultWidth,
	}
}

// Resolve merges overrides over a fresh set of defaults. Options left unset by the
// caller fall back to their defaults even if an earlier call changed them.
func Resolve(overrides Overrides) Options {
	return Defaults().Merge(overrides)
}

// Merge returns a copy of o with every non-nil override applied.
func (o Options) Merge(overrides Overrides) Options {
	if overrides.Countdown != nil {
		o.Countdown = *overrides.Countdown
	}
	if overrides.Timeout != nil {
		o.Timeout = *overrides.Timeout
	}
	if overrides.KeepAliveURL != nil {
		o.KeepAliveURL = strings.TrimSpace(*overrides.KeepAliveURL)
	}
	if overrides.LogoutURL != nil {
		o.LogoutURL = strings.TrimSpace(*overrides.LogoutURL)
	}
	if overrides.KeepAliveButton != nil {
		o.KeepAliveButton = *overrides.KeepAliveButton
	}
	if overrides.LogoutButton != nil {
		o.LogoutButton = *overrides.LogoutButton
	}
	if overrides.Message != nil {
		o.Message = *overrides.Message
	}
	if overrides.Question != nil {
		o.Question = *overrides.Question
	}
	if overrides.Title != nil {
		o.Title = *overrides.Title
	}
	if overrides.Modal != nil {
		o.Modal = *overrides.Modal
	}
	if overrides.Width != nil {
		o.Width = *overrides.Width
	}
	return o
}

// Overlay copies the non-nil fields of next over o.
func (o Overrides) Overlay(next Overrides) Overrides {
	if next.Countdown != nil {
		o.Countdown = next.Countdown
	}
	if next.Timeout != nil {
		o.Timeout = next.Timeout
	}
	if next.KeepAliveURL != nil {
		o.KeepAliveURL = next.KeepAliveURL
	}
	if next.LogoutURL != nil {
		o.LogoutURL = next.LogoutURL
	}
	if next.KeepAliveButton != nil {
		o.KeepAliveButton = next.KeepAliveButton
	}
	if next.LogoutButton != nil {
		o.LogoutButton = next.LogoutButton
	}
	if next.Message != nil {
		o.Message = next.Message
	}
	if next.Question != nil {
		o.Question = next.Question
	}
	if next.Title != nil {
		o.Title = next.Title
	}
	if next.Modal != nil {
		o.Modal = next.Modal
	}
	if next.Width != nil {
		o.Width = next.Width
	}
	return o
}

// Validate rejects options the watchdog cannot run with.
func (o Options) Validate() error {
	if o.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Reason: "must be > 0"}
	}
	if int64(o.Timeout) > maxTimeoutSeconds {
		return &ValidationError{
			Field:  "timeout",
			Reason: fmt.Sprintf("too large (%d > %d seconds)", o.Timeout, maxTimeoutSeconds),
		}
	}
	if o.Countdown <= 0 {
		return &ValidationError{Field: "countdown", Reason: "must be > 0"}
	}
	if o.Countdown > o.Timeout {
		return &ValidationError{
			Field:  "countdown",
			Reason: fmt.Sprintf("must not exceed timeout (%d > %d)", o.Countdown, o.Timeout),
		}
	}
	if strings.TrimSpace(o.KeepAliveURL) == "" {
		return &ValidationError{Field: "keep_alive_url", Reason: "must not be empty"}
	}
	if strings.TrimSpace(o.LogoutURL) == "" {
		return &ValidationError{Field: "logout_url", Reason: "must not be empty"}
	}
	if o.Width <= 0 {
		return &ValidationError{Field: "width", Reason: "must be > 0"}
	}
	tmpl, err := parseMessage(o.Message)
	if err != nil {
		return &ValidationError{Field: "message", Reason: err.Error()}
	}
	if err := tmpl.Execute(io.Discard, messageData{Seconds: o.Countdown}); err != nil {
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("render message template: %v", err)}
	}
	return nil
}

// WarningDelay is how long the watchdog stays idle before prompting.
func (o Options) WarningDelay() time.Duration {
	return time.Duration(o.Timeout-o.Countdown) * time.Second
}

// CountdownDuration is the length of the warning phase.
func (o Options) CountdownDuration() time.Duration {
	return time.Duration(o.Countdown) * time.Second
}

// RenderMessage substitutes the live counter into the message template.
// A template that fails to render falls back to the raw message text.
func (o Options) RenderMessage(seconds int) string {
	tmpl, err := parseMessage(o.Message)
	if err != nil {
		return o.Message
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, messageData{Seconds: seconds}); err != nil {
		return o.Message
	}
	return out.String()
}

type messageData struct {
	Seconds int
}

func parseMessage(message string) (*template.Template, error) {
	tmpl, err := template.New("message").Option("missingkey=error").Parse(message)
	if err != nil {
		return nil, fmt.Errorf("parse message template: %w", err)
	}
	return tmpl, nil
}

// Int returns a pointer to v for building Overrides.
func Int(v int) *int { return &v }

// String returns a pointer to v for building Overrides.
func String(v string) *string { return &v }

// Bool returns a pointer to v for building Overrides.
func Bool(v bool) *bool { return &v }
