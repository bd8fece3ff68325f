package keepalive

import "errors"

var (
	// ErrEmptyBaseURL is returned when the base URL is empty during client construction.
	ErrEmptyBaseURL = errors.New("base url cannot be empty")

	// ErrInvalidBaseURL is returned when the base URL cannot be parsed or is not http(s).
	ErrInvalidBaseURL = errors.New("base url must be an absolute http or https url")

	// ErrInvalidTimeout is returned when the request timeout is zero or negative.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrNilLogger is returned when the logger is nil during client construction.
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrInvalidTarget is returned when a request target cannot be resolved against the base url.
	ErrInvalidTarget = errors.New("invalid request target")

	// ErrNetworkError is returned when the request fails before a response arrives.
	ErrNetworkError = errors.New("network error: failed to reach session endpoint")

	// ErrKeepAliveRejected is returned when the endpoint answers with a non-2xx status.
	ErrKeepAliveRejected = errors.New("keep-alive rejected: endpoint returned an error")
)
