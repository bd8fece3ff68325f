package keepalive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestClient(t *testing.T, baseURL string, options ...Option) *Client {
	t.Helper()
	client, err := NewClient(NewConfig(baseURL), newTestLogger(), options...)
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		logger  *log.Logger
		wantErr error
	}{
		{name: "valid", cfg: NewConfig("https://app.example.com"), logger: newTestLogger()},
		{name: "empty base", cfg: Config{Timeout: time.Second}, logger: newTestLogger(), wantErr: ErrEmptyBaseURL},
		{name: "file scheme", cfg: NewConfig("file:///etc/passwd"), logger: newTestLogger(), wantErr: ErrInvalidBaseURL},
		{name: "relative base", cfg: NewConfig("/only/a/path"), logger: newTestLogger(), wantErr: ErrInvalidBaseURL},
		{name: "zero timeout", cfg: Config{BaseURL: "http://app.example.com"}, logger: newTestLogger(), wantErr: ErrInvalidTimeout},
		{name: "nil logger", cfg: NewConfig("http://app.example.com"), wantErr: ErrNilLogger},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.cfg, tt.logger)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, client)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, client)
		})
	}
}

func TestResolveTargets(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "https://app.example.com/portal/home")

	tests := []struct {
		target string
		want   string
	}{
		{target: "/keepalive", want: "https://app.example.com/keepalive"},
		{target: "keepalive", want: "https://app.example.com/portal/keepalive"},
		{target: "https://sso.example.com/logout?from=app", want: "https://sso.example.com/logout?from=app"},
		{target: "  /logout  ", want: "https://app.example.com/logout"},
	}
	for _, tt := range tests {
		got, err := client.Resolve(tt.target)
		require.NoError(t, err, tt.target)
		assert.Equal(t, tt.want, got, tt.target)
	}

	_, err := client.Resolve("ftp://files.example.com/x")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestPingSucceedsOn2xx(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/keepalive", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.Ping(context.Background(), "/keepalive"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestPingRejectedOnNon2xx(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusFound, http.StatusInternalServerError} {
		status := status
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if status == http.StatusFound {
					// A redirect to a failing login page must still count as a rejection.
					if r.URL.Path == "/login" {
						w.WriteHeader(http.StatusForbidden)
						return
					}
					http.Redirect(w, r, "/login", http.StatusFound)
					return
				}
				w.WriteHeader(status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			err := client.Ping(context.Background(), "/keepalive")
			assert.ErrorIs(t, err, ErrKeepAliveRejected)
			assert.False(t, errors.Is(err, ErrNetworkError))
		})
	}
}

func TestPingNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := newTestClient(t, baseURL)
	err := client.Ping(context.Background(), "/keepalive")
	assert.ErrorIs(t, err, ErrNetworkError)
}

func TestPingHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Ping(ctx, "/keepalive")
	assert.ErrorIs(t, err, ErrNetworkError)
}

func TestPingSendsConfiguredCookieAndReplaysJar(t *testing.T) {
	t.Parallel()

	cookies := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies <- r.Header.Get("Cookie")
		http.SetCookie(w, &http.Cookie{Name: "renewed", Value: "1", Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := NewConfig(server.URL)
	cfg.Cookie = "SESSION=abc"
	client, err := NewClient(cfg, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, client.Ping(context.Background(), "/keepalive"))
	require.NoError(t, client.Ping(context.Background(), "/keepalive"))

	first, second := <-cookies, <-cookies
	assert.Equal(t, "SESSION=abc", first)
	assert.Contains(t, second, "SESSION=abc")
	assert.Contains(t, second, "renewed=1")
}

func TestPingRecordsSpan(t *testing.T) {
	t.Parallel()

	spanRecorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown tracer provider: %v", err)
		}
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logout" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithTracer(provider.Tracer("keepalive-test")))
	require.Error(t, client.Ping(context.Background(), "/keepalive"))
	require.NoError(t, client.Visit(context.Background(), "/logout"))

	spans := spanRecorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spanPing, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spanVisit, spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)

	var status int64
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "http.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(http.StatusUnauthorized), status)
}
