package components

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/session-sentry/ssw/internal/events"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(value string) string {
	return ansiPattern.ReplaceAllString(value, "")
}

func TestBuildEventLogViewportScrollsToNewestAndCapsEntries(t *testing.T) {
	t.Parallel()

	entries := make([]events.Event, 0, 60)
	for i := 0; i < 60; i++ {
		entries = append(entries, events.Event{
			Type:      events.EventTypeCountdownTick,
			Severity:  events.SeverityInfo,
			Timestamp: time.Date(2026, 10, 18, 14, 0, i%60, 0, time.UTC),
			Message:   fmt.Sprintf("event-%02d", i),
		})
	}

	model := BuildEventLogViewport(EventLogConfig{Width: 100, Height: 4, Events: entries, MaxEntries: 50})
	rendered := stripANSI(model.View())

	if !strings.Contains(rendered, "event-59") {
		t.Fatalf("newest event missing from view\n%s", rendered)
	}
	if strings.Contains(rendered, "event-00") {
		t.Fatalf("oldest event should be trimmed\n%s", rendered)
	}
	if model.YOffset == 0 {
		t.Fatal("viewport should be scrolled to the bottom")
	}
}

func TestRenderEventLogEmptyPlaceholder(t *testing.T) {
	t.Parallel()

	rendered := stripANSI(RenderEventLog(EventLogConfig{Width: 60, Height: 3}))
	if !strings.Contains(rendered, "No session activity yet") {
		t.Fatalf("placeholder missing\n%s", rendered)
	}
}

func TestRenderEventRowShowsSeverityTypeAndMessage(t *testing.T) {
	t.Parallel()

	row := stripANSI(renderEventRow(events.Event{
		Type:     events.EventTypeLoggedOut,
		Severity: events.SeverityWarn,
		Message:  "countdown expired",
	}))
	for _, want := range []string{"[WARN ]", "--:--:--", events.EventTypeLoggedOut, "countdown expired"} {
		if !strings.Contains(row, want) {
			t.Fatalf("row missing %q: %s", want, row)
		}
	}
}

func TestRenderEventRowMarksKeepAlive(t *testing.T) {
	t.Parallel()

	row := stripANSI(renderEventRow(events.Event{
		Type:     events.EventTypeKeepAliveSent,
		Severity: events.SeverityInfo,
		Message:  "session renewed",
	}))
	if !strings.Contains(row, "✓ session renewed") {
		t.Fatalf("keep-alive row = %q", row)
	}
}

func TestTrimEvents(t *testing.T) {
	t.Parallel()

	entries := []events.Event{{Message: "a"}, {Message: "b"}, {Message: "c"}}
	got := TrimEvents(entries, 2)
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Fatalf("TrimEvents = %+v", got)
	}
	if len(TrimEvents(entries, 0)) != 3 {
		t.Fatal("zero limit should fall back to the default cap")
	}
}
