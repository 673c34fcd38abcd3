package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
)

func TestStatsCountsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Total Events: 4") {
		t.Errorf("wrong total:\n%s", out)
	}
	if !strings.Contains(out, "STEP:") || !strings.Contains(out, "HTTP:") {
		t.Errorf("missing category breakdown:\n%s", out)
	}
	if !strings.Contains(out, "Panel REST Calls: 1 (0 failed)") {
		t.Errorf("missing REST call summary:\n%s", out)
	}
	if !strings.Contains(out, "Flows: 1") {
		t.Errorf("missing flow count:\n%s", out)
	}
	if !strings.Contains(out, "[7d8f1a2b]") {
		t.Errorf("missing flow listing:\n%s", out)
	}
	if !strings.Contains(out, "aborted (cannot_connect)") {
		t.Errorf("missing flow outcome:\n%s", out)
	}
	if !strings.Contains(out, "Host: 10.0.0.5") {
		t.Errorf("missing flow host:\n%s", out)
	}
}

func TestStatsCountsFailures(t *testing.T) {
	ts := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts,
			Category:  log.CategoryHTTP,
			HTTPCall:  &log.HTTPCallEvent{Method: "POST", Path: "/api/v1/auth/register", StatusCode: 403},
		},
		{
			Timestamp: ts.Add(time.Second),
			Category:  log.CategoryHTTP,
			HTTPCall:  &log.HTTPCallEvent{Method: "GET", Path: "/api/v1/status", Error: "connection refused"},
		},
		{
			Timestamp: ts.Add(2 * time.Second),
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Message: "probe failed", Context: "user step"},
		},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Panel REST Calls: 2 (2 failed)") {
		t.Errorf("missing failure count:\n%s", out)
	}
	if !strings.Contains(out, "Errors: 1") {
		t.Errorf("missing error count:\n%s", out)
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Total Events: 0") {
		t.Errorf("empty file should report zero events:\n%s", out)
	}
	if !strings.Contains(out, "Flows: 0") {
		t.Errorf("empty file should report zero flows:\n%s", out)
	}
}

func TestStatsTimeRange(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "2026-02-03T09:30:00Z to 2026-02-03T09:30:03Z") {
		t.Errorf("wrong time range:\n%s", out)
	}
	if !strings.Contains(out, "Duration:   3s") {
		t.Errorf("wrong duration:\n%s", out)
	}
}
