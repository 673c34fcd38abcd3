package commands

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/spanpanel/span-go/pkg/log"
)

// readAllEvents reads every event in a log file.
func readAllEvents(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterByCategory(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{Output: outPath, Category: "http"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAllEvents(t, outPath)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].HTTPCall == nil || events[0].HTTPCall.Path != "/api/v1/status" {
		t.Errorf("wrong event survived the filter: %+v", events[0])
	}
}

func TestFilterByFlowID(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{
		Output: outPath,
		FlowID: "7d8f1a2b-4c5e-46f7-89ab-0123456789ab",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAllEvents(t, outPath)
	if len(events) != 3 {
		t.Fatalf("expected 3 flow events, got %d", len(events))
	}
	for _, e := range events {
		if e.FlowID != "7d8f1a2b-4c5e-46f7-89ab-0123456789ab" {
			t.Errorf("event with wrong flow ID survived: %q", e.FlowID)
		}
	}
}

func TestFilterBySerial(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{Output: outPath, SerialNumber: "nj-2316-005k6"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAllEvents(t, outPath)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].StateChange == nil {
		t.Errorf("expected the window transition, got: %+v", events[0])
	}
}

func TestFilterByTimeRange(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	// Events span 09:30:00 to 09:30:03; keep the middle two.
	err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: "2026-02-03T09:30:01Z",
		TimeEnd:   "2026-02-03T09:30:03Z",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAllEvents(t, outPath)
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
}

func TestFilterInvalidTime(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{Output: outPath, TimeStart: "yesterday"})
	if err == nil {
		t.Error("expected error for invalid time format")
	}
}

func TestFilterInvalidCategory(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{Output: outPath, Category: "wire"})
	if err == nil {
		t.Error("expected error for unknown category")
	}
}
