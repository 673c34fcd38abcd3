package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
)

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "STEP") || !strings.Contains(out, "user (input)") {
		t.Errorf("output missing step event:\n%s", out)
	}
	if !strings.Contains(out, "GET /api/v1/status") || !strings.Contains(out, "Status: 200") {
		t.Errorf("output missing REST call details:\n%s", out)
	}
	if !strings.Contains(out, "LOCKED -> UNLOCKED") {
		t.Errorf("output missing window transition:\n%s", out)
	}
	if !strings.Contains(out, "Reason: cannot_connect") {
		t.Errorf("output missing abort reason:\n%s", out)
	}
	if !strings.Contains(out, "[flow:7d8f1a2b]") {
		t.Errorf("output missing shortened flow ref:\n%s", out)
	}
	if !strings.Contains(out, "[nj-2316-005k6]") {
		t.Errorf("window event should be referenced by serial:\n%s", out)
	}
}

func TestViewFilterByCategory(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	cat := log.CategoryHTTP
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "GET /api/v1/status") {
		t.Errorf("REST call filtered out:\n%s", out)
	}
	if strings.Contains(out, "STEP") || strings.Contains(out, "UNLOCKED") {
		t.Errorf("non-http events leaked through:\n%s", out)
	}
}

func TestViewFilterByFlowPrefix(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{FlowPrefix: "7d8f1a2b"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "AUTH_WINDOW") {
		t.Errorf("flow filter should drop non-flow events:\n%s", out)
	}
	if !strings.Contains(out, "user (input)") {
		t.Errorf("flow events filtered out:\n%s", out)
	}

	buf.Reset()
	if err := RunView(path, ViewFilter{FlowPrefix: "ffffffff"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unmatched flow prefix should produce no output, got:\n%s", buf.String())
	}
}

func TestViewFilterByStep(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{StepID: "user"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "user (input)") {
		t.Errorf("step event filtered out:\n%s", out)
	}
	if strings.Contains(out, "GET /api/v1/status") {
		t.Errorf("step filter should drop the REST call:\n%s", out)
	}
}

func TestViewFilterBySerial(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{SerialNumber: "nj-2316-005k6"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "AUTH_WINDOW") {
		t.Errorf("window event filtered out:\n%s", out)
	}
	if strings.Contains(out, "user (input)") {
		t.Errorf("flow events without the serial leaked through:\n%s", out)
	}
}

func TestViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := RunView("/nonexistent/file.plog", ViewFilter{}, &buf)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseCategoryFlag(t *testing.T) {
	tests := []struct {
		in   string
		want log.Category
	}{
		{"step", log.CategoryStep},
		{"http", log.CategoryHTTP},
		{"STATE", log.CategoryState},
		{"Outcome", log.CategoryOutcome},
		{"error", log.CategoryError},
	}
	for _, tt := range tests {
		got, err := ParseCategoryFlag(tt.in)
		if err != nil {
			t.Errorf("ParseCategoryFlag(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategoryFlag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseCategoryFlag("wire"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{12 * time.Millisecond, "12.000ms"},
		{2500 * time.Millisecond, "2.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestShortenFlowID(t *testing.T) {
	if got := shortenFlowID("7d8f1a2b-4c5e"); got != "7d8f1a2b" {
		t.Errorf("shortenFlowID() = %q, want %q", got, "7d8f1a2b")
	}
	if got := shortenFlowID("abc"); got != "abc" {
		t.Errorf("shortenFlowID(short) = %q, want unchanged", got)
	}
}
