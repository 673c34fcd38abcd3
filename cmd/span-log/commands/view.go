// Package commands implements the span-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category     *log.Category
	FlowPrefix   string
	StepID       string
	SerialNumber string
}

// matches returns true if the event passes the view filter.
func (f ViewFilter) matches(event log.Event) bool {
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.FlowPrefix != "" && !strings.HasPrefix(event.FlowID, f.FlowPrefix) {
		return false
	}
	if f.StepID != "" && !eventMentionsStep(event, f.StepID) {
		return false
	}
	if f.SerialNumber != "" && event.SerialNumber != f.SerialNumber {
		return false
	}
	return true
}

func eventMentionsStep(event log.Event, stepID string) bool {
	if event.Step != nil && event.Step.StepID == stepID {
		return true
	}
	if event.Outcome != nil && event.Outcome.StepID == stepID {
		return true
	}
	return false
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [ref] CATEGORY Label
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	ref := eventRef(event)

	var label string
	switch {
	case event.Step != nil:
		label = event.Step.StepID
		if event.Step.HasInput {
			label += " (input)"
		}
	case event.HTTPCall != nil:
		label = event.HTTPCall.Method + " " + event.HTTPCall.Path
	case event.StateChange != nil:
		label = event.StateChange.Entity.String()
	case event.Outcome != nil:
		label = event.Outcome.Result.String()
	case event.Error != nil:
		label = "Error"
	default:
		label = "Unknown"
	}

	fmt.Fprintf(w, "%s [%s] %-7s %s\n", ts, ref, event.Category.String(), label)

	switch {
	case event.HTTPCall != nil:
		formatHTTPDetails(w, event.HTTPCall)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Outcome != nil:
		formatOutcomeDetails(w, event.Outcome)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	if event.Host != "" || event.SerialNumber != "" {
		formatPanelLine(w, event)
	}

	fmt.Fprintln(w) // Blank line between events
}

// eventRef returns the flow ID prefix when the event belongs to a flow,
// otherwise the panel serial the event relates to.
func eventRef(event log.Event) string {
	if event.FlowID != "" {
		return "flow:" + shortenFlowID(event.FlowID)
	}
	if event.SerialNumber != "" {
		return event.SerialNumber
	}
	return "-"
}

// shortenFlowID returns the first 8 characters of the flow ID.
func shortenFlowID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatHTTPDetails writes REST call details.
func formatHTTPDetails(w io.Writer, call *log.HTTPCallEvent) {
	if call.StatusCode != 0 {
		fmt.Fprintf(w, "  Status: %d\n", call.StatusCode)
	}
	if call.Duration != 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(call.Duration))
	}
	if call.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", call.Error)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatOutcomeDetails writes step outcome details.
func formatOutcomeDetails(w io.Writer, out *log.OutcomeEvent) {
	if out.StepID != "" {
		fmt.Fprintf(w, "  Next step: %s\n", out.StepID)
	}
	if out.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", out.Reason)
	}
	if out.Title != "" {
		fmt.Fprintf(w, "  Title: %s\n", out.Title)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatPanelLine writes the panel the event relates to.
func formatPanelLine(w io.Writer, event log.Event) {
	switch {
	case event.SerialNumber != "" && event.Host != "":
		fmt.Fprintf(w, "  Panel: %s at %s\n", event.SerialNumber, event.Host)
	case event.Host != "":
		fmt.Fprintf(w, "  Panel: %s\n", event.Host)
	case event.FlowID != "":
		// Serial already shown in the header ref for non-flow events
		fmt.Fprintf(w, "  Panel: %s\n", event.SerialNumber)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "step":
		return log.CategoryStep, nil
	case "http":
		return log.CategoryHTTP, nil
	case "state":
		return log.CategoryState, nil
	case "outcome":
		return log.CategoryOutcome, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be step, http, state, outcome, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		if !filter.matches(event) {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}
