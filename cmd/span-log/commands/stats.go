package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Flows            map[string]*FlowStats
	HTTPCalls        int
	HTTPFailures     int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// FlowStats holds statistics for a single provisioning flow.
type FlowStats struct {
	FirstSeen    time.Time
	LastSeen     time.Time
	Events       int
	Steps        int
	Host         string
	SerialNumber string
	Outcome      string
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Flows:            make(map[string]*FlowStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track per-flow stats
		if event.FlowID != "" {
			flow, ok := stats.Flows[event.FlowID]
			if !ok {
				flow = &FlowStats{
					FirstSeen: event.Timestamp,
					LastSeen:  event.Timestamp,
				}
				stats.Flows[event.FlowID] = flow
			}
			flow.Events++
			if event.Timestamp.After(flow.LastSeen) {
				flow.LastSeen = event.Timestamp
			}
			if event.Host != "" && flow.Host == "" {
				flow.Host = event.Host
			}
			if event.SerialNumber != "" && flow.SerialNumber == "" {
				flow.SerialNumber = event.SerialNumber
			}
			if event.Step != nil {
				flow.Steps++
			}
			// The last terminal outcome wins
			if event.Outcome != nil {
				switch event.Outcome.Result {
				case log.ResultEntry:
					flow.Outcome = "entry created"
				case log.ResultAbort:
					flow.Outcome = fmt.Sprintf("aborted (%s)", event.Outcome.Reason)
				}
			}
		}

		// Count REST calls and their failures
		if event.HTTPCall != nil {
			stats.HTTPCalls++
			if event.HTTPCall.Error != "" || event.HTTPCall.StatusCode >= 400 {
				stats.HTTPFailures++
			}
		}

		// Count errors
		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== SPAN Provisioning Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryStep, log.CategoryHTTP, log.CategoryState, log.CategoryOutcome, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// REST calls
	if stats.HTTPCalls > 0 {
		fmt.Fprintf(w, "Panel REST Calls: %d (%d failed)\n", stats.HTTPCalls, stats.HTTPFailures)
		fmt.Fprintln(w)
	}

	// Flows
	fmt.Fprintf(w, "Flows: %d\n", len(stats.Flows))
	if len(stats.Flows) > 0 {
		// Sort by first seen time
		type flowInfo struct {
			id    string
			stats *FlowStats
		}
		flows := make([]flowInfo, 0, len(stats.Flows))
		for id, fs := range stats.Flows {
			flows = append(flows, flowInfo{id, fs})
		}
		sort.Slice(flows, func(i, j int) bool {
			return flows[i].stats.FirstSeen.Before(flows[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, f := range flows {
			duration := f.stats.LastSeen.Sub(f.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d steps, duration %s\n",
				shortenFlowID(f.id), f.stats.Events, f.stats.Steps, duration)
			if f.stats.SerialNumber != "" {
				fmt.Fprintf(w, "             Panel: %s\n", f.stats.SerialNumber)
			}
			if f.stats.Host != "" {
				fmt.Fprintf(w, "             Host: %s\n", f.stats.Host)
			}
			if f.stats.Outcome != "" {
				fmt.Fprintf(w, "             Outcome: %s\n", f.stats.Outcome)
			}
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
