package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spanpanel/span-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{"timestamp", "flow_id", "category", "host", "serial", "type", "detail", "status_code"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		// Determine event type and one-line detail
		eventType := "unknown"
		detail := ""
		statusCode := ""
		switch {
		case event.Step != nil:
			eventType = "step"
			detail = event.Step.StepID
		case event.HTTPCall != nil:
			eventType = "http"
			detail = event.HTTPCall.Method + " " + event.HTTPCall.Path
			if event.HTTPCall.StatusCode != 0 {
				statusCode = strconv.Itoa(event.HTTPCall.StatusCode)
			}
		case event.StateChange != nil:
			eventType = "state"
			detail = fmt.Sprintf("%s: %s -> %s",
				event.StateChange.Entity.String(), event.StateChange.OldState, event.StateChange.NewState)
		case event.Outcome != nil:
			eventType = "outcome"
			detail = event.Outcome.Result.String()
			if event.Outcome.Reason != "" {
				detail += " " + event.Outcome.Reason
			}
		case event.Error != nil:
			eventType = "error"
			detail = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.FlowID,
			event.Category.String(),
			event.Host,
			event.SerialNumber,
			eventType,
			detail,
			statusCode,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
