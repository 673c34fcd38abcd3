package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes provisioning events to an slog.Logger.
// Useful for development when you want to see flow events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.FlowID != "" {
		attrs = append(attrs, slog.String("flow_id", event.FlowID))
	}
	if event.Host != "" {
		attrs = append(attrs, slog.String("host", event.Host))
	}
	if event.SerialNumber != "" {
		attrs = append(attrs, slog.String("serial", event.SerialNumber))
	}

	// Add type-specific attributes
	switch {
	case event.Step != nil:
		attrs = append(attrs,
			slog.String("step", event.Step.StepID),
			slog.Bool("has_input", event.Step.HasInput),
		)
	case event.HTTPCall != nil:
		attrs = append(attrs,
			slog.String("method", event.HTTPCall.Method),
			slog.String("path", event.HTTPCall.Path),
		)
		if event.HTTPCall.StatusCode != 0 {
			attrs = append(attrs, slog.Int("status_code", event.HTTPCall.StatusCode))
		}
		if event.HTTPCall.Duration != 0 {
			attrs = append(attrs, slog.Duration("duration", event.HTTPCall.Duration))
		}
		if event.HTTPCall.Error != "" {
			attrs = append(attrs, slog.String("error", event.HTTPCall.Error))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Outcome != nil:
		attrs = append(attrs, slog.String("result", event.Outcome.Result.String()))
		if event.Outcome.StepID != "" {
			attrs = append(attrs, slog.String("next_step", event.Outcome.StepID))
		}
		if event.Outcome.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Outcome.Reason))
		}
		if event.Outcome.Title != "" {
			attrs = append(attrs, slog.String("title", event.Outcome.Title))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "provision", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
