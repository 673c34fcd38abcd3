// Package log provides structured event logging for panel provisioning.
//
// This package defines the Logger interface and Event types for capturing
// provisioning events: flow steps, panel REST calls, state changes, and
// step outcomes. It is separate from operational logging (slog) - event
// capture provides a complete machine-readable trace of how a flow reached
// its terminal result, for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/span/provision.slog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/span/provision.slog"),
//	)
//
// # Event Types
//
// Events carry one type-specific payload:
//   - Step: a flow step invocation (StepEvent)
//   - HTTPCall: one panel REST call (HTTPCallEvent)
//   - StateChange: flow/coordinator lifecycle (StateChangeEvent)
//   - Outcome: the result a step returned (OutcomeEvent)
//   - Error: errors at any layer (ErrorEventData)
//
// # File Format
//
// Log files use CBOR encoding with .slog extension. The span-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
