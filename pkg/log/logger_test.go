package log

import (
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	// Should not panic with any event type
	event := Event{
		Timestamp: time.Now(),
		FlowID:    "test-flow",
		Category:  CategoryStep,
	}

	// Test with nil payloads
	logger.Log(event)

	// Test with step payload
	event.Step = &StepEvent{StepID: "user", HasInput: true}
	logger.Log(event)

	// Test with HTTP call payload
	event.Step = nil
	event.HTTPCall = &HTTPCallEvent{Method: "GET", Path: "/api/v1/status", StatusCode: 200}
	logger.Log(event)

	// Test with state change payload
	event.HTTPCall = nil
	event.StateChange = &StateChangeEvent{Entity: StateEntityFlow, NewState: "set_up"}
	logger.Log(event)

	// Test with outcome payload
	event.StateChange = nil
	event.Outcome = &OutcomeEvent{Result: ResultAbort, Reason: "already_configured"}
	logger.Log(event)

	// Test with error payload
	event.Outcome = nil
	event.Error = &ErrorEventData{Message: "test error"}
	logger.Log(event)
}

func TestLoggerInterfaceSatisfaction(t *testing.T) {
	// Compile-time check that NoopLogger satisfies Logger interface
	var _ Logger = NoopLogger{}
	var _ Logger = &NoopLogger{}
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	// NoopLogger should be usable as zero value
	var logger NoopLogger
	logger.Log(Event{})
}
