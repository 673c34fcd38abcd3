package log

import (
	"time"
)

// Event represents a provisioning log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// FlowID uniquely identifies the provisioning flow (UUID).
	// Empty for events outside a flow (e.g. coordinator polling).
	FlowID string `cbor:"2,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Host is the panel host the event relates to, when known.
	Host string `cbor:"4,keyasint,omitempty"`

	// SerialNumber is the panel serial, once discovered.
	SerialNumber string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Step        *StepEvent        `cbor:"6,keyasint,omitempty"`  // Flow step invocation
	HTTPCall    *HTTPCallEvent    `cbor:"7,keyasint,omitempty"`  // Panel REST call
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`  // Flow/coordinator state
	Outcome     *OutcomeEvent     `cbor:"9,keyasint,omitempty"`  // Step result
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryStep indicates a flow step invocation.
	CategoryStep Category = 0
	// CategoryHTTP indicates a panel REST call.
	CategoryHTTP Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryOutcome indicates a step result (form, menu, entry, abort).
	CategoryOutcome Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryStep:
		return "STEP"
	case CategoryHTTP:
		return "HTTP"
	case CategoryState:
		return "STATE"
	case CategoryOutcome:
		return "OUTCOME"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StepEvent captures a flow step invocation.
type StepEvent struct {
	// StepID is the step being invoked (e.g. "user", "auth_proximity").
	StepID string `cbor:"1,keyasint"`

	// HasInput indicates whether the step received submitted values
	// (false for the initial form-rendering pass).
	HasInput bool `cbor:"2,keyasint,omitempty"`
}

// HTTPCallEvent captures one panel REST call.
type HTTPCallEvent struct {
	// Method is the HTTP method.
	Method string `cbor:"1,keyasint"`

	// Path is the request path.
	Path string `cbor:"2,keyasint"`

	// StatusCode is the HTTP response code (0 if transport failed).
	StatusCode int `cbor:"3,keyasint,omitempty"`

	// Duration is the wall time of the call. Stored as nanoseconds.
	Duration time.Duration `cbor:"4,keyasint,omitempty"`

	// Error is the transport error message, if the call failed.
	Error string `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures flow and coordinator lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityFlow indicates a provisioning flow state change.
	StateEntityFlow StateEntity = 0
	// StateEntityCoordinator indicates a polling coordinator state change.
	StateEntityCoordinator StateEntity = 1
	// StateEntityAuthWindow indicates a panel auth window state change.
	StateEntityAuthWindow StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityFlow:
		return "FLOW"
	case StateEntityCoordinator:
		return "COORDINATOR"
	case StateEntityAuthWindow:
		return "AUTH_WINDOW"
	default:
		return "UNKNOWN"
	}
}

// OutcomeEvent captures the result a flow step returned.
type OutcomeEvent struct {
	// Result is the kind of outcome.
	Result ResultKind `cbor:"1,keyasint"`

	// StepID is the next step to render, for form and menu results.
	StepID string `cbor:"2,keyasint,omitempty"`

	// Reason is the abort reason, for abort results.
	Reason string `cbor:"3,keyasint,omitempty"`

	// Title is the entry title, for entry results.
	Title string `cbor:"4,keyasint,omitempty"`
}

// ResultKind is the kind of step outcome.
type ResultKind uint8

const (
	// ResultForm indicates the step asked for a form to be shown.
	ResultForm ResultKind = 0
	// ResultMenu indicates the step asked for a menu to be shown.
	ResultMenu ResultKind = 1
	// ResultEntry indicates the step created or updated an entry.
	ResultEntry ResultKind = 2
	// ResultAbort indicates the step terminated the flow.
	ResultAbort ResultKind = 3
)

// String returns the result kind name.
func (r ResultKind) String() string {
	switch r {
	case ResultForm:
		return "FORM"
	case ResultMenu:
		return "MENU"
	case ResultEntry:
		return "ENTRY"
	case ResultAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
