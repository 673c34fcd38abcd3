package provision

import (
	"errors"
	"fmt"
)

// Contract-violation errors. These indicate misuse of the state machine by
// the caller and are never converted to flow outcomes.
var (
	ErrAlreadySetUp   = errors.New("flow is already set up")
	ErrNotSetUp       = errors.New("flow is not set up")
	ErrFieldReset     = errors.New("flow field cannot be reset")
	ErrMissingHost    = errors.New("host missing from flow state")
	ErrMissingSerial  = errors.New("serial number missing from flow state")
	ErrMissingToken   = errors.New("access token missing from flow state")
	ErrMissingEntry   = errors.New("reauth target entry missing from flow state")
	ErrUnknownTrigger = errors.New("unknown trigger type")
)

// TriggerType says how a flow resolves: by creating a new entry or by
// updating an existing one.
type TriggerType uint8

const (
	// TriggerUnknown is the zero value. A flow carries it until setup.
	TriggerUnknown TriggerType = iota

	// TriggerCreate resolves the flow by creating a new entry.
	TriggerCreate

	// TriggerUpdate resolves the flow by rewriting an existing entry.
	TriggerUpdate
)

// String returns the trigger name.
func (t TriggerType) String() string {
	switch t {
	case TriggerCreate:
		return "CREATE"
	case TriggerUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// State is the mutable state carried across the steps of one flow.
// Fields move from absent to set exactly once and are never reset;
// the setters enforce this.
type State struct {
	trigger      TriggerType
	host         string
	serialNumber string
	accessToken  string
	entryID      string
	isSetUp      bool
}

// markSetUp records the outcome of the shared setup step.
// A second call fails with ErrAlreadySetUp regardless of arguments.
func (s *State) markSetUp(trigger TriggerType, host, serialNumber string) error {
	if s.isSetUp {
		return ErrAlreadySetUp
	}
	s.trigger = trigger
	s.host = host
	s.serialNumber = serialNumber
	s.isSetUp = true
	return nil
}

// ensureSetUp fails unless setup has completed.
func (s *State) ensureSetUp() error {
	if !s.isSetUp {
		return ErrNotSetUp
	}
	return nil
}

// setAccessToken records the token obtained by an auth step.
func (s *State) setAccessToken(token string) error {
	if s.accessToken != "" {
		return fmt.Errorf("%w: access token", ErrFieldReset)
	}
	s.accessToken = token
	return nil
}

// setEntryID records the unique ID of the entry a re-auth flow updates.
func (s *State) setEntryID(id string) error {
	if s.entryID != "" {
		return fmt.Errorf("%w: entry id", ErrFieldReset)
	}
	s.entryID = id
	return nil
}

// Trigger returns the trigger type set at setup.
func (s *State) Trigger() TriggerType { return s.trigger }

// Host returns the panel host recorded at setup.
func (s *State) Host() string { return s.host }

// SerialNumber returns the serial number recorded at setup.
func (s *State) SerialNumber() string { return s.serialNumber }

// AccessToken returns the token recorded by a successful auth step.
func (s *State) AccessToken() string { return s.accessToken }

// EntryID returns the unique ID of the entry a re-auth flow updates.
func (s *State) EntryID() string { return s.entryID }

// IsSetUp reports whether the shared setup step has completed.
func (s *State) IsSetUp() bool { return s.isSetUp }
