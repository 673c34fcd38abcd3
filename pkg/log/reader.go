package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering log events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// FlowID filters by exact flow ID match.
	FlowID string

	// Category filters by event category.
	Category *Category

	// StepID filters by flow step (matches step and outcome events).
	StepID string

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time

	// Host filters by panel host.
	Host string

	// SerialNumber filters by panel serial.
	SerialNumber string
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.FlowID != "" && event.FlowID != f.FlowID {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.StepID != "" && !eventHasStep(event, f.StepID) {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.Host != "" && event.Host != f.Host {
		return false
	}
	if f.SerialNumber != "" && event.SerialNumber != f.SerialNumber {
		return false
	}
	return true
}

// eventHasStep returns true if the event references the given step ID.
func eventHasStep(event Event, stepID string) bool {
	if event.Step != nil && event.Step.StepID == stepID {
		return true
	}
	if event.Outcome != nil && event.Outcome.StepID == stepID {
		return true
	}
	return false
}

// Reader reads provisioning log events from a CBOR-encoded file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.matches(event) {
			return event, nil
		}
		// Event doesn't match filter, continue to next
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
