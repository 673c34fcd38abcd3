package provision

import (
	"errors"
	"fmt"

	"github.com/spanpanel/span-go/pkg/options"
	"github.com/spanpanel/span-go/pkg/registry"
)

// StepIDOptionsInit is the single step of the options flow.
const StepIDOptionsInit = "init"

// Options form error codes.
const (
	ErrorInvalidOption      = "invalid_option"
	ErrorScanIntervalTooLow = "scan_interval_too_low"
	ErrorNegativeLeg        = "negative_leg"
)

// OptionsFlow edits the stored options of one provisioned entry. Unlike
// the provisioning flow it has a single step: a form prefilled with the
// entry's current options, and a submission that validates and stores
// them. The title of the terminal result is empty; the values live in
// the entry's options, not in its data.
type OptionsFlow struct {
	repo     registry.Repository
	uniqueID string
}

// NewOptionsFlow creates an options flow for the entry with the given
// unique ID.
func NewOptionsFlow(repo registry.Repository, uniqueID string) *OptionsFlow {
	return &OptionsFlow{repo: repo, uniqueID: uniqueID}
}

// Init runs the options step. No input renders the form with the current
// values; a submission validates per key and either re-renders with field
// errors or stores the options and terminates.
func (o *OptionsFlow) Init(input FormInput) (Result, error) {
	entry, err := o.repo.FindByUniqueID(o.uniqueID)
	if err != nil {
		return Result{}, err
	}
	if entry == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingEntry, o.uniqueID)
	}

	if !input.Submitted() {
		return ShowForm(StepIDOptionsInit, nil, currentValues(entry)), nil
	}

	opts, err := options.FromMap(input.Values())
	if err != nil {
		errs := map[string]string{"base": ErrorInvalidOption}
		return ShowForm(StepIDOptionsInit, errs, currentValues(entry)), nil
	}
	if err := opts.Validate(); err != nil {
		return ShowForm(StepIDOptionsInit, validationErrors(err), currentValues(entry)), nil
	}

	if err := o.repo.UpdateOptions(o.uniqueID, opts); err != nil {
		return Result{}, fmt.Errorf("storing options: %w", err)
	}

	// Options-store convention: terminal entry result with an empty title
	return CreatedEntry("", o.uniqueID, entry.Host), nil
}

// currentValues renders the entry's options as form prefill values.
// An entry that never had options set shows the per-key defaults.
func currentValues(entry *registry.Entry) map[string]string {
	current := entry.Options
	if current.ScanInterval == 0 {
		current.ScanInterval = options.DefaultScanInterval
	}
	return current.ToMap()
}

// validationErrors maps an options validation failure to its field error.
func validationErrors(err error) map[string]string {
	switch {
	case errors.Is(err, options.ErrScanIntervalTooLow):
		return map[string]string{options.KeyScanInterval: ErrorScanIntervalTooLow}
	case errors.Is(err, options.ErrNegativeLeg):
		return map[string]string{"base": ErrorNegativeLeg}
	default:
		return map[string]string{"base": ErrorInvalidOption}
	}
}
