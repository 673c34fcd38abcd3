package provision

// Step IDs. Stable codes naming the form or menu a result refers to.
const (
	StepIDUser             = "user"
	StepIDDiscovery        = "discovery"
	StepIDReauth           = "reauth"
	StepIDConfirmDiscovery = "confirm_discovery"
	StepIDChooseAuthType   = "choose_auth_type"
	StepIDAuthProximity    = "auth_proximity"
	StepIDAuthToken        = "auth_token"
)

// Form field keys.
const (
	FieldHost        = "host"
	FieldAccessToken = "access_token"
)

// Abort reasons. Stable codes identifying why a flow terminated.
const (
	AbortNotIPv4Address     = "not_ipv4_address"
	AbortNotSpanPanel       = "not_span_panel"
	AbortAlreadyConfigured  = "already_configured"
	AbortHostNotSet         = "host_not_set"
	AbortInvalidAccessToken = "invalid_access_token"
	AbortReauthSuccessful   = "reauth_successful"
)

// Form error codes, keyed under "base" in FormResult.Errors.
const (
	ErrorCannotConnect = "cannot_connect"
)

// ResultType identifies which arm of the Result union is set.
type ResultType uint8

const (
	// ResultTypeNone is the zero value: no result has been produced. A
	// flow whose first step failed has no pending result, so the zero
	// Result must not look like any renderable arm.
	ResultTypeNone ResultType = iota

	// ResultTypeForm asks the caller to render a form.
	ResultTypeForm

	// ResultTypeMenu asks the caller to render a choice menu.
	ResultTypeMenu

	// ResultTypeEntry reports a created entry. Terminal.
	ResultTypeEntry

	// ResultTypeAbort reports flow termination with a reason. Terminal.
	ResultTypeAbort
)

// String returns the result type name.
func (t ResultType) String() string {
	switch t {
	case ResultTypeNone:
		return "NONE"
	case ResultTypeForm:
		return "FORM"
	case ResultTypeMenu:
		return "MENU"
	case ResultTypeEntry:
		return "ENTRY"
	case ResultTypeAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// Result is a union type for step outcomes.
type Result struct {
	// Type indicates the result type.
	Type ResultType

	// Form is set when Type is ResultTypeForm.
	Form *FormResult

	// Menu is set when Type is ResultTypeMenu.
	Menu *MenuResult

	// Entry is set when Type is ResultTypeEntry.
	Entry *EntryResult

	// Abort is set when Type is ResultTypeAbort.
	Abort *AbortResult
}

// Terminal reports whether the flow ended with this result.
func (r Result) Terminal() bool {
	return r.Type == ResultTypeEntry || r.Type == ResultTypeAbort
}

// StepID returns the step the result refers to, or "" for terminal results.
func (r Result) StepID() string {
	switch r.Type {
	case ResultTypeForm:
		return r.Form.StepID
	case ResultTypeMenu:
		return r.Menu.StepID
	default:
		return ""
	}
}

// FormResult asks the caller to render the form for a step.
type FormResult struct {
	// StepID names the form to render.
	StepID string

	// Errors carries field error codes from a rejected submission,
	// keyed by field name with "base" for form-wide errors.
	Errors map[string]string

	// Placeholders carries values to interpolate into the form copy.
	Placeholders map[string]string
}

// MenuResult asks the caller to render a choice between steps.
type MenuResult struct {
	// StepID names the menu.
	StepID string

	// Options lists the choices in presentation order.
	Options []MenuOption
}

// HasOption reports whether the menu offers the given option ID.
func (m *MenuResult) HasOption(id string) bool {
	for _, opt := range m.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// MenuOption is one selectable menu choice.
type MenuOption struct {
	// ID is the step ID the choice leads to.
	ID string

	// Label is the human-readable choice text.
	Label string
}

// EntryResult reports the entry a resolved CREATE flow produced.
type EntryResult struct {
	// Title is the entry title (the panel serial number).
	Title string

	// UniqueID is the entry's unique ID.
	UniqueID string

	// Host is the host stored in the entry.
	Host string
}

// AbortResult reports flow termination.
type AbortResult struct {
	// Reason is the stable abort reason code.
	Reason string
}

// ShowForm builds a form result. errs and placeholders may be nil.
func ShowForm(stepID string, errs, placeholders map[string]string) Result {
	return Result{
		Type: ResultTypeForm,
		Form: &FormResult{StepID: stepID, Errors: errs, Placeholders: placeholders},
	}
}

// ShowMenu builds a menu result.
func ShowMenu(stepID string, options []MenuOption) Result {
	return Result{
		Type: ResultTypeMenu,
		Menu: &MenuResult{StepID: stepID, Options: options},
	}
}

// CreatedEntry builds the terminal result for a created entry.
func CreatedEntry(title, uniqueID, host string) Result {
	return Result{
		Type:  ResultTypeEntry,
		Entry: &EntryResult{Title: title, UniqueID: uniqueID, Host: host},
	}
}

// AbortFlow builds the terminal abort result.
func AbortFlow(reason string) Result {
	return Result{
		Type:  ResultTypeAbort,
		Abort: &AbortResult{Reason: reason},
	}
}
