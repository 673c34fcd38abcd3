package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/spanpanel/span-go/pkg/discovery"
	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
	"github.com/spanpanel/span-go/pkg/registry"
)

// ClientFactory builds a panel client for a host. An empty token builds an
// unauthenticated client. The flow builds a fresh client per validation so
// a token under test never leaks into later unauthenticated calls.
type ClientFactory func(host, token string) panel.API

// defaultClientFactory builds real HTTP clients.
func defaultClientFactory(host, token string) panel.API {
	if token != "" {
		return panel.NewClient(host, panel.WithToken(token))
	}
	return panel.NewClient(host)
}

// Flow is one run of the provisioning state machine, from trigger to
// terminal outcome. A Flow is single-goroutine: the caller (normally the
// Manager) serializes step invocations.
type Flow struct {
	id      string
	state   *State
	repo    registry.Repository
	clients ClientFactory
	logger  log.Logger
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithClientFactory replaces the panel client factory.
func WithClientFactory(fn ClientFactory) FlowOption {
	return func(f *Flow) { f.clients = fn }
}

// WithLogger sets the event logger for flow tracing.
func WithLogger(logger log.Logger) FlowOption {
	return func(f *Flow) { f.logger = logger }
}

// WithID sets the flow ID carried in emitted events.
func WithID(id string) FlowOption {
	return func(f *Flow) { f.id = id }
}

// NewFlow creates a flow against the given entry repository.
func NewFlow(repo registry.Repository, opts ...FlowOption) *Flow {
	f := &Flow{
		state:   &State{},
		repo:    repo,
		clients: defaultClientFactory,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the flow ID.
func (f *Flow) ID() string { return f.id }

// State returns the flow's provisioning state.
func (f *Flow) State() *State { return f.state }

// StepUser handles a flow initiated by the operator typing a host.
func (f *Flow) StepUser(ctx context.Context, input FormInput) (Result, error) {
	f.logStep(StepIDUser, input.Submitted())

	// Prompt for a host if we haven't yet
	if !input.Submitted() {
		return f.outcome(ShowForm(StepIDUser, nil, nil)), nil
	}

	// Re-prompt with an error marker unless the host is a reachable panel
	host := input.Value(FieldHost)
	if !f.validateHost(ctx, host, "") {
		errs := map[string]string{"base": ErrorCannotConnect}
		return f.outcome(ShowForm(StepIDUser, errs, nil)), nil
	}

	if err := f.setup(ctx, TriggerCreate, host); err != nil {
		return Result{}, err
	}

	if res, done, err := f.ensureNotAlreadyConfigured(); done || err != nil {
		return res, err
	}

	// No menu input yet, so this lands on the confirmation form
	return f.StepChooseAuthType(ctx, Back())
}

// StepDiscovery handles a flow initiated by network discovery.
// The host match and address check run before any network probe.
func (f *Flow) StepDiscovery(ctx context.Context, host string) (Result, error) {
	f.logStep(StepIDDiscovery, true)

	// Do not probe a host that is already configured
	existing, err := f.repo.FindByHost(host)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return f.outcome(AbortFlow(AbortAlreadyConfigured)), nil
	}

	// Do not probe a host that is not an IPv4 address
	if !discovery.IsIPv4Address(host) {
		return f.outcome(AbortFlow(AbortNotIPv4Address)), nil
	}

	// Validate that this is a SPAN panel
	if !f.validateHost(ctx, host, "") {
		return f.outcome(AbortFlow(AbortNotSpanPanel)), nil
	}

	if err := f.setup(ctx, TriggerCreate, host); err != nil {
		return Result{}, err
	}

	if res, done, err := f.ensureNotAlreadyConfigured(); done || err != nil {
		return res, err
	}

	return f.StepConfirmDiscovery(ctx, Back())
}

// StepReauth handles a flow initiated because the entry's stored token
// went stale. The flow resolves by rewriting that entry.
func (f *Flow) StepReauth(ctx context.Context, entry *registry.Entry) (Result, error) {
	f.logStep(StepIDReauth, true)

	if entry == nil {
		return Result{}, ErrMissingEntry
	}

	if err := f.setup(ctx, TriggerUpdate, entry.Host); err != nil {
		return Result{}, err
	}
	if err := f.state.setEntryID(entry.UniqueID); err != nil {
		return Result{}, err
	}

	return f.StepAuthProximity(ctx)
}

// StepConfirmDiscovery prompts the operator to confirm a discovered panel.
// A back/re-entry input renders the same confirmation again.
func (f *Flow) StepConfirmDiscovery(ctx context.Context, input FormInput) (Result, error) {
	f.logStep(StepIDConfirmDiscovery, input.Submitted())
	if err := f.state.ensureSetUp(); err != nil {
		return Result{}, err
	}

	if !input.Submitted() {
		placeholders := map[string]string{FieldHost: f.state.Host()}
		return f.outcome(ShowForm(StepIDConfirmDiscovery, nil, placeholders)), nil
	}

	// Confirmed
	return f.StepChooseAuthType(ctx, input)
}

// StepChooseAuthType presents the authentication method menu.
// A back input is the menu host backing out; it routes to confirmation.
func (f *Flow) StepChooseAuthType(ctx context.Context, input FormInput) (Result, error) {
	f.logStep(StepIDChooseAuthType, input.Submitted())
	if err := f.state.ensureSetUp(); err != nil {
		return Result{}, err
	}

	if !input.Submitted() {
		return f.StepConfirmDiscovery(ctx, Back())
	}

	return f.outcome(ShowMenu(StepIDChooseAuthType, []MenuOption{
		{ID: StepIDAuthProximity, Label: "Proof of Proximity (recommended)"},
		{ID: StepIDAuthToken, Label: "Existing Auth Token"},
	})), nil
}

// StepAuthProximity guides the operator through the proximity proof. Each
// invocation polls the panel once; the waiting form is re-shown until the
// panel reports the proof complete. There is no attempt bound here: the
// caller re-invokes on its own cadence until the operator acts or gives up.
func (f *Flow) StepAuthProximity(ctx context.Context) (Result, error) {
	f.logStep(StepIDAuthProximity, false)
	if err := f.state.ensureSetUp(); err != nil {
		return Result{}, err
	}

	client := f.clients(f.state.Host(), "")
	status, err := client.StatusData(ctx)
	if err != nil {
		// Panel briefly unreachable mid-proof: stay in the waiting state
		return f.outcome(ShowForm(StepIDAuthProximity, nil, nil)), nil
	}

	// Covers both firmware generations: proximity_proven on new firmware,
	// the button-press countdown on old firmware.
	if !status.ProximitySatisfied() {
		return f.outcome(ShowForm(StepIDAuthProximity, nil, nil)), nil
	}

	if f.state.Host() == "" {
		return f.outcome(AbortFlow(AbortHostNotSet)), nil
	}

	token, err := client.AccessToken(ctx)
	if err != nil {
		return f.outcome(AbortFlow(AbortInvalidAccessToken)), nil
	}
	if !f.validateHost(ctx, f.state.Host(), token) {
		return f.outcome(AbortFlow(AbortInvalidAccessToken)), nil
	}
	if err := f.state.setAccessToken(token); err != nil {
		return Result{}, err
	}

	return f.resolveEntry(ctx)
}

// StepAuthToken prompts for an existing access token. An empty submission
// goes back to the method menu; that is navigation, not an error.
func (f *Flow) StepAuthToken(ctx context.Context, input FormInput) (Result, error) {
	f.logStep(StepIDAuthToken, input.Submitted())
	if err := f.state.ensureSetUp(); err != nil {
		return Result{}, err
	}

	if !input.Submitted() {
		return f.outcome(ShowForm(StepIDAuthToken, nil, nil)), nil
	}

	token := input.Value(FieldAccessToken)
	if token == "" {
		return f.StepChooseAuthType(ctx, input)
	}

	if f.state.Host() == "" {
		return f.outcome(AbortFlow(AbortHostNotSet)), nil
	}
	if !f.validateHost(ctx, f.state.Host(), token) {
		return f.outcome(AbortFlow(AbortInvalidAccessToken)), nil
	}
	if err := f.state.setAccessToken(token); err != nil {
		return Result{}, err
	}

	return f.resolveEntry(ctx)
}

// resolveEntry is the terminal branch: it dispatches on the trigger type
// and persists the flow's outcome. Missing state here is caller misuse and
// fails hard; a partial entry is never written.
func (f *Flow) resolveEntry(ctx context.Context) (Result, error) {
	if err := f.state.ensureSetUp(); err != nil {
		return Result{}, err
	}

	switch f.state.Trigger() {
	case TriggerCreate:
		return f.createNewEntry()
	case TriggerUpdate:
		return f.updateExistingEntry()
	default:
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownTrigger, f.state.Trigger())
	}
}

// createNewEntry persists a new entry titled by the panel serial number.
func (f *Flow) createNewEntry() (Result, error) {
	host := f.state.Host()
	serial := f.state.SerialNumber()
	token := f.state.AccessToken()

	if host == "" {
		return Result{}, ErrMissingHost
	}
	if serial == "" {
		return Result{}, ErrMissingSerial
	}
	if token == "" {
		return Result{}, ErrMissingToken
	}

	entry := &registry.Entry{
		UniqueID:    serial,
		Title:       serial,
		Host:        host,
		AccessToken: token,
	}
	if err := f.repo.Create(entry); err != nil {
		return Result{}, fmt.Errorf("creating entry: %w", err)
	}

	return f.outcome(CreatedEntry(serial, serial, host)), nil
}

// updateExistingEntry rewrites the re-auth target entry's host and token,
// then requests a reload of it. The reload is fire-and-forget: its failure
// is invisible to the flow.
func (f *Flow) updateExistingEntry() (Result, error) {
	host := f.state.Host()
	token := f.state.AccessToken()
	entryID := f.state.EntryID()

	if host == "" {
		return Result{}, ErrMissingHost
	}
	if token == "" {
		return Result{}, ErrMissingToken
	}
	if entryID == "" {
		return Result{}, ErrMissingEntry
	}

	existing, err := f.repo.FindByUniqueID(entryID)
	if err != nil {
		return Result{}, err
	}
	if existing == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingEntry, entryID)
	}

	existing.Host = host
	existing.AccessToken = token
	if err := f.repo.Update(existing); err != nil {
		return Result{}, fmt.Errorf("updating entry: %w", err)
	}

	go func() { _ = f.repo.RequestReload(entryID) }()

	return f.outcome(AbortFlow(AbortReauthSuccessful)), nil
}

// setup is the shared setup step: it fetches the panel status and records
// serial, host and trigger. A second call fails before any network I/O.
func (f *Flow) setup(ctx context.Context, trigger TriggerType, host string) error {
	if f.state.IsSetUp() {
		return ErrAlreadySetUp
	}

	client := f.clients(host, "")
	status, err := client.StatusData(ctx)
	if err != nil {
		return fmt.Errorf("fetching panel status: %w", err)
	}

	if err := f.state.markSetUp(trigger, host, status.SerialNumber); err != nil {
		return err
	}

	f.logStateChange("", "set_up", trigger.String())
	return nil
}

// ensureNotAlreadyConfigured aborts the flow when an entry for the panel's
// serial already exists. The stored host follows the panel when it moved.
func (f *Flow) ensureNotAlreadyConfigured() (Result, bool, error) {
	if err := f.state.ensureSetUp(); err != nil {
		return Result{}, false, err
	}

	existing, err := f.repo.FindByUniqueID(f.state.SerialNumber())
	if err != nil {
		return Result{}, false, err
	}
	if existing == nil {
		return Result{}, false, nil
	}

	if existing.Host != f.state.Host() {
		if err := f.repo.UpdateHost(existing.UniqueID, f.state.Host()); err != nil {
			return Result{}, false, err
		}
		uniqueID := existing.UniqueID
		go func() { _ = f.repo.RequestReload(uniqueID) }()
	}

	return f.outcome(AbortFlow(AbortAlreadyConfigured)), true, nil
}

// validateHost reports whether host answers as a SPAN panel, with the
// given token when one is supplied.
func (f *Flow) validateHost(ctx context.Context, host, token string) bool {
	if host == "" {
		return false
	}
	return f.clients(host, token).Ping(ctx)
}

// outcome logs a result before handing it back.
func (f *Flow) outcome(res Result) Result {
	if f.logger == nil {
		return res
	}

	event := log.Event{
		Timestamp:    time.Now(),
		FlowID:       f.id,
		Category:     log.CategoryOutcome,
		Host:         f.state.Host(),
		SerialNumber: f.state.SerialNumber(),
	}

	switch res.Type {
	case ResultTypeForm:
		event.Outcome = &log.OutcomeEvent{Result: log.ResultForm, StepID: res.Form.StepID}
	case ResultTypeMenu:
		event.Outcome = &log.OutcomeEvent{Result: log.ResultMenu, StepID: res.Menu.StepID}
	case ResultTypeEntry:
		event.Outcome = &log.OutcomeEvent{Result: log.ResultEntry, Title: res.Entry.Title}
	case ResultTypeAbort:
		event.Outcome = &log.OutcomeEvent{Result: log.ResultAbort, Reason: res.Abort.Reason}
	}

	f.logger.Log(event)
	return res
}

// logStep emits a step invocation event.
func (f *Flow) logStep(stepID string, hasInput bool) {
	if f.logger == nil {
		return
	}

	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		FlowID:       f.id,
		Category:     log.CategoryStep,
		Host:         f.state.Host(),
		SerialNumber: f.state.SerialNumber(),
		Step:         &log.StepEvent{StepID: stepID, HasInput: hasInput},
	})
}

// logStateChange emits a flow state transition event.
func (f *Flow) logStateChange(oldState, newState, reason string) {
	if f.logger == nil {
		return
	}

	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		FlowID:       f.id,
		Category:     log.CategoryState,
		Host:         f.state.Host(),
		SerialNumber: f.state.SerialNumber(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityFlow,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
