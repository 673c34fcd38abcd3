package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spanpanel/span-go/pkg/registry"
)

// Manager errors.
var (
	// ErrFlowNotFound is returned for a flow ID with no live flow. The ID
	// either never existed or the flow already reached a terminal result.
	ErrFlowNotFound = errors.New("provision: flow not found")

	// ErrNoPendingForm is returned by Submit when the flow is not waiting
	// on a form.
	ErrNoPendingForm = errors.New("provision: flow is not waiting on a form")

	// ErrNoPendingMenu is returned by Choose when the flow is not waiting
	// on a menu.
	ErrNoPendingMenu = errors.New("provision: flow is not waiting on a menu")

	// ErrUnknownMenuOption is returned by Choose for an option ID the
	// pending menu does not offer.
	ErrUnknownMenuOption = errors.New("provision: unknown menu option")
)

// managedFlow pairs a live flow with its last non-terminal result. The
// per-flow mutex serializes step invocations; a Flow itself is not
// re-entrant.
type managedFlow struct {
	mu      sync.Mutex
	flow    *Flow
	pending Result
}

// Manager owns the live provisioning flows of a running embedder. It
// creates one flow per trigger, routes operator input to the step each
// flow is waiting on, and discards flows once they reach a terminal
// result. All methods are safe for concurrent use; invocations on the
// same flow are serialized.
type Manager struct {
	repo registry.Repository
	opts []FlowOption

	mu    sync.Mutex
	flows map[string]*managedFlow
}

// NewManager creates a manager over the given entry repository. The
// options are applied to every flow the manager creates; the manager
// assigns flow IDs itself.
func NewManager(repo registry.Repository, opts ...FlowOption) *Manager {
	return &Manager{
		repo:  repo,
		opts:  opts,
		flows: make(map[string]*managedFlow),
	}
}

// StartUser begins an operator-initiated flow. The returned result is the
// host form; feed the filled form back through Submit.
func (m *Manager) StartUser(ctx context.Context) (string, Result, error) {
	mf, id := m.newFlow()
	res, err := m.invoke(ctx, id, mf, func(ctx context.Context, f *Flow) (Result, error) {
		return f.StepUser(ctx, Back())
	})
	return id, res, err
}

// StartDiscovery begins a flow for a discovered panel host. Most
// discovery flows terminate immediately (already configured, not a
// panel); the rest wait on the confirmation form.
func (m *Manager) StartDiscovery(ctx context.Context, host string) (string, Result, error) {
	mf, id := m.newFlow()
	res, err := m.invoke(ctx, id, mf, func(ctx context.Context, f *Flow) (Result, error) {
		return f.StepDiscovery(ctx, host)
	})
	return id, res, err
}

// StartReauth begins a re-authentication flow for the stored entry with
// the given unique ID.
func (m *Manager) StartReauth(ctx context.Context, uniqueID string) (string, Result, error) {
	entry, err := m.repo.FindByUniqueID(uniqueID)
	if err != nil {
		return "", Result{}, err
	}
	if entry == nil {
		return "", Result{}, fmt.Errorf("%w: %s", ErrMissingEntry, uniqueID)
	}

	mf, id := m.newFlow()
	res, err := m.invoke(ctx, id, mf, func(ctx context.Context, f *Flow) (Result, error) {
		return f.StepReauth(ctx, entry)
	})
	return id, res, err
}

// Submit feeds a filled form back to the flow waiting on it. Submitting
// nil values re-invokes the pending step without fields; on the
// proximity waiting form that is how the panel is re-polled.
func (m *Manager) Submit(ctx context.Context, flowID string, values map[string]string) (Result, error) {
	mf, err := m.lookup(flowID)
	if err != nil {
		return Result{}, err
	}

	return m.invoke(ctx, flowID, mf, func(ctx context.Context, f *Flow) (Result, error) {
		if mf.pending.Type != ResultTypeForm {
			return Result{}, fmt.Errorf("%w: %s", ErrNoPendingForm, flowID)
		}

		switch mf.pending.Form.StepID {
		case StepIDUser:
			return f.StepUser(ctx, Submit(values))
		case StepIDConfirmDiscovery:
			return f.StepConfirmDiscovery(ctx, Submit(values))
		case StepIDAuthProximity:
			return f.StepAuthProximity(ctx)
		case StepIDAuthToken:
			return f.StepAuthToken(ctx, Submit(values))
		default:
			return Result{}, fmt.Errorf("%w: step %s", ErrNoPendingForm, mf.pending.Form.StepID)
		}
	})
}

// Choose answers the menu the flow is waiting on. An empty option is the
// operator backing out of the menu.
func (m *Manager) Choose(ctx context.Context, flowID, option string) (Result, error) {
	mf, err := m.lookup(flowID)
	if err != nil {
		return Result{}, err
	}

	return m.invoke(ctx, flowID, mf, func(ctx context.Context, f *Flow) (Result, error) {
		if mf.pending.Type != ResultTypeMenu {
			return Result{}, fmt.Errorf("%w: %s", ErrNoPendingMenu, flowID)
		}

		if option == "" {
			return f.StepChooseAuthType(ctx, Back())
		}
		if !mf.pending.Menu.HasOption(option) {
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownMenuOption, option)
		}

		switch option {
		case StepIDAuthProximity:
			return f.StepAuthProximity(ctx)
		case StepIDAuthToken:
			return f.StepAuthToken(ctx, Back())
		default:
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownMenuOption, option)
		}
	})
}

// Pending returns the result the flow is currently waiting on.
func (m *Manager) Pending(flowID string) (Result, error) {
	mf, err := m.lookup(flowID)
	if err != nil {
		return Result{}, err
	}

	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.pending, nil
}

// Cancel discards a live flow. Safe to call on absent flows.
func (m *Manager) Cancel(flowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, flowID)
}

// FlowIDs returns the IDs of all live flows.
func (m *Manager) FlowIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.flows))
	for id := range m.flows {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live flows.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

// newFlow creates and registers a flow under a fresh ID.
func (m *Manager) newFlow() (*managedFlow, string) {
	id := uuid.NewString()
	opts := make([]FlowOption, 0, len(m.opts)+1)
	opts = append(opts, m.opts...)
	opts = append(opts, WithID(id))

	mf := &managedFlow{flow: NewFlow(m.repo, opts...)}

	m.mu.Lock()
	m.flows[id] = mf
	m.mu.Unlock()
	return mf, id
}

// lookup finds a live flow by ID.
func (m *Manager) lookup(flowID string) (*managedFlow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mf, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	return mf, nil
}

// invoke runs one step under the flow's mutex and records the outcome.
// Terminal results discard the flow; errors leave it live so the caller
// may retry after a transient repository failure.
func (m *Manager) invoke(ctx context.Context, flowID string, mf *managedFlow, step func(context.Context, *Flow) (Result, error)) (Result, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	res, err := step(ctx, mf.flow)
	if err != nil {
		return Result{}, err
	}

	if res.Terminal() {
		m.Cancel(flowID)
	} else {
		mf.pending = res
	}
	return res, nil
}
