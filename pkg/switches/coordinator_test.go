package switches

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
)

const testSerial = "nj-2316-005k6"

type relayCall struct {
	circuitID string
	state     panel.RelayState
}

// fakeAPI is an in-memory panel. Set failing to make every fetch error.
type fakeAPI struct {
	mu sync.Mutex

	status   *panel.Status
	circuits map[string]panel.Circuit
	data     *panel.PanelData
	battery  *panel.BatteryStorage

	failing     bool
	circuitsErr error

	statusCalls  int
	batteryCalls int
	relayCalls   []relayCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		status: &panel.Status{SerialNumber: testSerial},
		circuits: map[string]panel.Circuit{
			"c1": {ID: "c1", Name: "Kitchen", RelayState: panel.RelayClosed, IsUserControllable: true},
			"c2": {ID: "c2", Name: "Garage", RelayState: panel.RelayOpen, IsUserControllable: true},
			"c3": {ID: "c3", Name: "Panel Feed", RelayState: panel.RelayClosed},
		},
		data:    &panel.PanelData{MainRelayState: panel.RelayClosed},
		battery: &panel.BatteryStorage{Percentage: 81},
	}
}

func (f *fakeAPI) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeAPI) Host() string { return "10.0.0.5" }

func (f *fakeAPI) Ping(context.Context) bool { return !f.failing }

func (f *fakeAPI) StatusData(context.Context) (*panel.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.failing {
		return nil, errors.New("panel unreachable")
	}
	return f.status, nil
}

func (f *fakeAPI) AccessToken(context.Context) (string, error) {
	return "", panel.ErrUnauthorized
}

func (f *fakeAPI) Circuits(context.Context) (map[string]panel.Circuit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("panel unreachable")
	}
	if f.circuitsErr != nil {
		return nil, f.circuitsErr
	}
	out := make(map[string]panel.Circuit, len(f.circuits))
	for id, c := range f.circuits {
		out[id] = c
	}
	return out, nil
}

func (f *fakeAPI) PanelData(context.Context) (*panel.PanelData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("panel unreachable")
	}
	return f.data, nil
}

func (f *fakeAPI) BatteryStorage(context.Context) (*panel.BatteryStorage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batteryCalls++
	if f.failing {
		return nil, errors.New("panel unreachable")
	}
	return f.battery, nil
}

func (f *fakeAPI) SetRelay(_ context.Context, circuitID string, state panel.RelayState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("panel unreachable")
	}
	f.relayCalls = append(f.relayCalls, relayCall{circuitID, state})
	if c, ok := f.circuits[circuitID]; ok {
		c.RelayState = state
		f.circuits[circuitID] = c
	}
	return nil
}

func (f *fakeAPI) relayLog() []relayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relayCall(nil), f.relayCalls...)
}

func TestCoordinatorRefresh(t *testing.T) {
	api := newFakeAPI()
	coord := NewCoordinator(api, Config{})

	if snap := coord.Snapshot(); !snap.UpdatedAt.IsZero() {
		t.Fatal("Expected zero snapshot before first poll")
	}
	if coord.Healthy() {
		t.Fatal("Expected unhealthy before first poll")
	}

	if err := coord.Refresh(t.Context()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := coord.Snapshot()
	if snap.UpdatedAt.IsZero() {
		t.Error("Expected snapshot timestamp to be set")
	}
	if snap.Status == nil || snap.Status.SerialNumber != testSerial {
		t.Errorf("Unexpected status in snapshot: %+v", snap.Status)
	}
	if len(snap.Circuits) != 3 {
		t.Errorf("Expected 3 circuits, got %d", len(snap.Circuits))
	}
	if snap.Panel == nil || snap.Panel.MainRelayState != panel.RelayClosed {
		t.Errorf("Unexpected panel data: %+v", snap.Panel)
	}
	if snap.Battery != nil {
		t.Error("Expected no battery data when fetching is disabled")
	}
	if !coord.Healthy() {
		t.Error("Expected healthy after successful poll")
	}
}

func TestCoordinatorFetchBattery(t *testing.T) {
	api := newFakeAPI()
	coord := NewCoordinator(api, Config{FetchBattery: true})

	if err := coord.Refresh(t.Context()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := coord.Snapshot()
	if snap.Battery == nil || snap.Battery.Percentage != 81 {
		t.Errorf("Unexpected battery data: %+v", snap.Battery)
	}
}

func TestCoordinatorKeepsLastGoodSnapshot(t *testing.T) {
	api := newFakeAPI()
	coord := NewCoordinator(api, Config{})

	if err := coord.Refresh(t.Context()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	first := coord.Snapshot()

	// A partial fetch failure must not publish a partial snapshot
	api.mu.Lock()
	api.circuitsErr = errors.New("circuits endpoint broken")
	api.mu.Unlock()

	if err := coord.Refresh(t.Context()); err == nil {
		t.Fatal("Expected refresh to fail")
	}

	if coord.Healthy() {
		t.Error("Expected unhealthy after failed poll")
	}
	if coord.LastError() == nil {
		t.Error("Expected LastError to be set")
	}
	if got := coord.Snapshot(); !got.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("Failed poll must not replace the last good snapshot")
	}
}

func TestCoordinatorOnUpdate(t *testing.T) {
	api := newFakeAPI()
	coord := NewCoordinator(api, Config{})

	updates := make(chan Snapshot, 4)
	coord.OnUpdate(func(snap Snapshot) { updates <- snap })

	if err := coord.Refresh(t.Context()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	select {
	case snap := <-updates:
		if snap.Status.SerialNumber != testSerial {
			t.Errorf("Listener got serial %q, want %q", snap.Status.SerialNumber, testSerial)
		}
	default:
		t.Fatal("Listener was not called")
	}
}

func TestCoordinatorRunBacksOffAndRecovers(t *testing.T) {
	api := newFakeAPI()
	api.setFailing(true)

	coord := NewCoordinator(api, Config{
		Interval: 5 * time.Millisecond,
		Backoff:  BackoffConfig{Initial: time.Millisecond, Max: 4 * time.Millisecond, Multiplier: 2, Jitter: 0},
	})

	updates := make(chan Snapshot, 16)
	coord.OnUpdate(func(snap Snapshot) { updates <- snap })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	// Failing polls keep retrying on the backoff cadence
	deadline := time.After(2 * time.Second)
	for {
		api.mu.Lock()
		calls := api.statusCalls
		api.mu.Unlock()
		if calls >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Coordinator did not retry while failing")
		case <-time.After(time.Millisecond):
		}
	}
	if coord.Healthy() {
		t.Error("Expected unhealthy while panel is down")
	}

	// Panel comes back: the next poll publishes a snapshot
	api.setFailing(false)
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("Coordinator did not recover after panel came back")
	}
	if !coord.Healthy() {
		t.Error("Expected healthy after recovery")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestCoordinatorRequestRefresh(t *testing.T) {
	api := newFakeAPI()
	coord := NewCoordinator(api, Config{Interval: time.Hour})

	updates := make(chan Snapshot, 4)
	coord.OnUpdate(func(snap Snapshot) { updates <- snap })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = coord.Run(ctx) }()

	// First poll happens immediately
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("No initial poll")
	}

	// With an hour-long interval, only a nudge explains a second poll
	coord.RequestRefresh()
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("RequestRefresh did not trigger a poll")
	}
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) all() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestCoordinatorLogsHealthTransitions(t *testing.T) {
	api := newFakeAPI()
	logger := &captureLogger{}
	coord := NewCoordinator(api, Config{Logger: logger, SerialNumber: testSerial})

	// unhealthy -> healthy -> unhealthy: two transitions
	if err := coord.Refresh(t.Context()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	api.setFailing(true)
	if err := coord.Refresh(t.Context()); err == nil {
		t.Fatal("Expected refresh to fail")
	}
	// A second failure is not a transition
	if err := coord.Refresh(t.Context()); err == nil {
		t.Fatal("Expected refresh to fail")
	}

	events := logger.all()
	if len(events) != 2 {
		t.Fatalf("Expected 2 transition events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Category != log.CategoryState {
			t.Errorf("Expected state category, got %v", ev.Category)
		}
		if ev.StateChange == nil || ev.StateChange.Entity != log.StateEntityCoordinator {
			t.Errorf("Unexpected state change payload: %+v", ev.StateChange)
		}
		if ev.SerialNumber != testSerial {
			t.Errorf("Expected serial %q on event, got %q", testSerial, ev.SerialNumber)
		}
	}
	if events[0].StateChange.NewState != "polling" {
		t.Errorf("First transition should be to polling, got %q", events[0].StateChange.NewState)
	}
	if events[1].StateChange.NewState != "degraded" {
		t.Errorf("Second transition should be to degraded, got %q", events[1].StateChange.NewState)
	}
}
