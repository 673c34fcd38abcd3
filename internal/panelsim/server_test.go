package panelsim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
)

// eventSink captures protocol events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []log.Event
}

func (s *eventSink) Log(e log.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) all() []log.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]log.Event(nil), s.events...)
}

func newTestServer(t *testing.T, cfg *Config, opts ...Option) (*Simulator, *httptest.Server) {
	t.Helper()
	sim := newTestSim(t, cfg, opts...)
	ts := httptest.NewServer(NewServer(sim, "127.0.0.1:0").Handler())
	t.Cleanup(ts.Close)
	return sim, ts
}

func hostOf(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestServerStatusRoundTrip(t *testing.T) {
	sim, ts := newTestServer(t, testConfig())
	client := panel.NewClient(hostOf(ts))
	ctx := context.Background()

	status, err := client.StatusData(ctx)
	if err != nil {
		t.Fatalf("StatusData() error = %v", err)
	}
	if status.SerialNumber != "nj-2316-005k6" {
		t.Errorf("SerialNumber = %q", status.SerialNumber)
	}
	if status.Manufacturer != "Span" {
		t.Errorf("Manufacturer = %q", status.Manufacturer)
	}
	if status.ProximityProven == nil || *status.ProximityProven {
		t.Errorf("ProximityProven = %v, want false", status.ProximityProven)
	}
	if status.ProximitySatisfied() {
		t.Error("ProximitySatisfied() = true before any press")
	}
	if !status.EthernetLink {
		t.Error("EthernetLink = false")
	}

	unlock(sim)

	status, err = client.StatusData(ctx)
	if err != nil {
		t.Fatalf("StatusData() error = %v", err)
	}
	if !status.ProximitySatisfied() {
		t.Error("ProximitySatisfied() = false after unlock")
	}
	if status.DoorState != panel.DoorOpen {
		t.Errorf("DoorState = %q after presses, want OPEN", status.DoorState)
	}
}

func TestServerStatusOldFirmware(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = FirmwareOld
	sim, ts := newTestServer(t, cfg)
	client := panel.NewClient(hostOf(ts))
	ctx := context.Background()

	status, err := client.StatusData(ctx)
	if err != nil {
		t.Fatalf("StatusData() error = %v", err)
	}
	if status.ProximityProven != nil {
		t.Error("ProximityProven set on old firmware")
	}
	if status.RemainingAuthUnlockButtonPresses == nil || *status.RemainingAuthUnlockButtonPresses != 3 {
		t.Errorf("RemainingAuthUnlockButtonPresses = %v, want 3", status.RemainingAuthUnlockButtonPresses)
	}

	sim.PressButton()
	status, _ = client.StatusData(ctx)
	if *status.RemainingAuthUnlockButtonPresses != 2 {
		t.Errorf("remaining = %d after a press, want 2", *status.RemainingAuthUnlockButtonPresses)
	}
}

func TestServerRegisterWhileLocked(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	client := panel.NewClient(hostOf(ts))

	_, err := client.AccessToken(context.Background())
	if !errors.Is(err, panel.ErrUnauthorized) {
		t.Errorf("AccessToken() while locked error = %v, want ErrUnauthorized", err)
	}
}

func TestServerGrantAndUseToken(t *testing.T) {
	sim, ts := newTestServer(t, testConfig())
	ctx := context.Background()
	unlock(sim)

	token, err := panel.NewClient(hostOf(ts)).AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("AccessToken() returned empty token")
	}
	if len(sim.Clients()) != 1 {
		t.Errorf("Clients() has %d grants, want 1", len(sim.Clients()))
	}

	authed := panel.NewClient(hostOf(ts), panel.WithToken(token))
	if !authed.Ping(ctx) {
		t.Error("Ping() = false with valid token")
	}

	circuits, err := authed.Circuits(ctx)
	if err != nil {
		t.Fatalf("Circuits() error = %v", err)
	}
	if len(circuits) != 2 {
		t.Fatalf("Circuits() has %d entries, want 2", len(circuits))
	}
	kitchen := circuits["c1"]
	if kitchen.Name != "Kitchen" || !kitchen.IsRelayClosed() || !kitchen.IsUserControllable {
		t.Errorf("kitchen = %+v", kitchen)
	}
	if solar := circuits["c2"]; solar.IsUserControllable {
		t.Error("solar feed should not be controllable")
	}

	pd, err := authed.PanelData(ctx)
	if err != nil {
		t.Fatalf("PanelData() error = %v", err)
	}
	if pd.InstantGridPowerW != 120-800 {
		t.Errorf("InstantGridPowerW = %v", pd.InstantGridPowerW)
	}
	if pd.CurrentRunConfig != "PANEL_ON_GRID" {
		t.Errorf("CurrentRunConfig = %q", pd.CurrentRunConfig)
	}

	battery, err := authed.BatteryStorage(ctx)
	if err != nil {
		t.Fatalf("BatteryStorage() error = %v", err)
	}
	if battery.Percentage != 66 {
		t.Errorf("Percentage = %v, want 66", battery.Percentage)
	}
}

func TestServerRejectsBadToken(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	ctx := context.Background()

	authed := panel.NewClient(hostOf(ts), panel.WithToken("garbage"))
	if _, err := authed.Circuits(ctx); !errors.Is(err, panel.ErrUnauthorized) {
		t.Errorf("Circuits() with bad token error = %v, want ErrUnauthorized", err)
	}
	if authed.Ping(ctx) {
		t.Error("Ping() = true with bad token")
	}

	// No Authorization header at all
	resp, err := http.Get(ts.URL + panel.PathPanel)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bare GET %s = %d, want 401", panel.PathPanel, resp.StatusCode)
	}
}

func TestServerSetRelay(t *testing.T) {
	sim, ts := newTestServer(t, testConfig())
	ctx := context.Background()
	unlock(sim)

	token, err := panel.NewClient(hostOf(ts)).AccessToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	authed := panel.NewClient(hostOf(ts), panel.WithToken(token))

	if err := authed.SetRelay(ctx, "c1", panel.RelayOpen); err != nil {
		t.Fatalf("SetRelay() error = %v", err)
	}

	circuits, err := authed.Circuits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if circuits["c1"].RelayState != panel.RelayOpen {
		t.Errorf("c1 relay = %q after SetRelay, want OPEN", circuits["c1"].RelayState)
	}
	if circuits["c1"].InstantPowerW != 0 {
		t.Errorf("c1 power = %v with open relay, want 0", circuits["c1"].InstantPowerW)
	}

	if err := authed.SetRelay(ctx, "ghost", panel.RelayOpen); !errors.Is(err, panel.ErrCircuitNotFound) {
		t.Errorf("SetRelay(ghost) error = %v, want ErrCircuitNotFound", err)
	}
	if err := authed.SetRelay(ctx, "c2", panel.RelayOpen); !errors.Is(err, panel.ErrStatusCode) {
		t.Errorf("SetRelay(fixed circuit) error = %v, want ErrStatusCode", err)
	}
}

func TestServerBatteryAbsent(t *testing.T) {
	cfg := testConfig()
	cfg.Battery = nil
	sim, ts := newTestServer(t, cfg)
	ctx := context.Background()
	unlock(sim)

	token, err := panel.NewClient(hostOf(ts)).AccessToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	authed := panel.NewClient(hostOf(ts), panel.WithToken(token))

	if _, err := authed.BatteryStorage(ctx); err == nil {
		t.Error("BatteryStorage() error = nil without battery, want error")
	}
}

func TestServerWindowRelocksDuringSession(t *testing.T) {
	cfg := testConfig()
	cfg.UnlockWindow = "60ms"
	sim, ts := newTestServer(t, cfg)
	ctx := context.Background()
	unlock(sim)

	token, err := panel.NewClient(hostOf(ts)).AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}

	// Let the window expire
	time.Sleep(150 * time.Millisecond)
	if sim.WindowUnlocked() {
		t.Fatal("window still unlocked")
	}

	// Granted tokens keep working, new grants are refused
	authed := panel.NewClient(hostOf(ts), panel.WithToken(token))
	if _, err := authed.Circuits(ctx); err != nil {
		t.Errorf("Circuits() after relock error = %v, token should stay valid", err)
	}
	if _, err := panel.NewClient(hostOf(ts)).AccessToken(ctx); !errors.Is(err, panel.ErrUnauthorized) {
		t.Errorf("AccessToken() after relock error = %v, want ErrUnauthorized", err)
	}
}

func TestServerStateSurvivesRestart(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	sim, ts := newTestServer(t, testConfig(), WithStateStore(store))
	unlock(sim)
	token, err := panel.NewClient(hostOf(ts)).AccessToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	authed := panel.NewClient(hostOf(ts), panel.WithToken(token))
	if err := authed.SetRelay(ctx, "c1", panel.RelayOpen); err != nil {
		t.Fatal(err)
	}
	ts.Close()

	// Same serial and store: the derived signing key and state line up
	_, ts2 := newTestServer(t, testConfig(), WithStateStore(store))
	authed2 := panel.NewClient(hostOf(ts2), panel.WithToken(token))

	circuits, err := authed2.Circuits(ctx)
	if err != nil {
		t.Fatalf("Circuits() after restart error = %v", err)
	}
	if circuits["c1"].RelayState != panel.RelayOpen {
		t.Errorf("c1 relay = %q after restart, want restored OPEN", circuits["c1"].RelayState)
	}
}

func TestServerMethodChecks(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, err := http.Post(ts.URL+panel.PathStatus, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST %s = %d, want 405", panel.PathStatus, resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + panel.PathRegister)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET %s = %d, want 405", panel.PathRegister, resp.StatusCode)
	}
}

func TestServerEmitsEvents(t *testing.T) {
	sink := &eventSink{}
	sim, ts := newTestServer(t, testConfig(), WithEventLogger(sink))
	ctx := context.Background()

	if _, err := panel.NewClient(hostOf(ts)).StatusData(ctx); err != nil {
		t.Fatal(err)
	}
	unlock(sim)
	sim.LockWindow()

	var httpEvents, stateEvents int
	for _, e := range sink.all() {
		switch e.Category {
		case log.CategoryHTTP:
			httpEvents++
			if e.HTTPCall == nil || e.HTTPCall.Method != http.MethodGet || e.HTTPCall.Path != panel.PathStatus {
				t.Errorf("HTTP event = %+v", e.HTTPCall)
			}
			if e.HTTPCall.StatusCode != http.StatusOK {
				t.Errorf("HTTP event status = %d, want 200", e.HTTPCall.StatusCode)
			}
		case log.CategoryState:
			stateEvents++
			if e.StateChange == nil || e.StateChange.Entity != log.StateEntityAuthWindow {
				t.Errorf("state event = %+v", e.StateChange)
			}
		}
		if e.SerialNumber != "nj-2316-005k6" {
			t.Errorf("event serial = %q", e.SerialNumber)
		}
	}

	if httpEvents != 1 {
		t.Errorf("got %d HTTP events, want 1", httpEvents)
	}
	// Unlock and relock
	if stateEvents != 2 {
		t.Errorf("got %d state events, want 2", stateEvents)
	}
}
