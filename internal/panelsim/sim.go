// Package panelsim implements a SPAN panel simulator: the REST surface,
// auth window, and token grants of a real panel, backed by configurable
// circuits. It exists so provisioning and polling can be exercised end
// to end without panel hardware.
package panelsim

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
)

// Simulator errors.
var (
	// ErrWindowLocked is returned when a registration arrives while the
	// auth window is locked.
	ErrWindowLocked = errors.New("auth window is locked")

	// ErrNotControllable is returned for relay commands against circuits
	// the panel refuses to switch.
	ErrNotControllable = errors.New("circuit is not user controllable")

	// ErrNoBattery is returned when no battery is configured.
	ErrNoBattery = errors.New("no battery configured")
)

type simCircuit struct {
	cfg   CircuitConfig
	relay panel.RelayState
}

// Simulator holds the mutable state of one simulated panel.
type Simulator struct {
	cfg    *Config
	window *AuthWindow
	issuer *TokenIssuer
	store  *StateStore
	logger *slog.Logger
	events log.Logger
	secret []byte

	mu        sync.Mutex
	circuits  map[string]*simCircuit
	clients   []RegisteredClient
	doorState panel.DoorState
	startedAt time.Time
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithStateStore persists token grants and relay positions across
// restarts.
func WithStateStore(store *StateStore) Option {
	return func(s *Simulator) { s.store = store }
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// WithEventLogger records protocol events (window transitions, HTTP
// calls) to the given event log.
func WithEventLogger(events log.Logger) Option {
	return func(s *Simulator) { s.events = events }
}

// WithSecret sets the token signing secret. Without it the secret is
// derived from the serial, which keeps tokens stable across restarts of
// the same panel but offers no security.
func WithSecret(secret []byte) Option {
	return func(s *Simulator) { s.secret = secret }
}

// NewSimulator builds a simulator from the configuration, restoring any
// persisted state.
func NewSimulator(cfg *Config, opts ...Option) (*Simulator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:       cfg,
		window:    NewAuthWindow(),
		logger:    slog.Default(),
		events:    log.NoopLogger{},
		circuits:  make(map[string]*simCircuit, len(cfg.Circuits)),
		doorState: panel.DoorClosed,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.RequiredPresses > 0 {
		s.window.SetRequiredPresses(cfg.RequiredPresses)
	}
	if d := cfg.unlockDuration(); d > 0 {
		s.window.SetUnlockDuration(d)
	}
	s.window.OnStateChange(s.emitWindowChange)

	if len(s.secret) == 0 {
		s.secret = []byte("span-sim/" + cfg.Serial)
	}
	issuer, err := NewTokenIssuer(s.secret, cfg.Serial)
	if err != nil {
		return nil, err
	}
	s.issuer = issuer

	for _, cc := range cfg.Circuits {
		s.circuits[cc.ID] = &simCircuit{cfg: cc, relay: panel.RelayState(cc.Relay)}
	}

	if s.store != nil {
		if err := s.restore(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// restore applies persisted relay positions and client grants.
func (s *Simulator) restore() error {
	state, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if state == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients = state.Clients
	for id, relay := range state.Relays {
		sc, ok := s.circuits[id]
		if !ok {
			continue
		}
		if relay == panel.RelayOpen || relay == panel.RelayClosed {
			sc.relay = relay
		}
	}
	s.logger.Info("restored simulator state",
		"clients", len(s.clients), "path", s.store.Path())
	return nil
}

// persist writes the current grants and relay positions. Callers must
// not hold s.mu.
func (s *Simulator) persist() {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	state := &SimState{
		Clients: append([]RegisteredClient(nil), s.clients...),
		Relays:  make(map[string]panel.RelayState, len(s.circuits)),
	}
	for id, sc := range s.circuits {
		state.Relays[id] = sc.relay
	}
	s.mu.Unlock()

	if err := s.store.Save(state); err != nil {
		s.logger.Warn("failed to persist simulator state", "error", err)
	}
}

// emitWindowChange records auth window transitions in the event log.
func (s *Simulator) emitWindowChange(oldState, newState WindowState) {
	reason := "auth window closed"
	if newState == WindowUnlocked {
		reason = "door button sequence complete"
	}
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		Category:     log.CategoryState,
		SerialNumber: s.cfg.Serial,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityAuthWindow,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

// Serial returns the panel serial number.
func (s *Simulator) Serial() string { return s.cfg.Serial }

// Mode returns the firmware generation being simulated.
func (s *Simulator) Mode() FirmwareMode { return s.cfg.Mode }

// PressButton registers one door-button press. Pressing the button
// implies the door is open.
func (s *Simulator) PressButton() (remaining int, unlocked bool) {
	s.mu.Lock()
	s.doorState = panel.DoorOpen
	s.mu.Unlock()

	remaining, unlocked = s.window.PressButton()
	s.logger.Info("door button pressed", "remaining", remaining, "unlocked", unlocked)
	return remaining, unlocked
}

// LockWindow relocks the auth window and closes the door.
func (s *Simulator) LockWindow() {
	s.mu.Lock()
	s.doorState = panel.DoorClosed
	s.mu.Unlock()

	s.window.Lock()
	s.logger.Info("auth window locked")
}

// WindowUnlocked reports whether the panel currently grants tokens.
func (s *Simulator) WindowUnlocked() bool {
	return s.window.IsUnlocked()
}

// RemainingPresses returns how many door-button presses are still
// needed to unlock the window.
func (s *Simulator) RemainingPresses() int {
	return s.window.Remaining()
}

// WindowRemainingTime returns the time until the unlocked window
// relocks itself. Zero when locked.
func (s *Simulator) WindowRemainingTime() time.Duration {
	return s.window.RemainingTime()
}

// Status returns the panel status in the shape the status endpoint
// reports, with proximity fields matched to the firmware mode.
func (s *Simulator) Status() *panel.Status {
	s.mu.Lock()
	door := s.doorState
	s.mu.Unlock()

	status := &panel.Status{
		SerialNumber:    s.cfg.Serial,
		Manufacturer:    "Span",
		Model:           s.cfg.Model,
		FirmwareVersion: s.cfg.FirmwareVersion,
		UpdateStatus:    "IDLE",
		DoorState:       door,
		UptimeMs:        time.Since(s.startedAt).Milliseconds(),
		EthernetLink:    true,
	}

	switch s.cfg.Mode {
	case FirmwareOld:
		remaining := s.window.Remaining()
		status.RemainingAuthUnlockButtonPresses = &remaining
	default:
		proven := s.window.IsUnlocked()
		status.ProximityProven = &proven
	}
	return status
}

// Circuits returns all circuits sorted by ID.
func (s *Simulator) Circuits() []panel.Circuit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]panel.Circuit, 0, len(s.circuits))
	for _, sc := range s.circuits {
		out = append(out, sc.toCircuit())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Circuit returns one circuit by ID.
func (s *Simulator) Circuit(id string) (panel.Circuit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.circuits[id]
	if !ok {
		return panel.Circuit{}, false
	}
	return sc.toCircuit(), true
}

// SetRelay drives one circuit relay.
func (s *Simulator) SetRelay(id string, state panel.RelayState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	sc, ok := s.circuits[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", panel.ErrCircuitNotFound, id)
	}
	if !sc.cfg.IsUserControllable() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotControllable, id)
	}
	sc.relay = state
	s.mu.Unlock()

	s.logger.Info("relay set", "circuit", id, "state", string(state))
	s.persist()
	return nil
}

// PanelData returns the grid snapshot. Grid power is the sum of the
// instantaneous power of all powered circuits.
func (s *Simulator) PanelData() *panel.PanelData {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gridW, producedWh, consumedWh float64
	for _, sc := range s.circuits {
		if sc.relay.Closed() {
			gridW += sc.cfg.PowerW
		}
		producedWh += sc.cfg.ProducedWh
		consumedWh += sc.cfg.ConsumedWh
	}

	return &panel.PanelData{
		MainRelayState:    panel.RelayClosed,
		InstantGridPowerW: gridW,
		CurrentRunConfig:  "PANEL_ON_GRID",
		DSMGridState:      "DSM_GRID_UP",
		DSMState:          "DSM_ON_GRID",
		MainMeterEnergy: panel.EnergyAccum{
			ProducedEnergyWh: producedWh,
			ConsumedEnergyWh: consumedWh,
		},
	}
}

// Battery returns the battery state of energy.
func (s *Simulator) Battery() (*panel.BatteryStorage, error) {
	if s.cfg.Battery == nil {
		return nil, ErrNoBattery
	}
	return &panel.BatteryStorage{Percentage: s.cfg.Battery.Percentage}, nil
}

// Register grants an access token to the named client. The auth window
// must be unlocked. Re-registering a name replaces its grant record.
func (s *Simulator) Register(name, description string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("client name is required")
	}
	if !s.window.IsUnlocked() {
		return "", ErrWindowLocked
	}

	token, err := s.issuer.Issue(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	client := RegisteredClient{Name: name, Description: description, IssuedAt: time.Now()}
	replaced := false
	for i := range s.clients {
		if s.clients[i].Name == name {
			s.clients[i] = client
			replaced = true
			break
		}
	}
	if !replaced {
		s.clients = append(s.clients, client)
	}
	s.mu.Unlock()

	s.logger.Info("access token granted", "client", name)
	s.persist()
	return token, nil
}

// Authorize verifies a presented token and returns the client it was
// issued to.
func (s *Simulator) Authorize(token string) (string, error) {
	return s.issuer.Verify(token)
}

// Clients returns the recorded token grants.
func (s *Simulator) Clients() []RegisteredClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RegisteredClient(nil), s.clients...)
}

func (sc *simCircuit) toCircuit() panel.Circuit {
	powerW := sc.cfg.PowerW
	if !sc.relay.Closed() {
		powerW = 0
	}
	return panel.Circuit{
		ID:                 sc.cfg.ID,
		Name:               sc.cfg.Name,
		RelayState:         sc.relay,
		Priority:           panel.CircuitPriority(sc.cfg.Priority),
		InstantPowerW:      powerW,
		ProducedEnergyWh:   sc.cfg.ProducedWh,
		ConsumedEnergyWh:   sc.cfg.ConsumedWh,
		Tabs:               sc.cfg.Tabs,
		IsUserControllable: sc.cfg.IsUserControllable(),
		IsSheddable:        sc.cfg.Sheddable,
		IsNeverBackup:      sc.cfg.NeverBackup,
	}
}
