package panel

import (
	"errors"
	"fmt"
)

// API endpoint paths.
const (
	PathStatus   = "/api/v1/status"
	PathRegister = "/api/v1/auth/register"
	PathPanel    = "/api/v1/panel"
	PathCircuits = "/api/v1/circuits"
	PathBattery  = "/api/v1/storage/soe"
)

// Client errors.
var (
	ErrUnauthorized    = errors.New("panel rejected credentials")
	ErrNoToken         = errors.New("no access token configured")
	ErrNotSpanPanel    = errors.New("host did not respond like a span panel")
	ErrStatusCode      = errors.New("unexpected status code")
	ErrCircuitNotFound = errors.New("circuit not found")
	ErrInvalidRelay    = errors.New("invalid relay state")
)

// RelayState is the position of a circuit relay, as it appears on the wire.
type RelayState string

const (
	// RelayOpen - the breaker is tripped, the circuit carries no power.
	RelayOpen RelayState = "OPEN"

	// RelayClosed - the breaker is engaged, the circuit is powered.
	RelayClosed RelayState = "CLOSED"

	// RelayUnknown - the panel has not reported a position.
	RelayUnknown RelayState = "UNKNOWN"
)

// Closed returns true if the relay is reported closed (powered).
func (r RelayState) Closed() bool {
	return r == RelayClosed
}

// Validate checks that the state is one the panel accepts in a set request.
func (r RelayState) Validate() error {
	switch r {
	case RelayOpen, RelayClosed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRelay, string(r))
	}
}

// DoorState is the panel door position from the status payload.
type DoorState string

const (
	DoorOpen    DoorState = "OPEN"
	DoorClosed  DoorState = "CLOSED"
	DoorUnknown DoorState = "UNKNOWN"
)

// CircuitPriority is the load-shedding priority of a circuit.
type CircuitPriority string

const (
	PriorityMustHave     CircuitPriority = "MUST_HAVE"
	PriorityNiceToHave   CircuitPriority = "NICE_TO_HAVE"
	PriorityNonEssential CircuitPriority = "NON_ESSENTIAL"
	PriorityUnknown      CircuitPriority = "UNKNOWN"
)

// Status is a read-only snapshot of panel identity and proximity state,
// decoded from the unauthenticated status endpoint.
type Status struct {
	// SerialNumber uniquely identifies the panel.
	SerialNumber string

	// Manufacturer is the panel manufacturer ("Span").
	Manufacturer string

	// Model is the panel model number.
	Model string

	// FirmwareVersion is the running firmware (e.g. "spanos2/r202323/04").
	FirmwareVersion string

	// UpdateStatus reports whether a firmware update is pending.
	UpdateStatus string

	// DoorState is the current door position.
	DoorState DoorState

	// ProximityProven is set on newer firmware: true once the door button
	// sequence has proven physical presence. Nil on older firmware.
	ProximityProven *bool

	// RemainingAuthUnlockButtonPresses is set on older firmware: door
	// button presses still required before the panel grants tokens.
	// Nil on newer firmware.
	RemainingAuthUnlockButtonPresses *int

	// UptimeMs is the panel uptime in milliseconds.
	UptimeMs int64

	// Network link flags.
	EthernetLink bool
	WifiLink     bool
	CellularLink bool
}

// ProximitySatisfied reports whether the panel would currently grant an
// access token, for whichever firmware generation the status came from.
func (s *Status) ProximitySatisfied() bool {
	if s.ProximityProven != nil {
		return *s.ProximityProven
	}
	if s.RemainingAuthUnlockButtonPresses != nil {
		return *s.RemainingAuthUnlockButtonPresses == 0
	}
	return false
}

// Circuit is one branch circuit of the panel.
type Circuit struct {
	// ID is the panel-assigned circuit identifier (opaque hex string).
	ID string

	// Name is the user-facing circuit name.
	Name string

	// RelayState is the current relay position.
	RelayState RelayState

	// Priority is the load-shedding priority.
	Priority CircuitPriority

	// InstantPowerW is the instantaneous power draw in watts.
	InstantPowerW float64

	// ProducedEnergyWh and ConsumedEnergyWh are lifetime accumulators.
	ProducedEnergyWh float64
	ConsumedEnergyWh float64

	// Tabs lists the physical panel tab numbers feeding this circuit.
	Tabs []int

	// IsUserControllable is false for circuits the panel refuses to
	// switch remotely (e.g. the circuit powering the panel itself).
	IsUserControllable bool

	// IsSheddable marks circuits eligible for automatic load shedding.
	IsSheddable bool

	// IsNeverBackup marks circuits excluded from backup power.
	IsNeverBackup bool
}

// IsRelayClosed returns true if the circuit relay is closed (powered).
func (c *Circuit) IsRelayClosed() bool {
	return c.RelayState.Closed()
}

// PanelData is the authenticated grid/relay snapshot.
type PanelData struct {
	// MainRelayState is the position of the main panel relay.
	MainRelayState RelayState

	// InstantGridPowerW is the instantaneous power at the grid connection.
	InstantGridPowerW float64

	// FeedthroughPowerW is the instantaneous feedthrough lug power.
	FeedthroughPowerW float64

	// CurrentRunConfig describes the panel's power source configuration
	// (e.g. "PANEL_ON_GRID").
	CurrentRunConfig string

	// DSMGridState and DSMState report the demand-side-management view
	// of the grid connection.
	DSMGridState string
	DSMState     string

	// MainMeterEnergy accumulates energy through the main meter.
	MainMeterEnergy EnergyAccum

	// FeedthroughEnergy accumulates energy through the feedthrough lugs.
	FeedthroughEnergy EnergyAccum
}

// EnergyAccum is a produced/consumed energy accumulator pair.
type EnergyAccum struct {
	ProducedEnergyWh float64 `json:"producedEnergyWh"`
	ConsumedEnergyWh float64 `json:"consumedEnergyWh"`
}

// BatteryStorage is the battery state of energy snapshot.
type BatteryStorage struct {
	// Percentage is the usable state of energy (0-100).
	Percentage float64
}

// Wire representations. The panel uses camelCase JSON with circuits keyed
// by ID and the status fields spread over software/system/network blocks.

type statusWire struct {
	Software struct {
		FirmwareVersion string `json:"firmwareVersion"`
		UpdateStatus    string `json:"updateStatus"`
		Env             string `json:"env"`
	} `json:"software"`
	System struct {
		Manufacturer                     string `json:"manufacturer"`
		Serial                           string `json:"serial"`
		Model                            string `json:"model"`
		DoorState                        string `json:"doorState"`
		ProximityProven                  *bool  `json:"proximityProven,omitempty"`
		RemainingAuthUnlockButtonPresses *int   `json:"remainingAuthUnlockButtonPresses,omitempty"`
		UptimeMs                         int64  `json:"uptime"`
	} `json:"system"`
	Network struct {
		Eth0Link bool `json:"eth0Link"`
		WlanLink bool `json:"wlanLink"`
		WwanLink bool `json:"wwanLink"`
	} `json:"network"`
}

func (w *statusWire) toStatus() *Status {
	return &Status{
		SerialNumber:                     w.System.Serial,
		Manufacturer:                     w.System.Manufacturer,
		Model:                            w.System.Model,
		FirmwareVersion:                  w.Software.FirmwareVersion,
		UpdateStatus:                     w.Software.UpdateStatus,
		DoorState:                        DoorState(w.System.DoorState),
		ProximityProven:                  w.System.ProximityProven,
		RemainingAuthUnlockButtonPresses: w.System.RemainingAuthUnlockButtonPresses,
		UptimeMs:                         w.System.UptimeMs,
		EthernetLink:                     w.Network.Eth0Link,
		WifiLink:                         w.Network.WlanLink,
		CellularLink:                     w.Network.WwanLink,
	}
}

type circuitWire struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	RelayState         RelayState `json:"relayState"`
	Priority           string     `json:"priority"`
	InstantPowerW      float64    `json:"instantPowerW"`
	ProducedEnergyWh   float64    `json:"producedEnergyWh"`
	ConsumedEnergyWh   float64    `json:"consumedEnergyWh"`
	Tabs               []int      `json:"tabs"`
	IsUserControllable bool       `json:"isUserControllable"`
	IsSheddable        bool       `json:"isSheddable"`
	IsNeverBackup      bool       `json:"isNeverBackup"`
}

func (w *circuitWire) toCircuit() Circuit {
	return Circuit{
		ID:                 w.ID,
		Name:               w.Name,
		RelayState:         w.RelayState,
		Priority:           CircuitPriority(w.Priority),
		InstantPowerW:      w.InstantPowerW,
		ProducedEnergyWh:   w.ProducedEnergyWh,
		ConsumedEnergyWh:   w.ConsumedEnergyWh,
		Tabs:               w.Tabs,
		IsUserControllable: w.IsUserControllable,
		IsSheddable:        w.IsSheddable,
		IsNeverBackup:      w.IsNeverBackup,
	}
}

type circuitsWire struct {
	Circuits map[string]circuitWire `json:"circuits"`
}

type panelWire struct {
	MainRelayState    RelayState  `json:"mainRelayState"`
	InstantGridPowerW float64     `json:"instantGridPowerW"`
	FeedthroughPowerW float64     `json:"feedthroughPowerW"`
	CurrentRunConfig  string      `json:"currentRunConfig"`
	DSMGridState      string      `json:"dsmGridState"`
	DSMState          string      `json:"dsmState"`
	MainMeterEnergy   EnergyAccum `json:"mainMeterEnergy"`
	FeedthroughEnergy EnergyAccum `json:"feedthroughEnergy"`
}

func (w *panelWire) toPanelData() *PanelData {
	return &PanelData{
		MainRelayState:    w.MainRelayState,
		InstantGridPowerW: w.InstantGridPowerW,
		FeedthroughPowerW: w.FeedthroughPowerW,
		CurrentRunConfig:  w.CurrentRunConfig,
		DSMGridState:      w.DSMGridState,
		DSMState:          w.DSMState,
		MainMeterEnergy:   w.MainMeterEnergy,
		FeedthroughEnergy: w.FeedthroughEnergy,
	}
}

type registerWire struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type tokenWire struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"`
	IATms       int64  `json:"iatMs,omitempty"`
}

type relayWire struct {
	RelayStateIn struct {
		RelayState RelayState `json:"relayState"`
	} `json:"relayStateIn"`
}

type batteryWire struct {
	SOE struct {
		Percentage float64 `json:"percentage"`
	} `json:"soe"`
}
