package panelsim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spanpanel/span-go/pkg/panel"
)

// FirmwareMode selects which firmware generation the simulator mimics.
type FirmwareMode string

const (
	// FirmwareNew reports proximity via the proximityProven flag.
	FirmwareNew FirmwareMode = "new"

	// FirmwareOld reports proximity via the remaining button press count.
	FirmwareOld FirmwareMode = "old"
)

// CircuitConfig describes one simulated branch circuit.
type CircuitConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Relay    string `yaml:"relay,omitempty"`
	Priority string `yaml:"priority,omitempty"`

	PowerW     float64 `yaml:"powerW,omitempty"`
	ProducedWh float64 `yaml:"producedWh,omitempty"`
	ConsumedWh float64 `yaml:"consumedWh,omitempty"`
	Tabs       []int   `yaml:"tabs,omitempty"`

	UserControllable *bool `yaml:"userControllable,omitempty"`
	Sheddable        bool  `yaml:"sheddable,omitempty"`
	NeverBackup      bool  `yaml:"neverBackup,omitempty"`
}

// IsUserControllable reports whether the circuit accepts relay commands.
// Unset means controllable.
func (c CircuitConfig) IsUserControllable() bool {
	return c.UserControllable == nil || *c.UserControllable
}

// BatteryConfig describes the simulated battery, if any.
type BatteryConfig struct {
	Percentage float64 `yaml:"percentage"`
}

// Config is the simulator configuration.
type Config struct {
	Serial          string       `yaml:"serial"`
	Model           string       `yaml:"model,omitempty"`
	FirmwareVersion string       `yaml:"firmwareVersion,omitempty"`
	Mode            FirmwareMode `yaml:"mode,omitempty"`

	// RequiredPresses is how many door-button presses unlock the auth
	// window. Zero keeps the default.
	RequiredPresses int `yaml:"requiredPresses,omitempty"`

	// UnlockWindow is how long the auth window stays open, as a Go
	// duration string. Empty keeps the default.
	UnlockWindow string `yaml:"unlockWindow,omitempty"`

	Circuits []CircuitConfig `yaml:"circuits,omitempty"`
	Battery  *BatteryConfig  `yaml:"battery,omitempty"`
}

// DefaultConfig returns a simulator with a plausible residential panel:
// a few controllable circuits, one feed-through, and a battery.
func DefaultConfig() *Config {
	return &Config{
		Serial:          "nj-2316-005k6",
		Model:           "00200",
		FirmwareVersion: "spanos2/r202342/04",
		Mode:            FirmwareNew,
		Circuits: []CircuitConfig{
			{ID: "c-kitchen", Name: "Kitchen Outlets", Relay: string(panel.RelayClosed), Priority: string(panel.PriorityNiceToHave), PowerW: 182.5, ConsumedWh: 20533, Tabs: []int{4}},
			{ID: "c-garage", Name: "Garage Door", Relay: string(panel.RelayClosed), Priority: string(panel.PriorityNonEssential), PowerW: 12.0, ConsumedWh: 4188, Tabs: []int{7}, Sheddable: true},
			{ID: "c-hvac", Name: "Heat Pump", Relay: string(panel.RelayClosed), Priority: string(panel.PriorityMustHave), PowerW: 2480.0, ConsumedWh: 811200, Tabs: []int{10, 12}},
			{ID: "c-ev", Name: "EV Charger", Relay: string(panel.RelayOpen), Priority: string(panel.PriorityNonEssential), PowerW: 0, ConsumedWh: 96750, Tabs: []int{14, 16}, Sheddable: true},
			{ID: "c-solar", Name: "Solar Feed", Relay: string(panel.RelayClosed), PowerW: -1650.0, ProducedWh: 442300, Tabs: []int{2}, UserControllable: boolPtr(false), NeverBackup: true},
		},
		Battery: &BatteryConfig{Percentage: 78.5},
	}
}

func boolPtr(b bool) *bool { return &b }

// LoadConfig reads and validates a simulator configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML configuration data.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies and fills in
// defaults for optional fields.
func (c *Config) Validate() error {
	if c.Serial == "" {
		return fmt.Errorf("serial is required")
	}
	if c.Model == "" {
		c.Model = "00200"
	}
	if c.FirmwareVersion == "" {
		c.FirmwareVersion = "spanos2/r202342/04"
	}

	switch c.Mode {
	case "":
		c.Mode = FirmwareNew
	case FirmwareNew, FirmwareOld:
	default:
		return fmt.Errorf("mode %q is not %q or %q", c.Mode, FirmwareNew, FirmwareOld)
	}

	if c.RequiredPresses < 0 {
		return fmt.Errorf("requiredPresses must not be negative")
	}
	if c.UnlockWindow != "" {
		d, err := time.ParseDuration(c.UnlockWindow)
		if err != nil {
			return fmt.Errorf("unlockWindow: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("unlockWindow must be positive")
		}
	}

	seen := make(map[string]bool, len(c.Circuits))
	for i := range c.Circuits {
		cc := &c.Circuits[i]
		if cc.ID == "" {
			return fmt.Errorf("circuit %d: id is required", i)
		}
		if seen[cc.ID] {
			return fmt.Errorf("circuit %q: duplicate id", cc.ID)
		}
		seen[cc.ID] = true
		if cc.Name == "" {
			cc.Name = cc.ID
		}

		switch panel.RelayState(cc.Relay) {
		case "":
			cc.Relay = string(panel.RelayClosed)
		case panel.RelayOpen, panel.RelayClosed:
		default:
			return fmt.Errorf("circuit %q: relay %q is not %q or %q",
				cc.ID, cc.Relay, panel.RelayOpen, panel.RelayClosed)
		}

		switch panel.CircuitPriority(cc.Priority) {
		case "":
			cc.Priority = string(panel.PriorityUnknown)
		case panel.PriorityMustHave, panel.PriorityNiceToHave, panel.PriorityNonEssential, panel.PriorityUnknown:
		default:
			return fmt.Errorf("circuit %q: unknown priority %q", cc.ID, cc.Priority)
		}
	}

	if c.Battery != nil {
		if c.Battery.Percentage < 0 || c.Battery.Percentage > 100 {
			return fmt.Errorf("battery percentage %.1f is out of range", c.Battery.Percentage)
		}
	}
	return nil
}

// unlockDuration returns the configured unlock window, or zero when the
// default applies. Validate has already checked the format.
func (c *Config) unlockDuration() time.Duration {
	if c.UnlockWindow == "" {
		return 0
	}
	d, err := time.ParseDuration(c.UnlockWindow)
	if err != nil {
		return 0
	}
	return d
}
