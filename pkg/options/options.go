// Package options models the post-setup options of a provisioned panel
// entry: polling cadence and the optional solar/battery synthesis toggles.
//
// Options travel as string key/value maps at the form boundary and as a
// typed struct everywhere else. Defaults apply per key: a stored options
// set that never mentions a key keeps that key's default, while explicit
// values round-trip unchanged.
package options

import (
	"errors"
	"fmt"
	"strconv"
)

// Option keys as they appear in forms and stored entry options.
const (
	// KeyScanInterval is the polling interval in seconds.
	KeyScanInterval = "scan_interval"

	// KeyBatteryEnable toggles the synthetic storage battery percentage.
	KeyBatteryEnable = "enable_battery_percentage"

	// KeyInverterEnable toggles the synthetic solar inverter circuit.
	KeyInverterEnable = "enable_solar_circuit"

	// KeyInverterLeg1 is the panel tab number of the first inverter leg.
	KeyInverterLeg1 = "inverter_leg1"

	// KeyInverterLeg2 is the panel tab number of the second inverter leg.
	KeyInverterLeg2 = "inverter_leg2"
)

// Limits and defaults.
const (
	// DefaultScanInterval is the default polling interval in seconds.
	DefaultScanInterval = 15

	// MinScanInterval is the minimum allowed polling interval in seconds.
	MinScanInterval = 5

	// MinInverterLeg is the minimum leg tab number (0 = unmapped).
	MinInverterLeg = 0
)

// Options errors.
var (
	ErrScanIntervalTooLow = errors.New("scan interval below minimum")
	ErrNegativeLeg        = errors.New("inverter leg must not be negative")
	ErrInvalidValue       = errors.New("invalid option value")
)

// Options holds the post-setup options of a panel entry.
type Options struct {
	// ScanInterval is the polling interval in seconds.
	ScanInterval int

	// EnableBatteryPercentage enables the synthetic battery sensor.
	EnableBatteryPercentage bool

	// EnableSolarCircuit enables the synthetic solar inverter circuit.
	EnableSolarCircuit bool

	// InverterLeg1 is the tab number of the first inverter leg (0 = unmapped).
	InverterLeg1 int

	// InverterLeg2 is the tab number of the second inverter leg (0 = unmapped).
	InverterLeg2 int
}

// Defaults returns the default options.
func Defaults() Options {
	return Options{
		ScanInterval: DefaultScanInterval,
	}
}

// Validate checks option values against their allowed ranges.
func (o Options) Validate() error {
	if o.ScanInterval < MinScanInterval {
		return fmt.Errorf("%w: %d < %d", ErrScanIntervalTooLow, o.ScanInterval, MinScanInterval)
	}
	if o.InverterLeg1 < MinInverterLeg {
		return fmt.Errorf("%w: leg1 = %d", ErrNegativeLeg, o.InverterLeg1)
	}
	if o.InverterLeg2 < MinInverterLeg {
		return fmt.Errorf("%w: leg2 = %d", ErrNegativeLeg, o.InverterLeg2)
	}
	return nil
}

// FromMap builds Options from form values. Absent keys take their defaults;
// present keys must parse (integers are coerced from their string form).
func FromMap(values map[string]string) (Options, error) {
	o := Defaults()

	if v, ok := values[KeyScanInterval]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyScanInterval, v)
		}
		o.ScanInterval = n
	}

	if v, ok := values[KeyBatteryEnable]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyBatteryEnable, v)
		}
		o.EnableBatteryPercentage = b
	}

	if v, ok := values[KeyInverterEnable]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyInverterEnable, v)
		}
		o.EnableSolarCircuit = b
	}

	if v, ok := values[KeyInverterLeg1]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyInverterLeg1, v)
		}
		o.InverterLeg1 = n
	}

	if v, ok := values[KeyInverterLeg2]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyInverterLeg2, v)
		}
		o.InverterLeg2 = n
	}

	return o, nil
}

// ToMap renders the options as form values.
func (o Options) ToMap() map[string]string {
	return map[string]string{
		KeyScanInterval:   strconv.Itoa(o.ScanInterval),
		KeyBatteryEnable:  strconv.FormatBool(o.EnableBatteryPercentage),
		KeyInverterEnable: strconv.FormatBool(o.EnableSolarCircuit),
		KeyInverterLeg1:   strconv.Itoa(o.InverterLeg1),
		KeyInverterLeg2:   strconv.Itoa(o.InverterLeg2),
	}
}
