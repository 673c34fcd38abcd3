package switches

import (
	"context"
	"fmt"
	"sort"

	"github.com/spanpanel/span-go/pkg/panel"
)

// CircuitSwitch exposes one user-controllable circuit as a switch. Reads
// come from the coordinator's cached snapshot; only relay commands reach
// the panel, each followed by a refresh nudge so the cache catches up.
type CircuitSwitch struct {
	coord     *Coordinator
	serial    string
	circuitID string
	name      string
}

// UniqueID returns the stable entity ID for this circuit's relay.
func (s *CircuitSwitch) UniqueID() string {
	return fmt.Sprintf("span_%s_relay_%s", s.serial, s.circuitID)
}

// CircuitID returns the panel-assigned circuit identifier.
func (s *CircuitSwitch) CircuitID() string { return s.circuitID }

// Name returns the display name, following circuit renames on the panel.
func (s *CircuitSwitch) Name() string {
	if circuit, ok := s.circuit(); ok {
		return circuit.Name + " Breaker"
	}
	return s.name + " Breaker"
}

// IsOn reports whether the relay is closed in the last snapshot.
func (s *CircuitSwitch) IsOn() bool {
	circuit, ok := s.circuit()
	return ok && circuit.IsRelayClosed()
}

// Available reports whether the coordinator is healthy and the circuit
// still exists on the panel.
func (s *CircuitSwitch) Available() bool {
	if !s.coord.Healthy() {
		return false
	}
	_, ok := s.circuit()
	return ok
}

// TurnOn closes the relay and nudges a refresh.
func (s *CircuitSwitch) TurnOn(ctx context.Context) error {
	return s.setRelay(ctx, panel.RelayClosed)
}

// TurnOff opens the relay and nudges a refresh.
func (s *CircuitSwitch) TurnOff(ctx context.Context) error {
	return s.setRelay(ctx, panel.RelayOpen)
}

func (s *CircuitSwitch) setRelay(ctx context.Context, state panel.RelayState) error {
	if err := s.coord.api.SetRelay(ctx, s.circuitID, state); err != nil {
		return fmt.Errorf("setting relay %s: %w", s.circuitID, err)
	}
	s.coord.RequestRefresh()
	return nil
}

func (s *CircuitSwitch) circuit() (panel.Circuit, bool) {
	snap := s.coord.Snapshot()
	circuit, ok := snap.Circuits[s.circuitID]
	return circuit, ok
}

// BuildSwitches creates a switch for every user-controllable circuit in
// the coordinator's current snapshot, ordered by circuit name. Circuits
// the panel refuses to switch remotely get no entity.
func BuildSwitches(coord *Coordinator) []*CircuitSwitch {
	snap := coord.Snapshot()
	if snap.Status == nil {
		return nil
	}

	var out []*CircuitSwitch
	for id, circuit := range snap.Circuits {
		if !circuit.IsUserControllable {
			continue
		}
		out = append(out, &CircuitSwitch{
			coord:     coord,
			serial:    snap.Status.SerialNumber,
			circuitID: id,
			name:      circuit.Name,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].name != out[j].name {
			return out[i].name < out[j].name
		}
		return out[i].circuitID < out[j].circuitID
	})
	return out
}
