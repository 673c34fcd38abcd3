package interactive

import (
	"context"
	"fmt"
	"time"

	"github.com/spanpanel/span-go/pkg/panel"
	"github.com/spanpanel/span-go/pkg/switches"
)

// poller returns the running coordinator for a panel, starting one on
// first use. The coordinator polls in the background until the panel is
// removed or the provisioner shuts down.
func (p *Provisioner) poller(ctx context.Context, serial string) (*panelPoller, error) {
	p.mu.Lock()
	if pp, ok := p.pollers[serial]; ok {
		p.mu.Unlock()
		return pp, nil
	}
	p.mu.Unlock()

	entry, err := p.repo.FindByUniqueID(serial)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("no panel with serial %s (see 'entries')", serial)
	}
	if entry.AccessToken == "" {
		return nil, fmt.Errorf("panel %s has no access token (run 'reauth %s')", serial, serial)
	}

	api := panel.NewClient(entry.Host,
		panel.WithToken(entry.AccessToken),
		panel.WithTimeout(p.config.Timeout),
	)

	coord := switches.NewCoordinator(api, switches.Config{
		Interval:     time.Duration(entry.Options.ScanInterval) * time.Second,
		FetchBattery: entry.Options.EnableBatteryPercentage,
		Logger:       p.config.Events,
		SerialNumber: entry.UniqueID,
	})

	// Fetch synchronously once so the first command has data to show.
	if err := coord.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("polling %s: %w", entry.Host, err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	pp := &panelPoller{coord: coord, cancel: cancel}
	go func() { _ = coord.Run(pollCtx) }()

	p.mu.Lock()
	p.pollers[serial] = pp
	p.mu.Unlock()
	return pp, nil
}

// stopPoller cancels and forgets the poller for a panel, if any.
func (p *Provisioner) stopPoller(serial string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pp, ok := p.pollers[serial]; ok {
		pp.cancel()
		delete(p.pollers, serial)
	}
}

// cmdCircuits shows the circuits of a panel as switch entities.
func (p *Provisioner) cmdCircuits(ctx context.Context, args []string) {
	out := p.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: circuits <serial>")
		return
	}

	pp, err := p.poller(ctx, args[0])
	if err != nil {
		fmt.Fprintf(out, "Failed: %v\n", err)
		return
	}

	snap := pp.coord.Snapshot()
	if snap.Panel != nil {
		fmt.Fprintf(out, "Grid power: %.1f W", snap.Panel.InstantGridPowerW)
		if snap.Battery != nil {
			fmt.Fprintf(out, "  Battery: %.1f%%", snap.Battery.Percentage)
		}
		fmt.Fprintln(out)
	}

	sws := switches.BuildSwitches(pp.coord)
	if len(sws) == 0 {
		fmt.Fprintln(out, "No controllable circuits.")
		return
	}

	fmt.Fprintf(out, "%-12s %-24s %-6s %s\n", "CIRCUIT", "NAME", "STATE", "POWER")
	for _, sw := range sws {
		state := "off"
		if sw.IsOn() {
			state = "on"
		}
		var power float64
		if c, ok := snap.Circuits[sw.CircuitID()]; ok {
			power = c.InstantPowerW
		}
		fmt.Fprintf(out, "%-12s %-24s %-6s %.1f W\n", sw.CircuitID(), sw.Name(), state, power)
	}
}

// cmdRelay turns one circuit breaker on or off.
func (p *Provisioner) cmdRelay(ctx context.Context, args []string, on bool) {
	out := p.rl.Stdout()
	verb := "on"
	if !on {
		verb = "off"
	}
	if len(args) < 2 {
		fmt.Fprintf(out, "Usage: %s <serial> <circuit>\n", verb)
		return
	}

	pp, err := p.poller(ctx, args[0])
	if err != nil {
		fmt.Fprintf(out, "Failed: %v\n", err)
		return
	}

	var target *switches.CircuitSwitch
	for _, sw := range switches.BuildSwitches(pp.coord) {
		if sw.CircuitID() == args[1] {
			target = sw
			break
		}
	}
	if target == nil {
		fmt.Fprintf(out, "No controllable circuit %s on %s\n", args[1], args[0])
		return
	}

	if on {
		err = target.TurnOn(ctx)
	} else {
		err = target.TurnOff(ctx)
	}
	if err != nil {
		fmt.Fprintf(out, "Failed to turn %s %s: %v\n", args[1], verb, err)
		return
	}
	fmt.Fprintf(out, "Turned %s %s\n", target.Name(), verb)
}
