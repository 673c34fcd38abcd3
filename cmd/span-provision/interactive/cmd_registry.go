package interactive

import (
	"fmt"

	"github.com/spanpanel/span-go/pkg/options"
	"github.com/spanpanel/span-go/pkg/provision"
)

// cmdEntries lists all provisioned panels.
func (p *Provisioner) cmdEntries() {
	out := p.rl.Stdout()

	entries, err := p.repo.All()
	if err != nil {
		fmt.Fprintf(out, "Failed to list entries: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No panels provisioned. Use 'add <host>' or 'discover'.")
		return
	}

	fmt.Fprintf(out, "%-16s %-16s %-8s %s\n", "SERIAL", "HOST", "TOKEN", "PROVISIONED")
	for _, e := range entries {
		token := "-"
		if e.AccessToken != "" {
			token = "yes"
		}
		fmt.Fprintf(out, "%-16s %-16s %-8s %s\n",
			e.UniqueID, e.Host, token, e.CreatedAt.Format("2006-01-02 15:04"))
	}
}

// cmdOptions edits the stored options of one panel through the options
// flow, re-rendering the form until the submission validates.
func (p *Provisioner) cmdOptions(args []string) {
	out := p.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: options <serial>")
		return
	}

	flow := provision.NewOptionsFlow(p.repo, args[0])
	res, err := flow.Init(provision.Back())
	if err != nil {
		fmt.Fprintf(out, "Failed to load options: %v\n", err)
		return
	}

	for res.Type == provision.ResultTypeForm {
		form := res.Form
		printFormErrors(out, form.Errors)

		values, ok := p.promptOptions(form.Placeholders)
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return
		}

		res, err = flow.Init(provision.Submit(values))
		if err != nil {
			fmt.Fprintf(out, "Failed to store options: %v\n", err)
			return
		}
	}

	if res.Type == provision.ResultTypeEntry {
		fmt.Fprintf(out, "Options updated for %s\n", res.Entry.UniqueID)
		// Poll timing may have changed; restart any running poller.
		p.stopPoller(res.Entry.UniqueID)
	}
}

// promptOptions asks for each option key in turn, prefilled with the
// current value. Empty input keeps the current value; 'cancel' aborts.
func (p *Provisioner) promptOptions(current map[string]string) (map[string]string, bool) {
	keys := []struct {
		key   string
		label string
	}{
		{options.KeyScanInterval, "scan interval (seconds)"},
		{options.KeyBatteryEnable, "battery percentage sensor (true/false)"},
		{options.KeyInverterEnable, "solar inverter circuit (true/false)"},
		{options.KeyInverterLeg1, "inverter leg 1 tab"},
		{options.KeyInverterLeg2, "inverter leg 2 tab"},
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		answer, err := p.prompt(fmt.Sprintf("  %s [%s]: ", k.label, current[k.key]))
		if err != nil || answer == "cancel" {
			return nil, false
		}
		if answer == "" {
			answer = current[k.key]
		}
		values[k.key] = answer
	}
	return values, true
}

// cmdRemove deletes a provisioned panel.
func (p *Provisioner) cmdRemove(args []string) {
	out := p.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: remove <serial>")
		return
	}

	p.stopPoller(args[0])
	if err := p.repo.Delete(args[0]); err != nil {
		fmt.Fprintf(out, "Failed to remove: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Removed %s\n", args[0])
}

// cmdStatus summarizes registry and runtime state.
func (p *Provisioner) cmdStatus() {
	out := p.rl.Stdout()

	entries, err := p.repo.All()
	if err != nil {
		fmt.Fprintf(out, "Failed to read registry: %v\n", err)
		return
	}

	p.mu.Lock()
	polling := len(p.pollers)
	p.mu.Unlock()

	fmt.Fprintf(out, "Provisioned panels: %d\n", len(entries))
	fmt.Fprintf(out, "Pending flows:      %d\n", p.mgr.Len())
	fmt.Fprintf(out, "Active pollers:     %d\n", polling)
}
