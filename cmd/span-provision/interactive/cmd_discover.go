package interactive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spanpanel/span-go/pkg/discovery"
)

// cmdDiscover browses mDNS for SPAN panels and optionally provisions one.
func (p *Provisioner) cmdDiscover(ctx context.Context) {
	out := p.rl.Stdout()

	browser, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
	if err != nil {
		fmt.Fprintf(out, "Failed to start browser: %v\n", err)
		return
	}
	defer browser.Stop()

	browseCtx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	results, err := browser.Browse(browseCtx)
	if err != nil {
		fmt.Fprintf(out, "Browse failed: %v\n", err)
		return
	}

	fmt.Fprintf(out, "Browsing for %s services (%s)...\n", discovery.ServiceTypePanel, discovery.BrowseTimeout)

	var panels []*discovery.PanelService
	for svc := range results {
		panels = append(panels, svc)
		fmt.Fprintf(out, "  %d) %s  serial=%s model=%s fw=%s addr=%s\n",
			len(panels), svc.InstanceName, svc.Serial, svc.Model, svc.Firmware, svc.PreferredAddress())
	}

	if len(panels) == 0 {
		fmt.Fprintln(out, "No panels found.")
		return
	}

	answer, err := p.prompt(fmt.Sprintf("Provision one? [1-%d, empty to skip]: ", len(panels)))
	if err != nil || answer == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n < 1 || n > len(panels) {
		fmt.Fprintln(out, "No such panel.")
		return
	}

	svc := panels[n-1]
	flowID, res, err := p.mgr.StartDiscovery(ctx, svc.PreferredAddress())
	if err != nil {
		fmt.Fprintf(out, "Failed to start flow: %v\n", err)
		return
	}
	p.runFlow(ctx, flowID, res, err)
}
