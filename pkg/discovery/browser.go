package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// Browse searches for SPAN panels on the local network.
	// The channel is closed when the context is cancelled or browsing completes.
	Browse(ctx context.Context) (<-chan *PanelService, error)

	// FindBySerial searches for a specific panel by serial number.
	// Returns when found or when the context is cancelled.
	FindBySerial(ctx context.Context, serial string) (*PanelService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for browse operations.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}

// FilterFunc is a function that filters browse results.
type FilterFunc func(*PanelService) bool

// FilterBySerial returns a filter that matches the panel with the given serial.
func FilterBySerial(serial string) FilterFunc {
	return func(svc *PanelService) bool {
		return svc.Serial == serial
	}
}

// FilterIPv4Only returns a filter that matches panels reachable over IPv4.
func FilterIPv4Only() FilterFunc {
	return func(svc *PanelService) bool {
		return IsIPv4Address(svc.PreferredAddress())
	}
}

// FilterBrowseResults filters a channel of panel services.
func FilterBrowseResults(in <-chan *PanelService, filter FilterFunc) <-chan *PanelService {
	out := make(chan *PanelService)
	go func() {
		defer close(out)
		for svc := range in {
			if filter(svc) {
				out <- svc
			}
		}
	}()
	return out
}

// ServiceEntry holds raw mDNS service entry data.
// This is a helper for Browser implementations.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToPanelService converts a ServiceEntry to PanelService.
func (e *ServiceEntry) ToPanelService() (*PanelService, error) {
	txt := StringsToTXTRecords(e.Text)
	info, err := DecodePanelTXT(txt)
	if err != nil {
		return nil, err
	}

	return &PanelService{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    e.Addrs,
		Serial:       info.Serial,
		Model:        info.Model,
		Firmware:     info.Firmware,
		Name:         info.Name,
	}, nil
}
