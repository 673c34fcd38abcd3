package discovery

import (
	"context"
	"time"
)

// Advertiser provides mDNS service advertising capabilities.
// The panel simulator uses this to make itself discoverable.
type Advertiser interface {
	// Advertise starts advertising a panel service.
	// The service is advertised until Stop is called.
	Advertise(ctx context.Context, info *PanelInfo) error

	// Update updates TXT records for the advertised service.
	Update(info *PanelInfo) error

	// Stop stops advertising.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}
