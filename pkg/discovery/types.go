package discovery

import (
	"errors"
	"net"
	"strings"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypePanel is the service type advertised by SPAN panels.
	ServiceTypePanel = "_span._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the port the panel's HTTP API listens on.
	DefaultPort = 80
)

// TXT record key constants.
const (
	TXTKeySerial   = "serial" // Serial number (required)
	TXTKeyModel    = "model"  // Panel model (optional)
	TXTKeyFirmware = "fw"     // Firmware version (optional)
	TXTKeyName     = "name"   // User-assigned panel name (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// MDNSUpdateDelay is the maximum delay for mDNS updates.
	MDNSUpdateDelay = 1 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrBrowseTimeout       = errors.New("browse timeout")
)

// PanelService represents a SPAN panel found via mDNS.
type PanelService struct {
	// InstanceName is the mDNS instance name (e.g., "span-nj-2316-005k6").
	InstanceName string

	// Host is the hostname (e.g., "span-gateway.local.").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// Serial is the panel serial number (from TXT "serial").
	Serial string

	// Model is the panel model (from TXT "model").
	Model string

	// Firmware is the firmware version (from TXT "fw").
	Firmware string

	// Name is the user-assigned panel name (from TXT "name").
	Name string
}

// PreferredAddress returns the address provisioning should probe.
// IPv4 addresses win over IPv6; the hostname is a last resort.
func (s *PanelService) PreferredAddress() string {
	for _, addr := range s.Addresses {
		if IsIPv4Address(addr) {
			return addr
		}
	}
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return strings.TrimSuffix(s.Host, ".")
}

// PanelInfo contains information for advertising a panel.
type PanelInfo struct {
	// Serial is the panel serial number.
	Serial string

	// Model is the panel model.
	Model string

	// Firmware is the firmware version.
	Firmware string

	// Name is an optional user-assigned panel name.
	Name string

	// Port is the service port.
	Port uint16

	// Host is the hostname to advertise.
	Host string
}

// Validate checks if the PanelInfo is valid.
func (p *PanelInfo) Validate() error {
	if p.Serial == "" {
		return ErrMissingRequired
	}
	return nil
}

// IsIPv4Address reports whether host is a literal IPv4 address.
// Hostnames and IPv6 literals (including IPv4-mapped forms) return false.
func IsIPv4Address(host string) bool {
	if strings.Contains(host, ":") {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}
