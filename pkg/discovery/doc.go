// Package discovery implements mDNS/DNS-SD discovery for SPAN panels.
//
// Panels advertise a single service type on the local network:
//
// # Panel Discovery (_span._tcp)
//
// Instance name format: span-<serial>
// TXT records include: serial (panel serial number), and optionally
// model, fw (firmware version), and name (user-assigned panel name).
//
// The browser aggregates announcements from multiple network interfaces
// into one entry per instance name, so a panel visible on several
// interfaces is reported once with all of its addresses.
//
// # Address Handling
//
// Provisioning only talks to panels over IPv4. PreferredAddress returns
// the best address for probing (IPv4 first), and IsIPv4Address lets
// callers reject IPv6-only announcements before any network traffic.
package discovery
