package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device is a provisioning session found on the network
type Device struct {
	// Name is the mDNS instance name, which is also the SoftAP name (e.g., "zubIOT_ABCDEF")
	Name string

	// Suffix is the MAC-derived part of Name (e.g., "ABCDEF")
	Suffix string

	// Hostname is the host that answered (e.g., "zub-dev.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the session HTTP port
	Port int

	// SessionID is the session ID from the TXT record
	SessionID string

	// Secure reports whether the session requires a proof of possession
	Secure bool

	// Metadata contains the raw TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable description of the device
func (d *Device) String() string {
	sec := "open"
	if d.Secure {
		sec = "PoP"
	}
	return fmt.Sprintf("%s (%s) at %s:%d", d.Name, sec, d.IP, d.Port)
}

// BaseURL returns the session base URL
func (d *Device) BaseURL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a TXT value by key, or "" if absent
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

func (d *Device) key() string {
	if d.SessionID != "" {
		return d.SessionID
	}
	return d.Name + "@" + d.IP
}
