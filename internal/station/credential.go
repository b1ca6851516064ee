package station

import (
	"fmt"
	"net"
)

const (
	// MaxIdentifierLen is the longest network identifier the radio accepts (802.11 SSID).
	MaxIdentifierLen = 32

	// MaxSecretLen is the longest secret the radio accepts (WPA2 passphrase or 64 hex PSK).
	MaxSecretLen = 64

	// MaxProvisioningNameLen bounds the advertised SoftAP name.
	MaxProvisioningNameLen = 32

	// DefaultNamePrefix is prepended to the MAC suffix to build the SoftAP name.
	DefaultNamePrefix = "zubIOT_"

	// DefaultPoP is the proof-of-possession string used for authenticated provisioning
	// when the caller does not provide one.
	DefaultPoP = "abcd1234"
)

// Credential is a network identifier and its secret.
// The zero value means "no credential".
type Credential struct {
	Identifier string
	Secret     string
}

// IsZero reports whether the credential is absent.
func (c Credential) IsZero() bool {
	return c.Identifier == "" && c.Secret == ""
}

// Validate checks the credential against the radio's encoding limits.
func (c Credential) Validate() error {
	if c.Identifier == "" {
		return newError(KindInvalidArgument, "validate", "network identifier is empty", nil)
	}
	if len(c.Identifier) > MaxIdentifierLen {
		return newError(KindInvalidArgument, "validate",
			fmt.Sprintf("network identifier is %d bytes (max %d)", len(c.Identifier), MaxIdentifierLen), nil)
	}
	if len(c.Secret) > MaxSecretLen {
		return newError(KindInvalidArgument, "validate",
			fmt.Sprintf("secret is %d bytes (max %d)", len(c.Secret), MaxSecretLen), nil)
	}
	return nil
}

// String never includes the secret.
func (c Credential) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s (secret: %d bytes)", c.Identifier, len(c.Secret))
}

// SecurityMode selects how the provisioning session authenticates its client.
type SecurityMode int

const (
	// SecurityAuthenticated requires the client to present the proof-of-possession string.
	SecurityAuthenticated SecurityMode = iota
	// SecurityOpen accepts any client.
	SecurityOpen
)

// String returns the configuration name of the mode.
func (m SecurityMode) String() string {
	switch m {
	case SecurityAuthenticated:
		return "authenticated"
	case SecurityOpen:
		return "open"
	default:
		return fmt.Sprintf("SecurityMode(%d)", int(m))
	}
}

// ParseSecurityMode parses "authenticated" or "open".
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch s {
	case "", "authenticated", "secure", "1":
		return SecurityAuthenticated, nil
	case "open", "none", "0":
		return SecurityOpen, nil
	default:
		return SecurityAuthenticated, fmt.Errorf("unknown security mode %q", s)
	}
}

// ProvisioningParams configures one provisioning attempt.
type ProvisioningParams struct {
	// Name is the advertised SoftAP network name.
	Name string
	// Passphrase protects the SoftAP itself; empty means an open access point.
	Passphrase string
	// Security selects whether the provisioning client must present PoP.
	Security SecurityMode
	// PoP is the proof-of-possession string, ignored for SecurityOpen.
	PoP string
}

// Normalized fills in the default PoP for authenticated sessions and drops it for open ones.
func (p ProvisioningParams) Normalized() ProvisioningParams {
	switch p.Security {
	case SecurityOpen:
		p.PoP = ""
	default:
		if p.PoP == "" {
			p.PoP = DefaultPoP
		}
	}
	return p
}

// Validate checks the advertised name and SoftAP passphrase.
func (p ProvisioningParams) Validate() error {
	if p.Name == "" || len(p.Name) > MaxProvisioningNameLen {
		return newError(KindInvalidArgument, "validate",
			fmt.Sprintf("provisioning name must be 1-%d bytes", MaxProvisioningNameLen), nil)
	}
	if p.Passphrase != "" && (len(p.Passphrase) < 8 || len(p.Passphrase) > 63) {
		return newError(KindInvalidArgument, "validate", "SoftAP passphrase must be 8-63 bytes", nil)
	}
	if p.Security != SecurityAuthenticated && p.Security != SecurityOpen {
		return newError(KindInvalidArgument, "validate", fmt.Sprintf("unknown security mode %d", p.Security), nil)
	}
	return nil
}

// ProvisioningName derives the SoftAP name from the station MAC:
// prefix followed by the last three address bytes as upper-case hex.
func ProvisioningName(prefix string, mac net.HardwareAddr) (string, error) {
	if len(mac) < 3 {
		return "", fmt.Errorf("hardware address %q too short", mac.String())
	}
	n := len(mac)
	return fmt.Sprintf("%s%02X%02X%02X", prefix, mac[n-3], mac[n-2], mac[n-1]), nil
}
