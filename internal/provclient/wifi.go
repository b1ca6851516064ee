package provclient

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/muurk/zubwifi/internal/softap"
)

const (
	// MaxSSIDLen is the longest SSID a device accepts
	MaxSSIDLen = 32

	// MinPassphraseLen and MaxPassphraseLen bound a WPA2 passphrase
	MinPassphraseLen = 8
	MaxPassphraseLen = 64
)

// WiFiConfig is the network credential sent to a provisioning session
type WiFiConfig struct {
	SSID         string
	Password     string
	SecurityType string // softap.SecurityWPA2 or softap.SecurityOpen
}

// Normalized fills SecurityType from the password when it is empty and
// upper-cases it otherwise
func (c WiFiConfig) Normalized() WiFiConfig {
	c.SecurityType = strings.ToUpper(strings.TrimSpace(c.SecurityType))
	if c.SecurityType == "" {
		if c.Password == "" {
			c.SecurityType = softap.SecurityOpen
		} else {
			c.SecurityType = softap.SecurityWPA2
		}
	}
	return c
}

// Validate checks the credential against the limits a device enforces
func (c WiFiConfig) Validate() error {
	if err := ValidateSSID(c.SSID); err != nil {
		return err
	}
	switch c.SecurityType {
	case softap.SecurityWPA2:
		return ValidatePassword(c.Password)
	case softap.SecurityOpen:
		if c.Password != "" {
			return newValidationError("open networks take no password")
		}
		return nil
	default:
		return newValidationError(fmt.Sprintf("unsupported security type %q (use WPA2 or OPEN)", c.SecurityType))
	}
}

// ToFormData converts the credential to the form a session expects
func (c WiFiConfig) ToFormData() url.Values {
	data := url.Values{}
	data.Set(softap.FieldSSID, c.SSID)
	data.Set(softap.FieldSecurity, c.SecurityType)
	if c.SecurityType == softap.SecurityWPA2 {
		data.Set(softap.FieldPassphrase, c.Password)
	}
	return data
}

// ValidateSSID checks an SSID is present and short enough
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return newValidationError("SSID cannot be empty")
	}
	if len(ssid) > MaxSSIDLen {
		return newValidationError(fmt.Sprintf("SSID too long (%d bytes, max %d)", len(ssid), MaxSSIDLen))
	}
	return nil
}

// ValidatePassword checks a WPA2 passphrase length
func ValidatePassword(password string) error {
	if len(password) < MinPassphraseLen {
		return newValidationError(fmt.Sprintf("password too short (%d chars, min %d)", len(password), MinPassphraseLen))
	}
	if len(password) > MaxPassphraseLen {
		return newValidationError(fmt.Sprintf("password too long (%d chars, max %d)", len(password), MaxPassphraseLen))
	}
	return nil
}
