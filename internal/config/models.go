package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/muurk/zubwifi/internal/credstore"
	"github.com/muurk/zubwifi/internal/link"
	"github.com/muurk/zubwifi/internal/server"
	"github.com/muurk/zubwifi/internal/softap"
	"github.com/muurk/zubwifi/internal/station"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config is the daemon configuration file.
type Config struct {
	Version      int                     `yaml:"version"`
	LogLevel     string                  `yaml:"log_level,omitempty"`
	Store        StoreConfig             `yaml:"store"`
	Provisioning ProvisioningConfig      `yaml:"provisioning"`
	Reconnect    station.ReconnectPolicy `yaml:"reconnect"`
	Status       StatusConfig            `yaml:"status"`
	Link         LinkConfig              `yaml:"link"`
}

// StoreConfig selects where the network credential is kept.
type StoreConfig struct {
	Backend   string `yaml:"backend"`       // "file" or "memory"
	Namespace string `yaml:"namespace"`     // Credential namespace (max 15 chars)
	Dir       string `yaml:"dir,omitempty"` // Empty means <config dir>/nvs
}

// ProvisioningConfig configures the SoftAP fallback.
type ProvisioningConfig struct {
	Prefix     string        `yaml:"prefix"`               // SoftAP name prefix, e.g. "zubIOT_"
	Security   string        `yaml:"security"`             // "authenticated" or "open"
	PoP        string        `yaml:"pop,omitempty"`        // Proof of possession; default abcd1234
	Passphrase string        `yaml:"passphrase,omitempty"` // SoftAP passphrase; empty is an open AP
	Listen     string        `yaml:"listen"`               // Session HTTP address
	Advertise  bool          `yaml:"advertise"`            // Announce sessions over mDNS
	Linger     time.Duration `yaml:"linger"`               // Time a session serves after accepting
}

// StatusConfig configures the local status server.
type StatusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Listen   string `yaml:"listen"`
	CertPath string `yaml:"cert_path,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// LinkConfig configures the simulated radio.
type LinkConfig struct {
	MAC          string             `yaml:"mac"`
	Latency      time.Duration      `yaml:"latency"`
	AccessPoints []link.AccessPoint `yaml:"access_points,omitempty"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		LogLevel: "info",
		Store: StoreConfig{
			Backend:   BackendFile,
			Namespace: credstore.DefaultNamespace,
		},
		Provisioning: ProvisioningConfig{
			Prefix:    station.DefaultNamePrefix,
			Security:  station.SecurityAuthenticated.String(),
			Listen:    softap.DefaultListenAddr,
			Advertise: true,
			Linger:    softap.DefaultLinger,
		},
		Reconnect: station.ReconnectPolicy{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
		Status: StatusConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8081",
		},
		Link: LinkConfig{
			MAC:     "24:0a:c4:00:00:01",
			Latency: 200 * time.Millisecond,
		},
	}
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	switch c.Store.Backend {
	case BackendFile, BackendMemory:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if err := credstore.ValidateNamespace(c.Store.Namespace); err != nil {
		return fmt.Errorf("store.namespace: %w", err)
	}

	if _, err := c.ProvisioningParams(); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(c.Provisioning.Listen); err != nil {
		return fmt.Errorf("provisioning.listen: %w", err)
	}

	if c.Status.Enabled {
		if _, err := c.ServerConfig(); err != nil {
			return err
		}
	}

	if _, err := c.SimConfig(); err != nil {
		return err
	}
	return nil
}

// ProvisioningParams returns the SoftAP settings. Name is left empty; the
// orchestrator derives it from the prefix and the station MAC.
func (c *Config) ProvisioningParams() (station.ProvisioningParams, error) {
	sec, err := station.ParseSecurityMode(c.Provisioning.Security)
	if err != nil {
		return station.ProvisioningParams{}, fmt.Errorf("provisioning.security: %w", err)
	}
	p := station.ProvisioningParams{
		Passphrase: c.Provisioning.Passphrase,
		Security:   sec,
		PoP:        c.Provisioning.PoP,
	}.Normalized()

	// Validate needs a name; use the longest one the prefix can produce.
	probe := p
	probe.Name = c.Provisioning.Prefix + "ABCDEF"
	if err := probe.Validate(); err != nil {
		return station.ProvisioningParams{}, fmt.Errorf("provisioning: %w", err)
	}
	return p, nil
}

// SoftAPConfig returns the provisioner settings.
func (c *Config) SoftAPConfig() softap.Config {
	return softap.Config{
		ListenAddr: c.Provisioning.Listen,
		Advertise:  c.Provisioning.Advertise,
		Linger:     c.Provisioning.Linger,
	}
}

// ServerConfig returns the status server settings.
func (c *Config) ServerConfig() (*server.Config, error) {
	host, portStr, err := net.SplitHostPort(c.Status.Listen)
	if err != nil {
		return nil, fmt.Errorf("status.listen: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("status.listen: invalid port %q", portStr)
	}
	if (c.Status.CertPath == "") != (c.Status.KeyPath == "") {
		return nil, fmt.Errorf("status: cert_path and key_path must be set together")
	}
	return &server.Config{
		Host:     host,
		Port:     port,
		CertPath: c.Status.CertPath,
		KeyPath:  c.Status.KeyPath,
	}, nil
}

// SimConfig returns the simulated radio settings.
func (c *Config) SimConfig() (link.SimConfig, error) {
	mac, err := net.ParseMAC(c.Link.MAC)
	if err != nil {
		return link.SimConfig{}, fmt.Errorf("link.mac: %w", err)
	}
	for i, ap := range c.Link.AccessPoints {
		if ap.SSID == "" {
			return link.SimConfig{}, fmt.Errorf("link.access_points[%d]: empty ssid", i)
		}
	}
	return link.SimConfig{
		MAC:          mac,
		AccessPoints: c.Link.AccessPoints,
		Latency:      c.Link.Latency,
	}, nil
}

// StoreDir returns the credential directory, defaulting under the config dir.
func (c *Config) StoreDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nvs"), nil
}

// OpenStore opens the configured credential store.
func (c *Config) OpenStore() (station.CredentialStore, error) {
	if c.Store.Backend == BackendMemory {
		store, err := credstore.NewMemory().Store(c.Store.Namespace)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	dir, err := c.StoreDir()
	if err != nil {
		return nil, err
	}
	store, err := credstore.NewFileStore(dir, c.Store.Namespace)
	if err != nil {
		return nil, err
	}
	return store, nil
}
