package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/softap"
)

const (
	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the port assumed when an entry carries none
	DefaultPort = 8080
)

// namePattern matches provisioning instance names (e.g., "zubIOT_ABCDEF")
var namePattern = regexp.MustCompile(`^(.+)_([0-9A-F]{6})$`)

// Scanner handles mDNS discovery of provisioning sessions
type Scanner struct {
	// Timeout is the maximum time to wait for devices
	Timeout time.Duration

	// Prefix restricts results to one provisioning name prefix; empty means any
	Prefix string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// browse streams every matching device to found until ctx is done or found
// returns false
func (s *Scanner) browse(ctx context.Context, found func(*Device) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device == nil {
				continue
			}
			logging.Debug("Discovered provisioning session",
				zap.String("name", device.Name),
				zap.String("ip", device.IP),
				zap.Int("port", device.Port),
			)
			if !found(device) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, softap.ServiceType, softap.ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once it sees ctx is done.
	select {
	case <-drained:
	case <-time.After(time.Second):
	}
	return nil
}

// ScanForDevices discovers all provisioning sessions on the local network
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext discovers sessions with a custom context.
// A session announced more than once is reported once.
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	var (
		mu      sync.Mutex
		devices []*Device
		seen    = make(map[string]bool)
	)

	err := s.browse(ctx, func(d *Device) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[d.key()] {
			seen[d.key()] = true
			devices = append(devices, d)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return devices, nil
}

// WaitForDevice waits for a session by instance name
func (s *Scanner) WaitForDevice(name string) (*Device, error) {
	return s.WaitForDeviceWithContext(context.Background(), name)
}

// WaitForDeviceWithContext waits for a session by instance name with a
// custom context
func (s *Scanner) WaitForDeviceWithContext(ctx context.Context, name string) (*Device, error) {
	deviceChan := make(chan *Device, 1)
	err := s.browse(ctx, func(d *Device) bool {
		if !strings.EqualFold(d.Name, name) {
			return true
		}
		select {
		case deviceChan <- d:
		default:
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case device := <-deviceChan:
		return device, nil
	default:
		return nil, fmt.Errorf("device %s not found within timeout", name)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry is not a provisioning session.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	matches := namePattern.FindStringSubmatch(entry.Instance)
	if len(matches) < 3 {
		return nil
	}
	if s.Prefix != "" && strings.TrimSuffix(s.Prefix, "_") != matches[1] {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Device{
		Name:         entry.Instance,
		Suffix:       matches[2],
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		SessionID:    metadata[softap.TXTSessionID],
		Secure:       metadata[softap.TXTSecurity] != "0",
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForDevices is a convenience function to scan with a custom timeout
func ScanForDevices(timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices()
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan() ([]*Device, error) {
	return ScanForDevices(3 * time.Second)
}

// FindDevice searches for a session by instance name with the default timeout
func FindDevice(name string) (*Device, error) {
	return NewScanner().WaitForDevice(name)
}
