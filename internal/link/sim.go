package link

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/station"
)

// Disconnect reason codes reported by Sim.
const (
	ReasonAuthFail      = "auth_fail"
	ReasonNoAPFound     = "no_ap_found"
	ReasonBeaconTimeout = "beacon_timeout"
)

var (
	// ErrNotStarted is returned by commands issued before Start.
	ErrNotStarted = errors.New("link: radio not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("link: radio already started")
)

// AccessPoint is a network the simulated radio can see.
type AccessPoint struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	// Address is handed out on association. Defaults to 192.168.4.2.
	Address string `yaml:"address"`
}

// SimConfig configures a simulated radio.
type SimConfig struct {
	MAC          net.HardwareAddr
	AccessPoints []AccessPoint
	// Latency is the delay between a connect command and its outcome.
	Latency time.Duration
}

// Sim is a simulated station radio implementing station.Driver.
type Sim struct {
	cfg SimConfig

	mu      sync.Mutex
	handler station.LinkHandler
	started bool
	attempt uint64
	current string
	pending *time.Timer
}

var _ station.Driver = (*Sim)(nil)

// NewSim creates a stopped simulated radio.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg}
}

// Start brings the radio up and registers handler.
func (s *Sim) Start(handler station.LinkHandler) error {
	if handler == nil {
		return fmt.Errorf("link: nil event handler")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.handler = handler
	s.mu.Unlock()

	logging.Debug("Simulated radio started", logging.MAC("mac", s.cfg.MAC))
	go handler(station.LinkEvent{Kind: station.LinkStarted})
	return nil
}

// Connect schedules an association attempt with cred.
func (s *Sim) Connect(cred station.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	s.cancelLocked()
	s.current = ""
	attempt := s.attempt

	s.pending = time.AfterFunc(s.cfg.Latency, func() {
		s.associate(attempt, cred)
	})
	logging.Debug("Simulated association scheduled",
		zap.String("ssid", cred.Identifier),
		zap.Duration("latency", s.cfg.Latency),
	)
	return nil
}

// Disconnect drops the association or cancels a pending attempt.
func (s *Sim) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.cancelLocked()
	s.current = ""
	return nil
}

// Stop shuts the radio down. Pending attempts are cancelled.
func (s *Sim) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.current = ""
	s.started = false
	s.handler = nil
	return nil
}

// HardwareAddr returns the configured station MAC.
func (s *Sim) HardwareAddr() (net.HardwareAddr, error) {
	if len(s.cfg.MAC) == 0 {
		return nil, fmt.Errorf("link: no hardware address configured")
	}
	return s.cfg.MAC, nil
}

// Associated returns the network the radio is associated with, or "".
func (s *Sim) Associated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// DropLink simulates losing the access point. It reports whether a link was up.
func (s *Sim) DropLink() bool {
	s.mu.Lock()
	ssid := s.current
	h := s.handler
	if ssid == "" || h == nil {
		s.mu.Unlock()
		return false
	}
	s.current = ""
	s.mu.Unlock()

	h(station.LinkEvent{Kind: station.LinkDisconnected, Identifier: ssid, Reason: ReasonBeaconTimeout})
	return true
}

// PeerJoined simulates a client associating with the device's SoftAP.
func (s *Sim) PeerJoined(mac net.HardwareAddr, aid int) {
	s.emitPeer(station.LinkPeerJoined, mac, aid)
}

// PeerLeft simulates a client leaving the device's SoftAP.
func (s *Sim) PeerLeft(mac net.HardwareAddr, aid int) {
	s.emitPeer(station.LinkPeerLeft, mac, aid)
}

func (s *Sim) emitPeer(kind station.LinkEventKind, mac net.HardwareAddr, aid int) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(station.LinkEvent{Kind: kind, Peer: mac, AID: aid})
	}
}

// associate resolves attempt, unless a later command superseded it.
func (s *Sim) associate(attempt uint64, cred station.Credential) {
	s.mu.Lock()
	if !s.started || attempt != s.attempt {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	h := s.handler

	ap, found := s.lookup(cred.Identifier)
	var events []station.LinkEvent
	switch {
	case !found:
		events = append(events, station.LinkEvent{Kind: station.LinkDisconnected, Identifier: cred.Identifier, Reason: ReasonNoAPFound})
	case ap.Passphrase != cred.Secret:
		events = append(events, station.LinkEvent{Kind: station.LinkDisconnected, Identifier: cred.Identifier, Reason: ReasonAuthFail})
	default:
		s.current = ap.SSID
		events = append(events,
			station.LinkEvent{Kind: station.LinkStationConnected, Identifier: ap.SSID},
			station.LinkEvent{Kind: station.LinkAddressAcquired, Identifier: ap.SSID, Address: ap.addr()},
		)
	}
	s.mu.Unlock()

	for _, ev := range events {
		h(ev)
	}
}

func (s *Sim) lookup(ssid string) (AccessPoint, bool) {
	for _, ap := range s.cfg.AccessPoints {
		if ap.SSID == ssid {
			return ap, true
		}
	}
	return AccessPoint{}, false
}

// cancelLocked invalidates any pending attempt. Callers hold s.mu.
func (s *Sim) cancelLocked() {
	s.attempt++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (ap AccessPoint) addr() netip.Addr {
	if a, err := netip.ParseAddr(ap.Address); err == nil {
		return a
	}
	return netip.MustParseAddr("192.168.4.2")
}
