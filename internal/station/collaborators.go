package station

import (
	"fmt"
	"net"
	"net/netip"
)

// LinkEventKind identifies a notification from the station radio.
type LinkEventKind int

const (
	// LinkStarted reports that the radio is up and ready for commands.
	LinkStarted LinkEventKind = iota
	// LinkStationConnected reports association with the access point (link-up).
	LinkStationConnected
	// LinkDisconnected reports loss of association or a failed association attempt.
	LinkDisconnected
	// LinkAddressAcquired reports that the IP stack obtained an address.
	LinkAddressAcquired
	// LinkPeerJoined reports a client joining the device's own SoftAP.
	LinkPeerJoined
	// LinkPeerLeft reports a client leaving the device's own SoftAP.
	LinkPeerLeft
)

func (k LinkEventKind) String() string {
	switch k {
	case LinkStarted:
		return "started"
	case LinkStationConnected:
		return "sta_connected"
	case LinkDisconnected:
		return "sta_disconnected"
	case LinkAddressAcquired:
		return "got_ip"
	case LinkPeerJoined:
		return "ap_peer_joined"
	case LinkPeerLeft:
		return "ap_peer_left"
	default:
		return fmt.Sprintf("LinkEventKind(%d)", int(k))
	}
}

// LinkEvent is one notification from the Driver.
type LinkEvent struct {
	Kind LinkEventKind

	// Identifier is the network the event refers to (station events).
	Identifier string

	// Address is set for LinkAddressAcquired.
	Address netip.Addr

	// Reason describes why the link went down (LinkDisconnected).
	Reason string

	// Peer and AID identify the SoftAP client (LinkPeerJoined, LinkPeerLeft).
	Peer net.HardwareAddr
	AID  int
}

// LinkHandler receives link events. Implementations must not block.
type LinkHandler func(LinkEvent)

// Driver is the station radio and its IP stack.
//
// Connect and Disconnect are commands: their outcome arrives later as
// LinkEvents delivered to the handler registered with Start.
type Driver interface {
	// Start brings the radio up and registers the only event handler.
	Start(handler LinkHandler) error
	// Connect begins associating with the given network.
	Connect(cred Credential) error
	// Disconnect drops the current association or attempt.
	Disconnect() error
	// Stop shuts the radio down.
	Stop() error
	// HardwareAddr returns the station MAC address.
	HardwareAddr() (net.HardwareAddr, error)
}

// CredentialStore persists a single credential under a namespace.
// Every operation is synchronous and atomic: a partially written
// credential is never returned by Load.
type CredentialStore interface {
	// Save replaces the stored credential.
	Save(cred Credential) error
	// Load returns the stored credential, or ok=false when none is stored.
	Load() (cred Credential, ok bool, err error)
	// Clear erases the stored credential. Clearing an empty store succeeds.
	Clear() error
}

// ProvisioningEventKind identifies a notification from a provisioning session.
type ProvisioningEventKind int

const (
	// ProvisioningStarted reports the SoftAP is advertising.
	ProvisioningStarted ProvisioningEventKind = iota
	// ProvisioningCredentialsReceived carries the credential sent by the client.
	ProvisioningCredentialsReceived
	// ProvisioningCredentialsFailed reports a rejected credential; the session stays up.
	ProvisioningCredentialsFailed
	// ProvisioningCredentialsSucceeded reports the session accepted the credential.
	ProvisioningCredentialsSucceeded
	// ProvisioningEnded reports the session terminated itself.
	ProvisioningEnded
)

func (k ProvisioningEventKind) String() string {
	switch k {
	case ProvisioningStarted:
		return "started"
	case ProvisioningCredentialsReceived:
		return "credentials_received"
	case ProvisioningCredentialsFailed:
		return "credentials_failed"
	case ProvisioningCredentialsSucceeded:
		return "credentials_succeeded"
	case ProvisioningEnded:
		return "ended"
	default:
		return fmt.Sprintf("ProvisioningEventKind(%d)", int(k))
	}
}

// ProvisioningEvent is one notification from a Session.
type ProvisioningEvent struct {
	Kind       ProvisioningEventKind
	SessionID  string
	Credential Credential // ProvisioningCredentialsReceived
	Reason     string     // ProvisioningCredentialsFailed
}

// ProvisioningHandler receives session events. Implementations must not block.
type ProvisioningHandler func(ProvisioningEvent)

// Provisioner starts bounded-lifetime provisioning sessions.
type Provisioner interface {
	// Start launches a session advertising params and delivering its events to handler.
	Start(params ProvisioningParams, handler ProvisioningHandler) (Session, error)
	// IsProvisioned reports whether a prior session completed with credentials.
	IsProvisioned() bool
}

// Session is one running provisioning session.
type Session interface {
	// ID identifies the session in logs and events.
	ID() string
	// Stop tears the session down. The orchestrator calls it exactly once.
	Stop() error
}
