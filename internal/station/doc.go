// Package station manages the connection of a single WiFi station
// interface: joining a network with a known credential, falling back to
// SoftAP provisioning when none is stored, and re-establishing the link
// when it drops.
//
// # State Machine
//
// The Orchestrator is always in exactly one of five states:
//
//	DISCONNECTED   no link and no attempt in progress
//	CONNECTING     a connect command is outstanding
//	CONNECTED      associated and holding an IP address
//	PROVISIONING   a provisioning session is advertising
//	ERROR          the last attempt or session failed
//
// Transitions are computed by Next, a pure function of the current state
// and a Trigger. It returns the target state and the ordered Actions the
// orchestrator performs before committing it.
//
// # Event Loop
//
// Commands (Connect, Disconnect, StartProvisioning, ...) and collaborator
// events (LinkEvent, ProvisioningEvent) are serialized through one
// mailbox and processed by a single goroutine. Commands block until the
// loop has run them; collaborator callbacks only enqueue and return.
// Observers run on the loop after each state change, so they must not
// call blocking methods. State, Identifier and Address read a published
// snapshot and are safe from anywhere, observers included.
//
// # Collaborators
//
// The orchestrator talks to the outside through three interfaces:
//
//   - Driver: the radio and IP stack (see internal/link for a simulator)
//   - CredentialStore: persistence for one credential (see internal/credstore)
//   - Provisioner: SoftAP provisioning sessions (see internal/softap)
//
// # Usage
//
//	orch, err := station.New(station.Config{
//	    Driver:      link.NewSim(link.SimConfig{}),
//	    Store:       credstore.NewMemoryStore(),
//	    Provisioner: prov,
//	})
//	if err != nil {
//	    return err
//	}
//	defer orch.Close()
//
//	orch.SetObserver(func(s station.State, _ any) {
//	    fmt.Println("state:", s)
//	}, nil)
//
//	if err := orch.ConnectStored(ctx); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Every operation returns *StationError with a Kind. Use errors.Is with the
// sentinels (ErrPersistence, ErrNotInitialized, ...) or the IsXxx helpers.
package station
