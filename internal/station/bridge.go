package station

import (
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
)

// onLinkEvent is the Driver handler. It only enqueues; the event is
// interpreted on the event loop in arrival order.
func (o *Orchestrator) onLinkEvent(ev LinkEvent) {
	if !o.box.post(func() { o.handleLinkEvent(ev) }) {
		logging.Debug("Link event dropped after close", zap.String("event", ev.Kind.String()))
	}
}

// onProvisioningEvent is the Session handler.
func (o *Orchestrator) onProvisioningEvent(ev ProvisioningEvent) {
	if !o.box.post(func() { o.handleProvisioningEvent(ev) }) {
		logging.Debug("Provisioning event dropped after close", zap.String("event", ev.Kind.String()))
	}
}

func (o *Orchestrator) handleLinkEvent(ev LinkEvent) {
	if o.closed {
		return
	}

	switch ev.Kind {
	case LinkStarted:
		logging.LogLinkEvent(ev.Kind.String())

	case LinkStationConnected:
		logging.LogLinkEvent(ev.Kind.String(), zap.String("ssid", ev.Identifier))

	case LinkDisconnected:
		logging.LogLinkEvent(ev.Kind.String(),
			zap.String("ssid", ev.Identifier),
			zap.String("reason", ev.Reason),
		)
		if o.state == Connecting || o.state == Connected {
			logging.Warn("Station link lost, reconnecting",
				zap.String("ssid", o.cred.Identifier),
				zap.String("reason", ev.Reason),
			)
		}
		_ = o.apply(TriggerLinkDisconnected)

	case LinkAddressAcquired:
		addr := ev.Address.String()
		logging.LogLinkEvent(ev.Kind.String(), zap.String("ip", addr))

		switch o.state {
		case Connecting:
			o.address = addr
			logging.Info("Got IP address", zap.String("ssid", o.cred.Identifier), zap.String("ip", addr))
			_ = o.apply(TriggerAddressAcquired)
		case Connected:
			if addr != o.address {
				logging.Info("IP address changed", zap.String("old", o.address), zap.String("new", addr))
				o.address = addr
				o.publish()
			}
		default:
			logging.Debug("Address ignored outside a connection attempt", zap.String("state", o.state.String()))
		}

	case LinkPeerJoined, LinkPeerLeft:
		logging.LogLinkEvent(ev.Kind.String(),
			logging.MAC("peer", ev.Peer),
			zap.Int("aid", ev.AID),
		)
	}
}

func (o *Orchestrator) handleProvisioningEvent(ev ProvisioningEvent) {
	if o.closed {
		return
	}
	if o.session == nil || o.state != Provisioning || ev.SessionID != o.session.ID() {
		logging.Debug("Stale provisioning event ignored",
			zap.String("event", ev.Kind.String()),
			zap.String("session_id", ev.SessionID),
		)
		return
	}

	switch ev.Kind {
	case ProvisioningStarted:
		logging.LogProvisioningEvent(ev.SessionID, ev.Kind.String())

	case ProvisioningCredentialsReceived:
		logging.LogProvisioningEvent(ev.SessionID, ev.Kind.String(), zap.String("ssid", ev.Credential.Identifier))
		o.storeProvisionedCredential(ev.Credential)

	case ProvisioningCredentialsFailed:
		logging.LogProvisioningEvent(ev.SessionID, ev.Kind.String(), zap.String("reason", ev.Reason))

	case ProvisioningCredentialsSucceeded:
		logging.LogProvisioningEvent(ev.SessionID, ev.Kind.String())

	case ProvisioningEnded:
		logging.LogProvisioningEvent(ev.SessionID, ev.Kind.String())
		o.finishProvisioning()
	}
}

func (o *Orchestrator) storeProvisionedCredential(cred Credential) {
	if err := cred.Validate(); err != nil {
		o.sessionSaveErr = err
		logging.Error("Received credential rejected", zap.Error(err))
		return
	}
	if err := o.cfg.Store.Save(cred); err != nil {
		o.sessionSaveErr = newError(KindPersistence, "provisioning", "failed to save received credential", err)
		logging.Error("Failed to save received credential", zap.String("ssid", cred.Identifier), zap.Error(err))
		return
	}

	o.sessionSaveErr = nil
	logging.Info("Received credential saved", zap.String("ssid", cred.Identifier))
}

// finishProvisioning handles a session that ended on its own: it connects
// with whatever the session left in the store, or moves to Error.
func (o *Orchestrator) finishProvisioning() {
	if o.sessionSaveErr != nil {
		logging.Error("Provisioning ended without a persisted credential", zap.Error(o.sessionSaveErr))
		_ = o.apply(TriggerSessionEndedWithoutCredential)
		return
	}

	cred, ok, err := o.cfg.Store.Load()
	if err != nil || !ok {
		logging.Error("Failed to load credential after provisioning", zap.Bool("found", ok), zap.Error(err))
		_ = o.apply(TriggerSessionEndedWithoutCredential)
		return
	}

	o.cred = cred
	logging.Info("Provisioning complete, connecting", zap.String("ssid", cred.Identifier))
	_ = o.apply(TriggerSessionEndedWithCredential)
}
