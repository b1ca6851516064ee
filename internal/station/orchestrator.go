package station

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
)

// Observer is called after every state change, on the orchestrator's event
// loop. It must return quickly and must not call blocking Orchestrator
// methods; the accessors are safe.
type Observer func(state State, context any)

type observerEntry struct {
	fn  Observer
	ctx any
}

// Config holds the orchestrator's collaborators and policy
type Config struct {
	Driver      Driver
	Store       CredentialStore
	Provisioner Provisioner

	// NamePrefix prefixes the SoftAP name derived from the station MAC
	// (default DefaultNamePrefix).
	NamePrefix string

	// Provisioning holds the SoftAP passphrase, security mode and PoP used
	// when ConnectStored falls back to provisioning. Name is always derived.
	Provisioning ProvisioningParams

	// Reconnect paces connect commands re-issued after a link loss.
	// Nil re-issues immediately; backoff.Stop moves the state to Error.
	Reconnect backoff.BackOff
}

type snapshot struct {
	state      State
	identifier string
	address    string
}

// Orchestrator owns the connection state of one station interface.
//
// Every command and every collaborator event runs on a single event loop
// goroutine, so the session context below is never touched concurrently.
type Orchestrator struct {
	cfg  Config
	box  *mailbox
	done chan struct{}

	observer atomic.Pointer[observerEntry]
	snap     atomic.Pointer[snapshot]

	// Session context, owned by the event loop.
	state          State
	initialized    bool
	closed         bool
	cred           Credential
	address        string
	session        Session
	sessionSaveErr error
	params         ProvisioningParams
	retryTimer     *time.Timer
	retrySeq       uint64
}

// New creates an orchestrator in the Disconnected state and starts its event loop.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Driver == nil || cfg.Store == nil || cfg.Provisioner == nil {
		return nil, newError(KindInvalidArgument, "new", "driver, store and provisioner are required", nil)
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = DefaultNamePrefix
	}

	o := &Orchestrator{
		cfg:   cfg,
		box:   newMailbox(),
		done:  make(chan struct{}),
		state: Disconnected,
	}
	o.publish()

	go o.run()
	return o, nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		fn, ok := o.box.next()
		if !ok {
			return
		}
		fn()
	}
}

// call runs fn on the event loop and waits for its result. If ctx ends first
// the command still runs; only the wait is abandoned.
func (o *Orchestrator) call(ctx context.Context, op string, fn func() error) error {
	result := make(chan error, 1)
	posted := o.box.post(func() {
		if o.closed {
			result <- newError(KindClosed, op, "orchestrator is closed", nil)
			return
		}
		result <- fn()
	})
	if !posted {
		return newError(KindClosed, op, "orchestrator is closed", nil)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Initialize starts the station driver. Repeated calls succeed without
// restarting it. A failed start can be retried.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	return o.call(ctx, "initialize", o.initialize)
}

// ConnectStored connects with the stored credential, or starts provisioning
// under a name derived from the station MAC when nothing is stored. It
// reports whether the attempt was initiated; the outcome goes to the observer.
func (o *Orchestrator) ConnectStored(ctx context.Context) error {
	return o.call(ctx, "connect", o.connectStored)
}

// Connect starts a connection attempt with the given credential, replacing
// any attempt in progress. With save set, the credential is persisted before
// the connect command is issued.
func (o *Orchestrator) Connect(ctx context.Context, identifier, secret string, save bool) error {
	cred := Credential{Identifier: identifier, Secret: secret}
	return o.call(ctx, "connect", func() error {
		return o.connect(cred, save)
	})
}

// Disconnect drops the connection or provisioning session. The state always
// ends in Disconnected and no automatic retry follows.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	return o.call(ctx, "disconnect", func() error {
		if !o.initialized {
			return newError(KindNotInitialized, "disconnect", "station is not initialized", nil)
		}
		return o.apply(TriggerDisconnect)
	})
}

// StartProvisioning erases the stored credential and opens a provisioning
// session. It succeeds without effect when a session is already active.
func (o *Orchestrator) StartProvisioning(ctx context.Context, params ProvisioningParams) error {
	return o.call(ctx, "start provisioning", func() error {
		return o.startProvisioning(params)
	})
}

// StopProvisioning tears down the active session and moves to Disconnected.
func (o *Orchestrator) StopProvisioning(ctx context.Context) error {
	return o.call(ctx, "stop provisioning", func() error {
		if o.session == nil {
			logging.Debug("Provisioning not active")
			return nil
		}
		return o.apply(TriggerStopProvisioning)
	})
}

// HasStoredCredential reports whether the store holds a credential.
func (o *Orchestrator) HasStoredCredential(ctx context.Context) (bool, error) {
	var found bool
	err := o.call(ctx, "load credential", func() error {
		_, ok, err := o.cfg.Store.Load()
		if err != nil {
			return newError(KindPersistence, "load credential", "failed to read credential store", err)
		}
		found = ok
		return nil
	})
	return found, err
}

// ClearStoredCredential erases the stored credential. The current connection,
// if any, is left alone.
func (o *Orchestrator) ClearStoredCredential(ctx context.Context) error {
	return o.call(ctx, "clear credential", func() error {
		if err := o.cfg.Store.Clear(); err != nil {
			return newError(KindPersistence, "clear credential", "failed to erase credential", err)
		}
		logging.Info("Stored credential cleared")
		return nil
	})
}

// SetObserver replaces the registered observer. A nil fn removes it.
func (o *Orchestrator) SetObserver(fn Observer, context any) {
	o.observer.Store(&observerEntry{fn: fn, ctx: context})
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.snap.Load().state
}

// Identifier returns the connected network, or "" unless Connected.
func (o *Orchestrator) Identifier() string {
	return o.snap.Load().identifier
}

// Address returns the acquired IP address, or "" unless Connected.
func (o *Orchestrator) Address() string {
	return o.snap.Load().address
}

// Close tears down the session, disconnects, stops the driver and ends the
// event loop. Further calls fail with ErrClosed.
func (o *Orchestrator) Close() error {
	var shutdownErr error
	err := o.call(context.Background(), "close", func() error {
		shutdownErr = o.shutdown()
		return nil
	})
	o.box.close()
	<-o.done

	if err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return shutdownErr
}

func (o *Orchestrator) initialize() error {
	if o.initialized {
		logging.Debug("Station already initialized")
		return nil
	}

	if err := o.cfg.Driver.Start(o.onLinkEvent); err != nil {
		logging.Error("Failed to start station driver", zap.Error(err))
		return newError(KindInit, "initialize", "station driver failed to start", err)
	}

	o.initialized = true
	logging.Info("Station initialized")
	return nil
}

func (o *Orchestrator) connectStored() error {
	if err := o.initialize(); err != nil {
		return err
	}

	cred, ok, err := o.cfg.Store.Load()
	if err != nil {
		logging.Error("Failed to read credential store", zap.Error(err))
		return newError(KindPersistence, "connect", "failed to load stored credential", err)
	}
	if ok {
		logging.Info("Found stored credential", zap.String("ssid", cred.Identifier))
		return o.connect(cred, false)
	}

	mac, err := o.cfg.Driver.HardwareAddr()
	if err != nil {
		return newError(KindAttemptFailed, "connect", "failed to read station MAC", err)
	}
	name, err := ProvisioningName(o.cfg.NamePrefix, mac)
	if err != nil {
		return newError(KindAttemptFailed, "connect", "failed to derive provisioning name", err)
	}

	logging.Info("No stored credential, starting provisioning", zap.String("softap", name))
	params := o.cfg.Provisioning
	params.Name = name
	return o.startProvisioning(params)
}

func (o *Orchestrator) connect(cred Credential, save bool) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if err := o.initialize(); err != nil {
		return err
	}

	switch o.state {
	case Connecting, Connected:
		logging.Debug("Already connecting or connected, disconnecting first")
		_ = o.apply(TriggerDisconnect)
	case Provisioning:
		logging.Debug("Provisioning active, stopping session first")
		_ = o.apply(TriggerStopProvisioning)
	}

	if save {
		if err := o.cfg.Store.Save(cred); err != nil {
			logging.Error("Failed to save credential", zap.String("ssid", cred.Identifier), zap.Error(err))
			return newError(KindPersistence, "connect", "failed to save credential", err)
		}
		logging.Debug("Credential saved", zap.String("ssid", cred.Identifier))
	}

	o.cred = cred
	logging.Info("Connecting",
		zap.String("ssid", cred.Identifier),
		zap.String("secret", logging.Redact(cred.Secret)),
		zap.Bool("save", save),
	)
	return o.apply(TriggerConnect)
}

func (o *Orchestrator) startProvisioning(params ProvisioningParams) error {
	if err := o.initialize(); err != nil {
		return err
	}
	if o.session != nil {
		logging.Debug("Provisioning already active", zap.String("session_id", o.session.ID()))
		return nil
	}

	params = params.Normalized()
	if err := params.Validate(); err != nil {
		return err
	}

	if o.cfg.Provisioner.IsProvisioned() {
		cred, ok, err := o.cfg.Store.Load()
		if err == nil && ok {
			logging.Info("Already provisioned, connecting", zap.String("ssid", cred.Identifier))
			return o.connect(cred, false)
		}
	}

	if o.state == Connecting || o.state == Connected {
		_ = o.apply(TriggerDisconnect)
	}

	o.params = params
	return o.apply(TriggerStartProvisioning)
}

func (o *Orchestrator) shutdown() error {
	var errs []error

	o.cancelRetry()
	if err := o.teardownSession(); err != nil {
		errs = append(errs, err)
	}
	if o.initialized {
		if err := o.cfg.Driver.Disconnect(); err != nil {
			errs = append(errs, err)
		}
		if err := o.cfg.Driver.Stop(); err != nil {
			errs = append(errs, err)
		}
		o.initialized = false
	}

	o.commit(Transition{From: o.state, To: Disconnected, Trigger: TriggerDisconnect})
	o.closed = true
	logging.Info("Station closed")
	return errors.Join(errs...)
}

// apply runs the transition for trigger against the current state: it
// performs the actions in order and commits the target state.
func (o *Orchestrator) apply(trigger Trigger) error {
	tr := Next(o.state, trigger)
	if tr.Ignored() {
		logging.Debug("Trigger ignored",
			zap.String("state", o.state.String()),
			zap.String("trigger", trigger.String()),
		)
		return nil
	}

	var softErr error
	for _, action := range tr.Actions {
		err := o.perform(action)
		if err == nil {
			continue
		}

		logging.Error("Action failed",
			zap.String("action", action.String()),
			zap.String("trigger", trigger.String()),
			zap.Error(err),
		)

		switch action {
		case ActionIssueDisconnect, ActionTeardownSession:
			// Best effort: the target state is still committed.
			if softErr == nil {
				softErr = err
			}
		case ActionClearCredential:
			return err
		default:
			o.commit(Next(o.state, TriggerAttemptFailed))
			return err
		}
	}

	o.commit(tr)
	return softErr
}

func (o *Orchestrator) perform(action Action) error {
	switch action {
	case ActionResetRetry:
		o.cancelRetry()
		if o.cfg.Reconnect != nil {
			o.cfg.Reconnect.Reset()
		}

	case ActionIssueConnect:
		o.cancelRetry()
		if err := o.cfg.Driver.Connect(o.cred); err != nil {
			return newError(KindAttemptFailed, "connect", "connect command failed", err)
		}

	case ActionReconnect:
		return o.scheduleReconnect()

	case ActionIssueDisconnect:
		o.cancelRetry()
		if err := o.cfg.Driver.Disconnect(); err != nil {
			return newError(KindAttemptFailed, "disconnect", "disconnect command failed", err)
		}

	case ActionClearCredential:
		if err := o.cfg.Store.Clear(); err != nil {
			return newError(KindPersistence, "start provisioning", "failed to erase stored credential", err)
		}
		o.cred = Credential{}

	case ActionStartSession:
		sess, err := o.cfg.Provisioner.Start(o.params, o.onProvisioningEvent)
		if err != nil {
			return newError(KindAttemptFailed, "start provisioning", "provisioning session failed to start", err)
		}
		o.session = sess
		o.sessionSaveErr = nil
		logging.Info("Provisioning started",
			zap.String("session_id", sess.ID()),
			zap.String("softap", o.params.Name),
			zap.Bool("softap_open", o.params.Passphrase == ""),
			zap.String("security", o.params.Security.String()),
		)

	case ActionTeardownSession:
		return o.teardownSession()
	}
	return nil
}

func (o *Orchestrator) teardownSession() error {
	if o.session == nil {
		return nil
	}

	sess := o.session
	o.session = nil
	o.sessionSaveErr = nil

	if err := sess.Stop(); err != nil {
		return newError(KindAttemptFailed, "stop provisioning", "session teardown failed", err)
	}
	logging.Info("Provisioning session torn down", zap.String("session_id", sess.ID()))
	return nil
}

// commit moves to tr.To, publishes the snapshot and notifies the observer.
// Self-transitions are silent.
func (o *Orchestrator) commit(tr Transition) {
	if tr.From == tr.To || o.state == tr.To {
		return
	}

	from := o.state
	o.state = tr.To
	if tr.To != Connected {
		o.address = ""
	}
	if tr.To != Connecting {
		o.cancelRetry()
	}
	o.publish()

	logging.LogTransition(from.String(), tr.To.String(), tr.Trigger.String())

	if entry := o.observer.Load(); entry != nil && entry.fn != nil {
		entry.fn(tr.To, entry.ctx)
	}
}

func (o *Orchestrator) publish() {
	s := &snapshot{state: o.state}
	if o.state == Connected {
		s.identifier = o.cred.Identifier
		s.address = o.address
	}
	o.snap.Store(s)
}

// scheduleReconnect re-issues the connect command after a link loss,
// paced by cfg.Reconnect.
func (o *Orchestrator) scheduleReconnect() error {
	if o.cfg.Reconnect == nil {
		return o.issueReconnect()
	}

	delay := o.cfg.Reconnect.NextBackOff()
	if delay == backoff.Stop {
		logging.Warn("Reconnect attempts exhausted", zap.String("ssid", o.cred.Identifier))
		o.cancelRetry()
		seq := o.retrySeq
		o.box.post(func() {
			if !o.closed && seq == o.retrySeq {
				_ = o.apply(TriggerRetryExhausted)
			}
		})
		return nil
	}
	if delay <= 0 {
		return o.issueReconnect()
	}

	o.cancelRetry()
	seq := o.retrySeq
	o.retryTimer = time.AfterFunc(delay, func() {
		o.box.post(func() { o.retryDue(seq) })
	})
	logging.Info("Reconnect scheduled", zap.String("ssid", o.cred.Identifier), zap.Duration("delay", delay))
	return nil
}

func (o *Orchestrator) retryDue(seq uint64) {
	if o.closed || seq != o.retrySeq || o.state != Connecting {
		return
	}
	o.retryTimer = nil

	if err := o.issueReconnect(); err != nil {
		logging.Error("Reconnect failed", zap.Error(err))
		_ = o.apply(TriggerAttemptFailed)
	}
}

func (o *Orchestrator) issueReconnect() error {
	logging.Info("Trying to reconnect", zap.String("ssid", o.cred.Identifier))
	if err := o.cfg.Driver.Connect(o.cred); err != nil {
		return newError(KindAttemptFailed, "reconnect", "connect command failed", err)
	}
	return nil
}

// cancelRetry stops a pending reconnect and invalidates one already queued.
func (o *Orchestrator) cancelRetry() {
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	o.retrySeq++
}
