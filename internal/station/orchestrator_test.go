package station

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"reflect"
	"sync"
	"testing"
	"time"
)

// Test doubles

type fakeDriver struct {
	mu          sync.Mutex
	handler     LinkHandler
	starts      int
	startErr    error
	connectErr  error
	connects    []Credential
	disconnects int
	stops       int
	mac         net.HardwareAddr

	// onConnect runs before a connect command is recorded.
	onConnect func(Credential)
}

func (d *fakeDriver) Start(handler LinkHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.startErr != nil {
		return d.startErr
	}
	d.handler = handler
	return nil
}

func (d *fakeDriver) Connect(cred Credential) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.onConnect != nil {
		d.onConnect(cred)
	}
	d.connects = append(d.connects, cred)
	return d.connectErr
}

func (d *fakeDriver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
	return nil
}

func (d *fakeDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDriver) HardwareAddr() (net.HardwareAddr, error) {
	if d.mac == nil {
		return nil, errors.New("no mac")
	}
	return d.mac, nil
}

func (d *fakeDriver) emit(ev LinkEvent) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	h(ev)
}

func (d *fakeDriver) connectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.connects)
}

func (d *fakeDriver) lastConnect() Credential {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.connects) == 0 {
		return Credential{}
	}
	return d.connects[len(d.connects)-1]
}

type fakeStore struct {
	mu      sync.Mutex
	cred    Credential
	ok      bool
	saveErr error
	loadErr error
	clears  int
}

func (s *fakeStore) Save(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cred, s.ok = cred, true
	return nil
}

func (s *fakeStore) Load() (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Credential{}, false, s.loadErr
	}
	return s.cred, s.ok, nil
}

func (s *fakeStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.cred, s.ok = Credential{}, false
	return nil
}

type fakeSession struct {
	id      string
	handler ProvisioningHandler
	params  ProvisioningParams

	mu    sync.Mutex
	stops int
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSession) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeSession) emit(kind ProvisioningEventKind, cred Credential) {
	s.handler(ProvisioningEvent{Kind: kind, SessionID: s.id, Credential: cred})
}

type fakeProvisioner struct {
	mu          sync.Mutex
	provisioned bool
	startErr    error
	sessions    []*fakeSession
}

func (p *fakeProvisioner) Start(params ProvisioningParams, handler ProvisioningHandler) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	s := &fakeSession{id: fmt.Sprintf("session-%d", len(p.sessions)+1), handler: handler, params: params}
	p.sessions = append(p.sessions, s)
	return s, nil
}

func (p *fakeProvisioner) IsProvisioned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provisioned
}

func (p *fakeProvisioner) last(t *testing.T) *fakeSession {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		t.Fatal("no provisioning session was started")
	}
	return p.sessions[len(p.sessions)-1]
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(s State, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

type harness struct {
	orch   *Orchestrator
	driver *fakeDriver
	store  *fakeStore
	prov   *fakeProvisioner
	rec    *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		driver: &fakeDriver{mac: net.HardwareAddr{0x24, 0x0a, 0xc4, 0xab, 0xcd, 0xef}},
		store:  &fakeStore{},
		prov:   &fakeProvisioner{},
		rec:    &recorder{},
	}
	orch, err := New(Config{Driver: h.driver, Store: h.store, Provisioner: h.prov})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	orch.SetObserver(h.rec.observe, nil)
	h.orch = orch
	t.Cleanup(func() { _ = orch.Close() })
	return h
}

// settle waits until everything queued so far, and anything it queued in
// turn, has been processed.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 2; i++ {
		if err := h.orch.call(context.Background(), "sync", func() error { return nil }); err != nil {
			t.Fatalf("sync error = %v", err)
		}
	}
}

func (h *harness) gotIP(t *testing.T, ip string) {
	t.Helper()
	h.driver.emit(LinkEvent{Kind: LinkAddressAcquired, Address: netip.MustParseAddr(ip)})
	h.settle(t)
}

func (h *harness) linkLost(t *testing.T) {
	t.Helper()
	h.driver.emit(LinkEvent{Kind: LinkDisconnected, Reason: "beacon_timeout"})
	h.settle(t)
}

func assertState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	if got := o.State(); got != want {
		t.Fatalf("State() = %v, want %v", got, want)
	}
}

func assertSeen(t *testing.T, r *recorder, want ...State) {
	t.Helper()
	if got := r.seen(); !reflect.DeepEqual(got, want) {
		t.Errorf("observer saw %v, want %v", got, want)
	}
}

// Tests

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Driver: &fakeDriver{}})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New() error = %v, want ErrInvalidArgument", err)
	}
}

func TestInitialState(t *testing.T) {
	h := newHarness(t)
	assertState(t, h.orch, Disconnected)
	if h.orch.Identifier() != "" || h.orch.Address() != "" {
		t.Errorf("Identifier/Address = %q/%q, want empty", h.orch.Identifier(), h.orch.Address())
	}
}

func TestInitializeIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.orch.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := h.orch.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if h.driver.starts != 1 {
		t.Errorf("driver started %d times, want 1", h.driver.starts)
	}
	assertState(t, h.orch, Disconnected)
}

func TestInitializeFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.driver.startErr = errors.New("radio unavailable")

	err := h.orch.Initialize(ctx)
	if !IsInitError(err) {
		t.Fatalf("Initialize() error = %v, want init error", err)
	}

	h.driver.startErr = nil
	if err := h.orch.Initialize(ctx); err != nil {
		t.Errorf("retry Initialize() error = %v", err)
	}
}

func TestConnectStoredWithCredential(t *testing.T) {
	h := newHarness(t)
	h.store.cred, h.store.ok = Credential{Identifier: "HomeNet", Secret: "pw123456"}, true

	if err := h.orch.ConnectStored(context.Background()); err != nil {
		t.Fatalf("ConnectStored() error = %v", err)
	}
	assertState(t, h.orch, Connecting)
	if got := h.driver.lastConnect(); got.Identifier != "HomeNet" {
		t.Errorf("driver connect = %v, want HomeNet", got)
	}

	h.gotIP(t, "192.168.1.42")
	assertState(t, h.orch, Connected)
	if h.orch.Identifier() != "HomeNet" {
		t.Errorf("Identifier() = %q, want HomeNet", h.orch.Identifier())
	}
	if h.orch.Address() != "192.168.1.42" {
		t.Errorf("Address() = %q, want 192.168.1.42", h.orch.Address())
	}
	assertSeen(t, h.rec, Connecting, Connected)
}

func TestConnectStoredFallsBackToProvisioning(t *testing.T) {
	h := newHarness(t)

	if err := h.orch.ConnectStored(context.Background()); err != nil {
		t.Fatalf("ConnectStored() error = %v", err)
	}
	assertState(t, h.orch, Provisioning)
	assertSeen(t, h.rec, Provisioning)

	sess := h.prov.last(t)
	if sess.params.Name != "zubIOT_ABCDEF" {
		t.Errorf("SoftAP name = %q, want zubIOT_ABCDEF", sess.params.Name)
	}
	if sess.params.Security != SecurityAuthenticated || sess.params.PoP != DefaultPoP {
		t.Errorf("security = %v/%q, want authenticated/%q", sess.params.Security, sess.params.PoP, DefaultPoP)
	}
	if h.store.clears != 1 {
		t.Errorf("store cleared %d times, want 1", h.store.clears)
	}
}

func TestConnectStoredLoadErrorKeepsCredential(t *testing.T) {
	h := newHarness(t)
	h.store.loadErr = errors.New("disk on fire")

	err := h.orch.ConnectStored(context.Background())
	if !IsPersistenceError(err) {
		t.Fatalf("ConnectStored() error = %v, want persistence error", err)
	}
	if h.store.clears != 0 {
		t.Errorf("store cleared %d times, want 0", h.store.clears)
	}
	assertState(t, h.orch, Disconnected)
}

func TestProvisioningEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.orch.ConnectStored(ctx); err != nil {
		t.Fatalf("ConnectStored() error = %v", err)
	}
	sess := h.prov.last(t)

	cred := Credential{Identifier: "Office", Secret: "s3cretpass"}
	sess.emit(ProvisioningStarted, Credential{})
	sess.emit(ProvisioningCredentialsReceived, cred)
	sess.emit(ProvisioningCredentialsSucceeded, Credential{})
	sess.emit(ProvisioningEnded, Credential{})
	h.settle(t)

	assertState(t, h.orch, Connecting)
	if sess.stopCount() != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopCount())
	}
	if got, ok, _ := h.store.Load(); !ok || got != cred {
		t.Errorf("stored credential = %v (ok=%v), want %v", got, ok, cred)
	}
	if got := h.driver.lastConnect(); got != cred {
		t.Errorf("driver connect = %v, want %v", got, cred)
	}

	h.gotIP(t, "10.0.0.7")
	assertState(t, h.orch, Connected)
	assertSeen(t, h.rec, Provisioning, Connecting, Connected)
}

func TestProvisioningEndsWithoutCredential(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.ConnectStored(context.Background()); err != nil {
		t.Fatalf("ConnectStored() error = %v", err)
	}
	sess := h.prov.last(t)

	sess.emit(ProvisioningEnded, Credential{})
	h.settle(t)

	assertState(t, h.orch, Error)
	if sess.stopCount() != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopCount())
	}
	if h.driver.connectCount() != 0 {
		t.Errorf("driver connects = %d, want 0", h.driver.connectCount())
	}
}

func TestProvisioningSaveFailureEndsInError(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.ConnectStored(context.Background()); err != nil {
		t.Fatalf("ConnectStored() error = %v", err)
	}
	sess := h.prov.last(t)

	h.store.mu.Lock()
	h.store.saveErr = errors.New("flash worn out")
	h.store.mu.Unlock()

	sess.emit(ProvisioningCredentialsReceived, Credential{Identifier: "Office", Secret: "s3cretpass"})
	sess.emit(ProvisioningEnded, Credential{})
	h.settle(t)

	assertState(t, h.orch, Error)
}

func TestStaleProvisioningEventIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	params := ProvisioningParams{Name: "zubIOT_000001"}

	if err := h.orch.StartProvisioning(ctx, params); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	sess := h.prov.last(t)
	if err := h.orch.StopProvisioning(ctx); err != nil {
		t.Fatalf("StopProvisioning() error = %v", err)
	}
	assertState(t, h.orch, Disconnected)

	sess.emit(ProvisioningEnded, Credential{})
	h.settle(t)

	assertState(t, h.orch, Disconnected)
	if sess.stopCount() != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopCount())
	}
}

func TestStartProvisioningIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	params := ProvisioningParams{Name: "zubIOT_000001"}

	if err := h.orch.StartProvisioning(ctx, params); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	if err := h.orch.StartProvisioning(ctx, params); err != nil {
		t.Fatalf("second StartProvisioning() error = %v", err)
	}
	if n := len(h.prov.sessions); n != 1 {
		t.Errorf("sessions started = %d, want 1", n)
	}
	assertSeen(t, h.rec, Provisioning)
}

func TestStartProvisioningInvalidParams(t *testing.T) {
	h := newHarness(t)
	err := h.orch.StartProvisioning(context.Background(), ProvisioningParams{Name: "ap", Passphrase: "short"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("StartProvisioning() error = %v, want ErrInvalidArgument", err)
	}
	assertState(t, h.orch, Disconnected)
}

func TestStartProvisioningWhenAlreadyProvisioned(t *testing.T) {
	h := newHarness(t)
	h.prov.provisioned = true
	h.store.cred, h.store.ok = Credential{Identifier: "HomeNet", Secret: "pw123456"}, true

	if err := h.orch.StartProvisioning(context.Background(), ProvisioningParams{Name: "zubIOT_000001"}); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	assertState(t, h.orch, Connecting)
	if len(h.prov.sessions) != 0 {
		t.Errorf("sessions started = %d, want 0", len(h.prov.sessions))
	}
	if !h.store.ok {
		t.Error("stored credential should be kept")
	}
}

func TestStartProvisioningFromConnected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.Connect(ctx, "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")

	if err := h.orch.StartProvisioning(ctx, ProvisioningParams{Name: "zubIOT_000001"}); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	assertState(t, h.orch, Provisioning)
	assertSeen(t, h.rec, Connecting, Connected, Disconnected, Provisioning)
	if h.driver.disconnects != 1 {
		t.Errorf("driver disconnects = %d, want 1", h.driver.disconnects)
	}
}

func TestStopProvisioningWithoutSession(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.StopProvisioning(context.Background()); err != nil {
		t.Errorf("StopProvisioning() error = %v", err)
	}
	assertState(t, h.orch, Disconnected)
	assertSeen(t, h.rec)
}

func TestProvisioningStartFailure(t *testing.T) {
	h := newHarness(t)
	h.prov.startErr = errors.New("softap busy")

	err := h.orch.StartProvisioning(context.Background(), ProvisioningParams{Name: "zubIOT_000001"})
	if !IsAttemptFailed(err) {
		t.Fatalf("StartProvisioning() error = %v, want attempt failed", err)
	}
	assertState(t, h.orch, Error)
}

func TestConnectWithSave(t *testing.T) {
	h := newHarness(t)
	want := Credential{Identifier: "HomeNet", Secret: "pw123456"}

	// The credential must be durable before the radio is told to connect.
	var storedAtConnect Credential
	var okAtConnect bool
	h.driver.onConnect = func(Credential) {
		storedAtConnect, okAtConnect, _ = h.store.Load()
	}

	if err := h.orch.Connect(context.Background(), want.Identifier, want.Secret, true); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if h.driver.connectCount() != 1 {
		t.Fatalf("driver connects = %d, want 1", h.driver.connectCount())
	}
	if !okAtConnect || storedAtConnect != want {
		t.Errorf("stored credential at connect = %v (ok=%v), want %v", storedAtConnect, okAtConnect, want)
	}
	assertState(t, h.orch, Connecting)
}

func TestConnectWithoutSaveLeavesStore(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, ok, _ := h.store.Load(); ok {
		t.Error("credential should not be stored")
	}
}

func TestConnectSaveFailure(t *testing.T) {
	h := newHarness(t)
	h.store.saveErr = errors.New("read-only")

	err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", true)
	if !IsPersistenceError(err) {
		t.Fatalf("Connect() error = %v, want persistence error", err)
	}
	if h.driver.connectCount() != 0 {
		t.Errorf("driver connects = %d, want 0", h.driver.connectCount())
	}
	assertState(t, h.orch, Disconnected)
}

func TestConnectInvalidArguments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		ssid   string
		secret string
	}{
		{"empty identifier", "", "pw"},
		{"long identifier", "abcdefghijklmnopqrstuvwxyz0123456", "pw"},
		{"long secret", "HomeNet", string(make([]byte, MaxSecretLen+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.orch.Connect(ctx, tt.ssid, tt.secret, false)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Connect() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
	assertState(t, h.orch, Disconnected)
}

func TestConnectDriverFailure(t *testing.T) {
	h := newHarness(t)
	h.driver.connectErr = errors.New("radio busy")

	err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false)
	if !IsAttemptFailed(err) {
		t.Fatalf("Connect() error = %v, want attempt failed", err)
	}
	assertState(t, h.orch, Error)
	assertSeen(t, h.rec, Error)
}

func TestConnectWhileConnected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.Connect(ctx, "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")

	if err := h.orch.Connect(ctx, "Office", "s3cretpass", false); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	assertState(t, h.orch, Connecting)
	assertSeen(t, h.rec, Connecting, Connected, Disconnected, Connecting)
	if got := h.driver.lastConnect(); got.Identifier != "Office" {
		t.Errorf("driver connect = %v, want Office", got)
	}
	if h.orch.Address() != "" {
		t.Errorf("Address() = %q, want empty", h.orch.Address())
	}
}

func TestConnectDuringProvisioningStopsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.StartProvisioning(ctx, ProvisioningParams{Name: "zubIOT_000001"}); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	sess := h.prov.last(t)

	if err := h.orch.Connect(ctx, "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	assertState(t, h.orch, Connecting)
	if sess.stopCount() != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopCount())
	}
}

func TestLinkLossReconnects(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")

	h.linkLost(t)
	assertState(t, h.orch, Connecting)
	if h.driver.connectCount() != 2 {
		t.Errorf("driver connects = %d, want 2", h.driver.connectCount())
	}
	if h.orch.Address() != "" {
		t.Errorf("Address() = %q, want empty", h.orch.Address())
	}

	// A failed association while connecting retries silently.
	h.linkLost(t)
	assertState(t, h.orch, Connecting)
	if h.driver.connectCount() != 3 {
		t.Errorf("driver connects = %d, want 3", h.driver.connectCount())
	}

	h.gotIP(t, "192.168.1.3")
	assertState(t, h.orch, Connected)
	assertSeen(t, h.rec, Connecting, Connected, Connecting, Connected)
}

func TestRetryExhausted(t *testing.T) {
	h := newHarness(t)
	h.orch.cfg.Reconnect = ReconnectPolicy{MaxAttempts: 1}.BackOff()

	if err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	h.linkLost(t)
	assertState(t, h.orch, Connecting)
	if h.driver.connectCount() != 2 {
		t.Errorf("driver connects = %d, want 2", h.driver.connectCount())
	}

	h.linkLost(t)
	assertState(t, h.orch, Error)
	if h.driver.connectCount() != 2 {
		t.Errorf("driver connects = %d, want 2", h.driver.connectCount())
	}
}

func TestReconnectAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.orch.cfg.Reconnect = ReconnectPolicy{InitialInterval: 10 * time.Millisecond, MaxInterval: 10 * time.Millisecond}.BackOff()

	if err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")
	h.linkLost(t)

	deadline := time.Now().Add(2 * time.Second)
	for h.driver.connectCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reconnect was not issued")
		}
		time.Sleep(5 * time.Millisecond)
	}
	assertState(t, h.orch, Connecting)
}

func TestReconnectAfterLongConnection(t *testing.T) {
	h := newHarness(t)
	h.orch.cfg.Reconnect = ReconnectPolicy{InitialInterval: 10 * time.Millisecond, MaxElapsed: 100 * time.Millisecond}.BackOff()

	if err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")

	// Stay connected past the retry budget before the link drops.
	time.Sleep(300 * time.Millisecond)
	h.linkLost(t)

	deadline := time.Now().Add(2 * time.Second)
	for h.driver.connectCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("reconnect was not issued, state = %v", h.orch.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.orch.State(); got != Connecting {
		t.Errorf("State() = %v, want %v", got, Connecting)
	}
}

func TestDisconnectStopsRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.Connect(ctx, "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")

	if err := h.orch.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	assertState(t, h.orch, Disconnected)

	// The radio reports the drop the command caused.
	h.linkLost(t)
	assertState(t, h.orch, Disconnected)
	if h.driver.connectCount() != 1 {
		t.Errorf("driver connects = %d, want 1", h.driver.connectCount())
	}
	if h.orch.Identifier() != "" {
		t.Errorf("Identifier() = %q, want empty", h.orch.Identifier())
	}
}

func TestDisconnectBeforeInitialize(t *testing.T) {
	h := newHarness(t)
	err := h.orch.Disconnect(context.Background())
	if !IsNotInitialized(err) {
		t.Errorf("Disconnect() error = %v, want not initialized", err)
	}
}

func TestDisconnectDuringProvisioning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.StartProvisioning(ctx, ProvisioningParams{Name: "zubIOT_000001"}); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	sess := h.prov.last(t)

	if err := h.orch.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	assertState(t, h.orch, Disconnected)
	if sess.stopCount() != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopCount())
	}
}

func TestLinkLossDuringProvisioningIgnored(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.StartProvisioning(context.Background(), ProvisioningParams{Name: "zubIOT_000001"}); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	h.linkLost(t)
	assertState(t, h.orch, Provisioning)
	if h.driver.connectCount() != 0 {
		t.Errorf("driver connects = %d, want 0", h.driver.connectCount())
	}
}

func TestLateAddressIgnored(t *testing.T) {
	h := newHarness(t)
	if err := h.orch.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	h.gotIP(t, "192.168.1.2")
	assertState(t, h.orch, Disconnected)
	if h.orch.Address() != "" {
		t.Errorf("Address() = %q, want empty", h.orch.Address())
	}
}

func TestObserverMayReadState(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var reads []State
	h.orch.SetObserver(func(s State, ctx any) {
		mu.Lock()
		defer mu.Unlock()
		if ctx != "tag" {
			t.Errorf("observer context = %v, want tag", ctx)
		}
		reads = append(reads, h.orch.State())
	}, "tag")

	if err := h.orch.Connect(context.Background(), "HomeNet", "pw123456", false); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(reads, []State{Connecting}) {
		t.Errorf("observer reads = %v, want [CONNECTING]", reads)
	}
}

func TestStoredCredentialQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ok, err := h.orch.HasStoredCredential(ctx)
	if err != nil || ok {
		t.Fatalf("HasStoredCredential() = %v, %v; want false, nil", ok, err)
	}

	h.store.cred, h.store.ok = Credential{Identifier: "HomeNet"}, true
	ok, err = h.orch.HasStoredCredential(ctx)
	if err != nil || !ok {
		t.Fatalf("HasStoredCredential() = %v, %v; want true, nil", ok, err)
	}

	if err := h.orch.ClearStoredCredential(ctx); err != nil {
		t.Fatalf("ClearStoredCredential() error = %v", err)
	}
	if h.store.ok {
		t.Error("store should be empty after ClearStoredCredential")
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.StartProvisioning(ctx, ProvisioningParams{Name: "zubIOT_000001"}); err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	sess := h.prov.last(t)

	if err := h.orch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if sess.stopCount() != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopCount())
	}
	if h.driver.stops != 1 {
		t.Errorf("driver stopped %d times, want 1", h.driver.stops)
	}
	assertState(t, h.orch, Disconnected)

	if err := h.orch.Connect(ctx, "HomeNet", "pw123456", false); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect() after Close error = %v, want ErrClosed", err)
	}
	if err := h.orch.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestCallHonoursContext(t *testing.T) {
	h := newHarness(t)
	block := make(chan struct{})
	defer close(block)

	// Occupy the loop so the next command waits.
	h.orch.box.post(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.orch.Initialize(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Initialize() error = %v, want deadline exceeded", err)
	}
}
