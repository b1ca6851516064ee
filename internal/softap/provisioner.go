package softap

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/station"
)

const (
	// DefaultListenAddr is where sessions serve when Config.ListenAddr is empty.
	DefaultListenAddr = ":8080"

	// DefaultLinger is how long a session keeps serving after accepting a credential.
	DefaultLinger = 2 * time.Second

	// DefaultShutdownTimeout bounds Stop.
	DefaultShutdownTimeout = 5 * time.Second
)

// ErrSessionActive is returned by Start while another session is running.
var ErrSessionActive = errors.New("softap: a provisioning session is already running")

// Config configures a Provisioner.
type Config struct {
	// ListenAddr is the TCP address sessions serve on.
	ListenAddr string
	// Advertise registers each session as an mDNS service.
	Advertise bool
	// Linger is how long an accepting session keeps serving before it ends.
	// Negative ends immediately.
	Linger time.Duration
	// ShutdownTimeout bounds the HTTP shutdown in Stop.
	ShutdownTimeout time.Duration
}

// Provisioner starts provisioning sessions. It implements station.Provisioner.
type Provisioner struct {
	cfg Config

	mu          sync.Mutex
	active      *Session
	provisioned bool
}

var _ station.Provisioner = (*Provisioner)(nil)

// NewProvisioner creates a provisioner. Zero fields in cfg take defaults.
func NewProvisioner(cfg Config) *Provisioner {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Linger == 0 {
		cfg.Linger = DefaultLinger
	}
	if cfg.Linger < 0 {
		cfg.Linger = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Provisioner{cfg: cfg}
}

// Start opens a session advertising params and reporting to handler.
func (p *Provisioner) Start(params station.ProvisioningParams, handler station.ProvisioningHandler) (station.Session, error) {
	s, err := p.StartSession(params, handler)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// StartSession is Start returning the concrete session.
func (p *Provisioner) StartSession(params station.ProvisioningParams, handler station.ProvisioningHandler) (*Session, error) {
	if handler == nil {
		return nil, fmt.Errorf("softap: nil event handler")
	}

	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return nil, ErrSessionActive
	}

	ln, err := net.Listen("tcp", p.cfg.ListenAddr)
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("softap: failed to listen on %s: %w", p.cfg.ListenAddr, err)
	}

	s := &Session{
		id:       uuid.NewString(),
		params:   params,
		handler:  handler,
		prov:     p,
		linger:   p.cfg.Linger,
		timeout:  p.cfg.ShutdownTimeout,
		listener: ln,
		state:    StateAdvertising,
		clients:  make(map[*websocket.Conn]struct{}),
	}
	s.httpSrv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Provisioning server failed", zap.String("session_id", s.id), zap.Error(err))
		}
	}()

	if p.cfg.Advertise {
		if err := s.advertise(); err != nil {
			p.mu.Unlock()
			_ = s.httpSrv.Close()
			return nil, err
		}
	}

	p.active = s
	p.mu.Unlock()

	logging.Info("Provisioning session listening",
		zap.String("session_id", s.id),
		zap.String("addr", s.Addr()),
		zap.String("softap", params.Name),
		zap.Bool("mdns", p.cfg.Advertise),
	)

	s.emit(station.ProvisioningStarted, station.Credential{}, "")
	return s, nil
}

// IsProvisioned reports whether any session accepted a credential.
func (p *Provisioner) IsProvisioned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provisioned
}

// Active returns the running session, or nil.
func (p *Provisioner) Active() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Provisioner) markProvisioned() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provisioned = true
}

func (p *Provisioner) release(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == s {
		p.active = nil
	}
}

func (s *Session) advertise() error {
	port := s.listener.Addr().(*net.TCPAddr).Port

	sec := "1"
	if s.params.Security == station.SecurityOpen {
		sec = "0"
	}
	txt := []string{
		TXTSecurity + "=" + sec,
		TXTSessionID + "=" + s.id,
	}

	server, err := zeroconf.Register(s.params.Name, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("softap: failed to register mDNS service: %w", err)
	}
	s.mdns = server
	return nil
}

func (s *Session) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get(PathStatus, s.handleStatus)
	r.Post(PathConfig, s.handleConfig)
	r.Get(PathEvents, s.handleEvents)
	return r
}

// requestLogger logs each request with its response status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, ww.Status())
	})
}
