package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/station"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no deadline
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the status server configuration
type Config struct {
	Host     string
	Port     int
	CertPath string // Serve HTTPS when both CertPath and KeyPath are set
	KeyPath  string
}

// Addr returns host:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StateSource is the read side of a station orchestrator
type StateSource interface {
	State() station.State
	Identifier() string
	Address() string
}

// Report is the body of GET /status and each websocket frame
type Report struct {
	State      station.State `json:"state"`
	Identifier string        `json:"ssid,omitempty"`
	Address    string        `json:"address,omitempty"`
	Time       time.Time     `json:"time"`
}

// Server publishes station state over HTTP, websocket and Prometheus
type Server struct {
	config    *Config
	src       StateSource
	metrics   *Metrics
	registry  *prometheus.Registry
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader
	httpSrv   *http.Server
	listener  net.Listener
	wg        sync.WaitGroup

	mu          sync.Mutex
	activeConns map[*client]struct{}
	closed      bool
}

// New creates a status server for src. Metrics are registered on a
// private registry served at /metrics.
func New(config *Config, src StateSource) (*Server, error) {
	if src == nil {
		return nil, errors.New("server: nil state source")
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	metrics.setState(src.State())

	return &Server{
		config:      config,
		src:         src,
		metrics:     metrics,
		registry:    registry,
		tlsConfig:   tlsConfig,
		activeConns: make(map[*client]struct{}),
	}, nil
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// report builds a Report from the current snapshot
func (s *Server) report() Report {
	return Report{
		State:      s.src.State(),
		Identifier: s.src.Identifier(),
		Address:    s.src.Address(),
		Time:       time.Now().UTC(),
	}
}

// Observe records a state change and pushes it to websocket clients. It
// has the station.Observer signature and never blocks.
func (s *Server) Observe(state station.State, _ any) {
	s.metrics.observe(state)

	r := s.report()
	// The snapshot may already be newer; report the state we were told about.
	r.State = state

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.activeConns {
		if !c.enqueue(r) {
			logging.Warn("Status client too slow, dropping", zap.String("remote_addr", c.remoteAddr))
			s.dropLocked(c)
		}
	}
}

// Start listens and serves until ctx is done, then shuts down
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpSrv
	s.mu.Unlock()

	logging.Info("Status server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ListenAddr returns the bound address once Start is listening
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, closes websocket clients and waits for
// their goroutines
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down status server...")

	s.mu.Lock()
	s.closed = true
	srv := s.httpSrv
	for c := range s.activeConns {
		s.dropLocked(c)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Debug("All status clients closed")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}
	return err
}

// GetActiveConnections returns the number of websocket clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
