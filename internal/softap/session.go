package softap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/station"
)

const (
	// Time allowed to write a frame to a websocket client
	writeWait = 5 * time.Second

	// Largest frame accepted from a websocket client
	maxClientMessage = 512
)

// Session is one running provisioning session. It implements station.Session.
type Session struct {
	id      string
	params  station.ProvisioningParams
	handler station.ProvisioningHandler
	prov    *Provisioner
	linger  time.Duration
	timeout time.Duration

	listener net.Listener
	httpSrv  *http.Server
	mdns     *zeroconf.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	state    string
	stopped  bool
	history  []Event
	clients  map[*websocket.Conn]struct{}
	endTimer *time.Timer
}

var _ station.Session = (*Session)(nil)

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Addr returns the address the session serves on.
func (s *Session) Addr() string {
	return s.listener.Addr().String()
}

// URL returns the base URL of the session.
func (s *Session) URL() string {
	return "http://" + s.Addr()
}

// State returns the session state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop tears the session down. It does not report an "ended" event.
// Calls after the first return nil.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.state = StateEnded
	if s.endTimer != nil {
		s.endTimer.Stop()
	}
	for conn := range s.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.clients = nil
	s.mu.Unlock()

	if s.mdns != nil {
		s.mdns.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)

	s.prov.release(s)
	logging.Info("Provisioning session stopped", zap.String("session_id", s.id))

	if err != nil {
		return fmt.Errorf("softap: failed to shut down session: %w", err)
	}
	return nil
}

func (s *Session) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		SessionID:   s.id,
		Name:        s.params.Name,
		Security:    s.params.Security.String(),
		Provisioned: s.prov.IsProvisioned(),
	}
	s.mu.Lock()
	status.State = s.state
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

func (s *Session) handleConfig(w http.ResponseWriter, r *http.Request) {
	if s.params.Security == station.SecurityAuthenticated && r.Header.Get(HeaderPoP) != s.params.PoP {
		s.reject(w, http.StatusUnauthorized, "invalid proof of possession")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.reject(w, http.StatusBadRequest, "malformed form data")
		return
	}

	cred, reason := credentialFromForm(r.PostForm)
	if reason != "" {
		s.reject(w, http.StatusBadRequest, reason)
		return
	}

	s.mu.Lock()
	if s.stopped || s.state != StateAdvertising {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, ConfigResponse{Reason: "credentials already received"})
		return
	}
	s.state = StateReceived
	s.mu.Unlock()

	s.prov.markProvisioned()
	s.emit(station.ProvisioningCredentialsReceived, cred, "")
	s.emit(station.ProvisioningCredentialsSucceeded, station.Credential{}, "")

	writeJSON(w, http.StatusOK, ConfigResponse{Accepted: true})
	s.scheduleEnd()
}

func (s *Session) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[conn] = struct{}{}
	for _, ev := range s.history {
		if err := writeEvent(conn, ev); err != nil {
			break
		}
	}
	s.mu.Unlock()

	logging.Debug("Event stream client connected", zap.String("remote_addr", r.RemoteAddr))

	// Clients only listen; reading detects the close.
	conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// reject answers a refused config request and reports it to the handler.
func (s *Session) reject(w http.ResponseWriter, status int, reason string) {
	logging.Warn("Provisioning credential rejected",
		zap.String("session_id", s.id),
		zap.String("reason", reason),
	)
	s.emit(station.ProvisioningCredentialsFailed, station.Credential{}, reason)
	writeJSON(w, status, ConfigResponse{Reason: reason})
}

func (s *Session) scheduleEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.endTimer = time.AfterFunc(s.linger, s.end)
}

func (s *Session) end() {
	s.mu.Lock()
	if s.stopped || s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	s.mu.Unlock()

	s.emit(station.ProvisioningEnded, station.Credential{}, "")
}

// emit records an event, pushes it to stream clients and reports it to the
// handler. Nothing is reported once the session is stopped.
func (s *Session) emit(kind station.ProvisioningEventKind, cred station.Credential, reason string) {
	ev := Event{
		SessionID: s.id,
		Kind:      kind.String(),
		SSID:      cred.Identifier,
		Reason:    reason,
		Time:      time.Now().UTC(),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history, ev)
	for conn := range s.clients {
		if err := writeEvent(conn, ev); err != nil {
			logging.Debug("Dropping event stream client", zap.Error(err))
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
	s.mu.Unlock()

	s.handler(station.ProvisioningEvent{
		Kind:       kind,
		SessionID:  s.id,
		Credential: cred,
		Reason:     reason,
	})
}

// credentialFromForm builds the credential from a config request. A
// non-empty reason means the request is refused.
func credentialFromForm(form url.Values) (station.Credential, string) {
	ssid := form.Get(FieldSSID)
	pass := form.Get(FieldPassphrase)
	if ssid == "" {
		return station.Credential{}, "missing SSID"
	}

	sec := strings.ToUpper(form.Get(FieldSecurity))
	if sec == "" {
		sec = SecurityWPA2
		if pass == "" {
			sec = SecurityOpen
		}
	}

	var cred station.Credential
	switch sec {
	case SecurityOpen:
		cred = station.Credential{Identifier: ssid}
	case SecurityWPA2:
		if len(pass) < 8 || len(pass) > station.MaxSecretLen {
			return station.Credential{}, fmt.Sprintf("passphrase must be 8-%d characters", station.MaxSecretLen)
		}
		cred = station.Credential{Identifier: ssid, Secret: pass}
	default:
		return station.Credential{}, fmt.Sprintf("unsupported security type %q", sec)
	}

	if len(cred.Identifier) > station.MaxIdentifierLen {
		return station.Credential{}, fmt.Sprintf("SSID longer than %d bytes", station.MaxIdentifierLen)
	}
	return cred, ""
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}
