package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Reports queued per client before it is dropped
	sendBuffer = 16
)

// client is one websocket subscriber
type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan Report
	done       chan struct{}
}

// enqueue queues r without blocking; false means the queue is full
func (c *client) enqueue(r Report) bool {
	select {
	case c.send <- r:
		return true
	default:
		return false
	}
}

// dropLocked removes c and stops its writer. s.mu must be held.
func (s *Server) dropLocked(c *client) {
	if _, ok := s.activeConns[c]; !ok {
		return
	}
	delete(s.activeConns, c)
	close(c.done)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan Report, sendBuffer),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.activeConns[c] = struct{}{}
	// The current state goes first so a new client never waits for a change.
	c.enqueue(s.report())
	s.metrics.clients.Set(float64(len(s.activeConns)))
	s.wg.Add(2)
	s.mu.Unlock()

	logging.Debug("Status client connected", zap.String("remote_addr", c.remoteAddr))

	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c)
	}()
}

// readPump consumes control frames until the peer goes away
func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		s.dropLocked(c)
		s.metrics.clients.Set(float64(len(s.activeConns)))
		s.mu.Unlock()
		logging.Debug("Status client disconnected", zap.String("remote_addr", c.remoteAddr))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued reports and keepalive pings
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	}()

	for {
		select {
		case r := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(r); err != nil {
				logging.Debug("Status write failed", zap.String("remote_addr", c.remoteAddr), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
