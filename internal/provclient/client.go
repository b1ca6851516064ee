package provclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/softap"
)

const (
	// DefaultPort is the port a provisioning session listens on
	DefaultPort = 8080

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retries for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between retries
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff delay
	DefaultMaxRetryDelay = 10 * time.Second
)

// Client talks to one provisioning session
type Client struct {
	// BaseURL is the session base URL (e.g., "http://192.168.4.1:8080")
	BaseURL string

	// PoP is the proof of possession sent on authenticated sessions
	PoP string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration

	// MaxRetryDelay caps the delay between retries
	MaxRetryDelay time.Duration

	// Dialer opens event streams
	Dialer *websocket.Dialer
}

// NewClient creates a client for the session at host:port
func NewClient(host string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL creates a client for a session base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		Dialer:        &websocket.Dialer{HandshakeTimeout: DefaultTimeout},
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
	c.Dialer.HandshakeTimeout = timeout
}

// SetPoP sets the proof of possession
func (c *Client) SetPoP(pop string) {
	c.PoP = pop
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

func (c *Client) host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Hostname()
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.RetryDelay
	eb.MaxInterval = c.MaxRetryDelay
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if c.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(c.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// retry runs op until it succeeds, fails permanently or runs out of retries
func (c *Client) retry(ctx context.Context, what string, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, c.newBackOff(ctx), func(err error, wait time.Duration) {
		logging.Debug("Retrying provisioning request",
			zap.String("request", what),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

// Status fetches the session status
func (c *Client) Status(ctx context.Context) (*softap.Status, error) {
	var status softap.Status
	err := c.retry(ctx, "status", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+softap.PathStatus, nil)
		if err != nil {
			return newParseError("failed to create request", err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return newNetworkError("failed to fetch status", err, c.host())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return newNetworkError("failed to read response", err, c.host())
		}
		if resp.StatusCode != http.StatusOK {
			return newStatusError(resp.StatusCode, "")
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return newParseError("failed to decode status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Ping checks the session answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Status(ctx)
	return err
}

// SendCredentials submits a network credential to the session
func (c *Client) SendCredentials(ctx context.Context, cfg WiFiConfig) error {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Info("Sending credential",
		zap.String("url", c.BaseURL),
		zap.String("ssid", cfg.SSID),
		zap.String("security", cfg.SecurityType),
	)

	form := cfg.ToFormData().Encode()
	return c.retry(ctx, "config", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+softap.PathConfig, strings.NewReader(form))
		if err != nil {
			return newParseError("failed to create request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if c.PoP != "" {
			req.Header.Set(softap.HeaderPoP, c.PoP)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return newNetworkError("failed to send credential", err, c.host())
		}
		defer resp.Body.Close()

		var cr softap.ConfigResponse
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return newNetworkError("failed to read response", err, c.host())
		}
		if len(body) > 0 {
			// Error bodies may be empty or plain text; the status code decides.
			_ = json.Unmarshal(body, &cr)
		}
		if resp.StatusCode != http.StatusOK {
			return newStatusError(resp.StatusCode, cr.Reason)
		}
		if !cr.Accepted {
			return &Error{Type: ErrTypeRejected, Message: "device did not accept the credential", StatusCode: resp.StatusCode}
		}
		return nil
	})
}

// WatchEvents streams session events to fn until fn returns false, the
// session closes the stream or ctx is done. Events the session sent before
// the stream opened are replayed first.
func (c *Client) WatchEvents(ctx context.Context, fn func(softap.Event) bool) error {
	u, err := url.Parse(c.BaseURL + softap.PathEvents)
	if err != nil {
		return newParseError("invalid session URL", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.PoP != "" {
		header.Set(softap.HeaderPoP, c.PoP)
	}

	conn, resp, err := c.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return newStatusError(resp.StatusCode, "")
		}
		return newNetworkError("failed to open event stream", err, c.host())
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev softap.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
				errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return newNetworkError("event stream failed", err, c.host())
		}
		if !fn(ev) {
			return nil
		}
	}
}

// String describes the client target
func (c *Client) String() string {
	return fmt.Sprintf("provclient(%s)", c.BaseURL)
}
