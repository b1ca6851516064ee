// Package logging provides structured logging for the zubwifi binaries.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the connection manager: state transitions,
// radio events, provisioning session events and local HTTP traffic.
//
// # Log Levels
//
//   - Debug: Radio events, mailbox activity, websocket frames
//   - Info: State transitions, provisioning sessions, HTTP requests
//   - Warn: Dropped links, rejected provisioning attempts, retries
//   - Error: Persistence failures, collaborator start failures
//
// # Structured Logging
//
//	logging.Info("Connecting",
//	    zap.String("ssid", "home"),
//	    zap.Bool("save", true),
//	)
//
//	logging.LogTransition("DISCONNECTED", "CONNECTING", "connect")
//	logging.LogProvisioningEvent(sessionID, "credentials_received")
//
// Secrets never reach the log in clear text; use Redact.
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Without an explicit level the ZUBWIFI_LOG_LEVEL environment variable is
// consulted, and when that is empty the logger is a no-op so CLI output stays
// clean.
package logging
