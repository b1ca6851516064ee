package provclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of a provisioning client error
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level failure talking to the device
	ErrTypeNetwork ErrorType = iota
	// ErrTypePoP indicates the device refused the proof-of-possession string
	ErrTypePoP
	// ErrTypeRejected indicates the device refused the credential itself
	ErrTypeRejected
	// ErrTypeConflict indicates the session already accepted a credential
	ErrTypeConflict
	// ErrTypeHTTP indicates any other unexpected HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates a response body that could not be decoded
	ErrTypeParse
	// ErrTypeValidation indicates a credential refused before sending
	ErrTypeValidation
	// ErrTypeTimeout indicates the device did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the session port
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates the device hostname could not be resolved
	ErrTypeDNS
)

// NetworkErrorSubtype narrows ErrTypeNetwork
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypePoP:
		return "Proof of Possession Rejected"
	case ErrTypeRejected:
		return "Credential Rejected"
	case ErrTypeConflict:
		return "Already Provisioned"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every Client operation that fails
type Error struct {
	Type           ErrorType
	Message        string
	StatusCode     int // HTTP status code (if any)
	Err            error
	NetworkSubtype NetworkErrorSubtype
	Host           string
	Retryable      bool
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error to an *Error
func ClassifyNetworkError(err error, host string) *Error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}

	if os.IsTimeout(err) {
		return &Error{Type: ErrTypeTimeout, Message: "request timed out", Err: err, Host: host, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Type: ErrTypeDNS, Message: fmt.Sprintf("cannot resolve %s", dnsErr.Name), Err: err, Host: host}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &Error{Type: ErrTypeConnectionRefused, Message: "device refused connection", Err: err, Host: host, Retryable: true}
	case errors.Is(err, syscall.EHOSTUNREACH):
		return &Error{Type: ErrTypeNetwork, Message: "host unreachable", Err: err,
			NetworkSubtype: NetworkErrorHostUnreachable, Host: host, Retryable: true}
	case errors.Is(err, syscall.ENETUNREACH):
		return &Error{Type: ErrTypeNetwork, Message: "network unreachable", Err: err,
			NetworkSubtype: NetworkErrorNetworkUnreachable, Host: host, Retryable: true}
	}

	return &Error{Type: ErrTypeNetwork, Message: "network error", Err: err, Host: host, Retryable: true}
}

// newNetworkError classifies err and replaces its message
func newNetworkError(message string, err error, host string) *Error {
	classified := ClassifyNetworkError(err, host)
	classified.Message = message
	return classified
}

// newStatusError maps an unexpected response status to an *Error
func newStatusError(status int, reason string) *Error {
	if reason == "" {
		reason = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		return &Error{Type: ErrTypePoP, Message: reason, StatusCode: status}
	case http.StatusBadRequest:
		return &Error{Type: ErrTypeRejected, Message: reason, StatusCode: status}
	case http.StatusConflict:
		return &Error{Type: ErrTypeConflict, Message: reason, StatusCode: status}
	default:
		return &Error{Type: ErrTypeHTTP, Message: reason, StatusCode: status, Retryable: status >= 500}
	}
}

func newParseError(message string, err error) *Error {
	return &Error{Type: ErrTypeParse, Message: message, Err: err}
}

func newValidationError(message string) *Error {
	return &Error{Type: ErrTypeValidation, Message: message}
}

func typeOf(err error) (ErrorType, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return 0, false
}

// IsNetworkError checks if an error is any transport-level failure
func IsNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsPoPError checks if the device refused the proof of possession
func IsPoPError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypePoP
}

// IsRejected checks if the device refused the credential
func IsRejected(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeRejected
}

// IsValidationError checks if the credential was refused before sending
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetTroubleshootingHint returns advice for an error, for CLI output
func GetTroubleshootingHint(err error) string {
	var pe *Error
	if !errors.As(err, &pe) {
		return "An unexpected error occurred. Please try again."
	}

	switch pe.Type {
	case ErrTypeTimeout, ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device's provisioning service did not answer.",
			"Troubleshooting:",
			"  • Join the device's SoftAP (zubIOT_XXXXXX) before provisioning",
			"  • Check the device is still in provisioning mode (sessions end after a credential is accepted)",
			"  • Verify the port (default 8080)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Use the address printed by 'zubwifi-prov scan' instead",
			"  • Make sure mDNS traffic is allowed on this network",
		}, "\n")

	case ErrTypePoP:
		return strings.Join([]string{
			"The device refused the proof of possession.",
			"Troubleshooting:",
			"  • The factory PoP is abcd1234 unless it was reconfigured",
			"  • Pass the right value with --pop",
		}, "\n")

	case ErrTypeRejected:
		return "The device refused the network credential: " + pe.Message

	case ErrTypeConflict:
		return strings.Join([]string{
			"This session already accepted a credential.",
			"Wait for the device to restart provisioning, or clear its stored credential with 'zubwifi creds clear'.",
		}, "\n")

	case ErrTypeNetwork:
		switch pe.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "The device is not reachable. Check that you are connected to its SoftAP and try: ping " + pe.Host
		case NetworkErrorNetworkUnreachable:
			return "Your computer cannot reach the device's network. Connect to its SoftAP and check WiFi is enabled."
		default:
			return "Network communication failed. Check your connection to the device's SoftAP."
		}

	case ErrTypeHTTP:
		return fmt.Sprintf("The device returned HTTP %d. Restart provisioning on the device and try again.", pe.StatusCode)

	case ErrTypeParse:
		return "The device sent a response this client does not understand. Check both sides run the same version."

	case ErrTypeValidation:
		return "The credential is invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a one-line message for an error
func GetShortErrorMessage(err error) string {
	var pe *Error
	if !errors.As(err, &pe) {
		return err.Error()
	}

	switch pe.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection - is it provisioning?"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypePoP:
		return "Proof of possession rejected"
	case ErrTypeConflict:
		return "Device already provisioned"
	case ErrTypeNetwork:
		return "Network error - check connection to the SoftAP"
	case ErrTypeHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", pe.StatusCode)
	default:
		return pe.Message
	}
}
