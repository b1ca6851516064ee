package provclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	wrap := func(err error) error {
		return &url.Error{Op: "Get", URL: "http://192.168.4.1:8080/prov/status", Err: err}
	}

	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		wantSub   NetworkErrorSubtype
		retryable bool
	}{
		{"timeout", wrap(timeoutErr{}), ErrTypeTimeout, NetworkErrorGeneral, true},
		{"dns", wrap(&net.DNSError{Name: "zub.local", Err: "no such host"}), ErrTypeDNS, NetworkErrorGeneral, false},
		{"refused", wrap(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}), ErrTypeConnectionRefused, NetworkErrorGeneral, true},
		{"host unreachable", wrap(&net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}), ErrTypeNetwork, NetworkErrorHostUnreachable, true},
		{"net unreachable", wrap(&net.OpError{Op: "dial", Err: syscall.ENETUNREACH}), ErrTypeNetwork, NetworkErrorNetworkUnreachable, true},
		{"other", errors.New("boom"), ErrTypeNetwork, NetworkErrorGeneral, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err, "192.168.4.1")
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.NetworkSubtype != tt.wantSub {
				t.Errorf("NetworkSubtype = %v, want %v", got.NetworkSubtype, tt.wantSub)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if got.Host != "192.168.4.1" {
				t.Errorf("Host = %q, want 192.168.4.1", got.Host)
			}
		})
	}

	if ClassifyNetworkError(nil, "x") != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{http.StatusUnauthorized, ErrTypePoP, false},
		{http.StatusBadRequest, ErrTypeRejected, false},
		{http.StatusConflict, ErrTypeConflict, false},
		{http.StatusNotFound, ErrTypeHTTP, false},
		{http.StatusServiceUnavailable, ErrTypeHTTP, true},
	}

	for _, tt := range tests {
		got := newStatusError(tt.status, "")
		if got.Type != tt.wantType || got.Retryable != tt.retryable {
			t.Errorf("newStatusError(%d) = %v retryable=%v, want %v retryable=%v",
				tt.status, got.Type, got.Retryable, tt.wantType, tt.retryable)
		}
		if got.Message != http.StatusText(tt.status) {
			t.Errorf("Message = %q, want %q", got.Message, http.StatusText(tt.status))
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Type: ErrTypeParse, Message: "failed to decode status", Err: errors.New("unexpected EOF")}
	want := "Parse Error: failed to decode status (caused by: unexpected EOF)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("provision: %w", err)
	if typ, ok := typeOf(wrapped); !ok || typ != ErrTypeParse {
		t.Errorf("typeOf(wrapped) = %v, %v", typ, ok)
	}
	if !errors.Is(wrapped, err.Err) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestHelpersOnPlainErrors(t *testing.T) {
	plain := context.DeadlineExceeded
	if IsNetworkError(plain) || IsPoPError(plain) || IsRejected(plain) || IsValidationError(plain) || IsRetryable(plain) {
		t.Error("helpers should be false for non-client errors")
	}
	if GetShortErrorMessage(plain) != plain.Error() {
		t.Errorf("GetShortErrorMessage() = %q", GetShortErrorMessage(plain))
	}
	if !strings.Contains(GetTroubleshootingHint(plain), "unexpected") {
		t.Errorf("GetTroubleshootingHint() = %q", GetTroubleshootingHint(plain))
	}
}

func TestTroubleshootingHints(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Type: ErrTypeTimeout}, "SoftAP"},
		{&Error{Type: ErrTypePoP}, "--pop"},
		{&Error{Type: ErrTypeConflict}, "zubwifi creds clear"},
		{&Error{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable, Host: "192.168.4.1"}, "ping 192.168.4.1"},
		{&Error{Type: ErrTypeHTTP, StatusCode: 502}, "HTTP 502"},
		{&Error{Type: ErrTypeRejected, Message: "missing SSID"}, "missing SSID"},
	}

	for _, tt := range tests {
		if got := GetTroubleshootingHint(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("GetTroubleshootingHint(%v) = %q, want it to mention %q", tt.err.Type, got, tt.want)
		}
	}

	if got := GetShortErrorMessage(&Error{Type: ErrTypePoP}); got != "Proof of possession rejected" {
		t.Errorf("GetShortErrorMessage(PoP) = %q", got)
	}
	if got := GetShortErrorMessage(&Error{Type: ErrTypeValidation, Message: "SSID cannot be empty"}); got != "SSID cannot be empty" {
		t.Errorf("GetShortErrorMessage(validation) = %q", got)
	}
}
