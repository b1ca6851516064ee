package provclient

import (
	"strings"
	"testing"

	"github.com/muurk/zubwifi/internal/softap"
)

func TestWiFiConfigNormalized(t *testing.T) {
	tests := []struct {
		in   WiFiConfig
		want string
	}{
		{WiFiConfig{SSID: "a", Password: "hunter22"}, softap.SecurityWPA2},
		{WiFiConfig{SSID: "a"}, softap.SecurityOpen},
		{WiFiConfig{SSID: "a", SecurityType: " wpa2 "}, softap.SecurityWPA2},
		{WiFiConfig{SSID: "a", SecurityType: "open"}, softap.SecurityOpen},
	}
	for _, tt := range tests {
		if got := tt.in.Normalized().SecurityType; got != tt.want {
			t.Errorf("Normalized(%+v).SecurityType = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWiFiConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WiFiConfig
		wantErr bool
	}{
		{"wpa2", WiFiConfig{SSID: "HomeNet", Password: "hunter22", SecurityType: softap.SecurityWPA2}, false},
		{"open", WiFiConfig{SSID: "Cafe", SecurityType: softap.SecurityOpen}, false},
		{"hex psk", WiFiConfig{SSID: "HomeNet", Password: strings.Repeat("f", 64), SecurityType: softap.SecurityWPA2}, false},
		{"empty ssid", WiFiConfig{Password: "hunter22", SecurityType: softap.SecurityWPA2}, true},
		{"long ssid", WiFiConfig{SSID: strings.Repeat("s", 33), SecurityType: softap.SecurityOpen}, true},
		{"short password", WiFiConfig{SSID: "HomeNet", Password: "1234567", SecurityType: softap.SecurityWPA2}, true},
		{"long password", WiFiConfig{SSID: "HomeNet", Password: strings.Repeat("p", 65), SecurityType: softap.SecurityWPA2}, true},
		{"open with password", WiFiConfig{SSID: "Cafe", Password: "hunter22", SecurityType: softap.SecurityOpen}, true},
		{"wep", WiFiConfig{SSID: "Old", Password: "hunter22", SecurityType: "WEP"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("Validate() error = %v, want validation error", err)
			}
		})
	}
}

func TestWiFiConfigToFormData(t *testing.T) {
	data := WiFiConfig{SSID: "HomeNet", Password: "hunter22", SecurityType: softap.SecurityWPA2}.ToFormData()
	if data.Get(softap.FieldSSID) != "HomeNet" || data.Get(softap.FieldPassphrase) != "hunter22" || data.Get(softap.FieldSecurity) != "WPA2" {
		t.Errorf("ToFormData() = %v", data)
	}

	data = WiFiConfig{SSID: "Cafe", SecurityType: softap.SecurityOpen}.ToFormData()
	if _, ok := data[softap.FieldPassphrase]; ok {
		t.Errorf("open ToFormData() = %v, want no passphrase", data)
	}
}
