package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	tests := []struct {
		device *Device
		want   string
	}{
		{&Device{Name: "zubIOT_ABCDEF", IP: "192.168.4.1", Port: 8080, Secure: true}, "zubIOT_ABCDEF (PoP) at 192.168.4.1:8080"},
		{&Device{Name: "zubIOT_ABCDEF", IP: "192.168.4.1", Port: 8080}, "zubIOT_ABCDEF (open) at 192.168.4.1:8080"},
	}
	for _, tt := range tests {
		if got := tt.device.String(); got != tt.want {
			t.Errorf("Device.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDevice_BaseURL(t *testing.T) {
	tests := []struct {
		name   string
		device *Device
		want   string
	}{
		{"ipv4", &Device{IP: "192.168.4.1", Port: 8080}, "http://192.168.4.1:8080"},
		{"custom port", &Device{IP: "10.0.0.5", Port: 9000}, "http://10.0.0.5:9000"},
		{"ipv6", &Device{IP: "fe80::1", Port: 8080}, "http://[fe80::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.BaseURL(); got != tt.want {
				t.Errorf("Device.BaseURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	d := &Device{Metadata: map[string]string{"sec": "1"}}
	if got := d.GetMetadata("sec"); got != "1" {
		t.Errorf("GetMetadata(sec) = %q, want 1", got)
	}
	if got := d.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
	if got := (&Device{}).GetMetadata("sec"); got != "" {
		t.Errorf("nil metadata GetMetadata() = %q, want empty", got)
	}
}

func TestDevice_key(t *testing.T) {
	if got := (&Device{SessionID: "abc", Name: "n", IP: "1"}).key(); got != "abc" {
		t.Errorf("key() = %q, want abc", got)
	}
	if got := (&Device{Name: "n", IP: "1"}).key(); got != "n@1" {
		t.Errorf("key() = %q, want n@1", got)
	}
}
