package softap

import "time"

// HTTP surface of a provisioning session.
const (
	PathStatus = "/prov/status"
	PathConfig = "/prov/config"
	PathEvents = "/prov/events"

	// HeaderPoP carries the proof-of-possession string for authenticated sessions.
	HeaderPoP = "X-Prov-PoP"
)

// Form fields accepted by PathConfig.
const (
	FieldSSID       = "__SL_P_USD"
	FieldPassphrase = "__SL_P_PSD"
	FieldSecurity   = "__SL_P_ENC" // "WPA2" or "OPEN"
)

// Values of FieldSecurity.
const (
	SecurityWPA2 = "WPA2"
	SecurityOpen = "OPEN"
)

// mDNS advertisement.
const (
	ServiceType   = "_zubprov._tcp"
	ServiceDomain = "local."

	// TXTSecurity is "1" for authenticated sessions and "0" for open ones.
	TXTSecurity = "sec"
	// TXTSessionID carries the session ID.
	TXTSessionID = "id"
)

// Session states reported by Status.State.
const (
	StateAdvertising = "advertising"
	StateReceived    = "credentials_received"
	StateEnded       = "ended"
)

// Status is the PathStatus response body.
type Status struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Security    string `json:"security"`
	State       string `json:"state"`
	Provisioned bool   `json:"provisioned"`
}

// Event is one frame on the PathEvents websocket stream.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"event"`
	SSID      string    `json:"ssid,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Time      time.Time `json:"time"`
}

// ConfigResponse is the PathConfig response body.
type ConfigResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
