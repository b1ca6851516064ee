// Package softap runs provisioning sessions: a small HTTP service on the
// device's own access point through which a phone or laptop hands over
// the credential of the network the device should join.
//
// # Session Lifecycle
//
// Provisioner.Start opens a listener, optionally advertises the session
// over mDNS, and reports a "started" event. A client then:
//
//  1. reads GET /prov/status to learn the session ID and security mode
//  2. optionally follows GET /prov/events (websocket) for progress
//  3. posts the credential to POST /prov/config
//
// An accepted credential produces "credentials_received" and
// "credentials_succeeded", and the session ends itself after the
// configured linger period with "ended". A rejected one produces
// "credentials_failed" and the session keeps serving.
//
// Stop tears the session down without an "ended" event.
//
// # Security
//
// Authenticated sessions require the proof-of-possession string in the
// X-Prov-PoP header of the config request. The check is a plain string
// comparison; no key exchange is performed.
//
// # Form Fields
//
// The config request is form encoded:
//
//	__SL_P_USD   network SSID
//	__SL_P_PSD   passphrase (WPA2 only)
//	__SL_P_ENC   "WPA2" or "OPEN"
package softap
