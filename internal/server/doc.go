// Package server publishes the state of a station orchestrator to the
// local network.
//
// # Endpoints
//
//	GET /status    current state as JSON
//	GET /ws        websocket; one JSON Report now and one per state change
//	GET /metrics   Prometheus metrics
//
// A Report carries the state name, and the SSID and IP address while
// CONNECTED:
//
//	{"state":"CONNECTED","ssid":"HomeNet","address":"192.168.4.2","time":"..."}
//
// # Wiring
//
// Server.Observe has the station.Observer signature. Install it (or call
// it from an observer of your own) so changes reach websocket clients and
// the zubwifi_state_transitions_total and zubwifi_current_state metrics:
//
//	srv, err := server.New(&server.Config{Port: 8081}, orch)
//	orch.SetObserver(srv.Observe, nil)
//	go srv.Start(ctx)
//
// Observe never blocks: each websocket client has a small queue and a
// client that falls behind is disconnected.
//
// # TLS
//
// Set CertPath and KeyPath to serve HTTPS (TLS 1.2 or later).
package server
