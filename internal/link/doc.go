// Package link provides station radio drivers for the orchestrator.
//
// Sim is a simulated radio: it knows a fixed set of access points and
// answers connect commands with the events a real station interface would
// produce (association, address acquisition, or a disconnect with a
// reason code). Events are delivered from timer goroutines after the
// configured association latency.
//
// Station-initiated disconnects are not reported back as events; link
// loss is simulated with DropLink. SoftAP clients are simulated with
// PeerJoined and PeerLeft.
package link
