package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/zubwifi/internal/station"
)

// Metrics holds the station collectors
type Metrics struct {
	transitions *prometheus.CounterVec
	current     *prometheus.GaugeVec
	clients     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zubwifi_state_transitions_total",
			Help: "Station state changes by target state",
		}, []string{"to"}),
		current: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zubwifi_current_state",
			Help: "1 for the current station state, 0 otherwise",
		}, []string{"state"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zubwifi_status_clients",
			Help: "Connected status websocket clients",
		}),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.current, m.clients} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	for _, st := range station.States {
		m.transitions.WithLabelValues(st.String()).Add(0)
	}
	return m, nil
}

// observe counts a transition into state
func (m *Metrics) observe(state station.State) {
	m.transitions.WithLabelValues(state.String()).Inc()
	m.setState(state)
}

func (m *Metrics) setState(state station.State) {
	for _, st := range station.States {
		v := 0.0
		if st == state {
			v = 1
		}
		m.current.WithLabelValues(st.String()).Set(v)
	}
}
