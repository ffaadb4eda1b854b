package reactor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects reactor activity. A nil *Metrics records nothing.
type Metrics struct {
	Registrations prometheus.Gauge
	Events        *prometheus.CounterVec
	Posted        prometheus.Counter
	Panics        prometheus.Counter
}

// NewMetrics creates the reactor collectors and registers them with reg
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snmpcarrier",
			Subsystem: "reactor",
			Name:      "registrations",
			Help:      "Number of descriptors currently registered with the reactor.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snmpcarrier",
			Subsystem: "reactor",
			Name:      "events_total",
			Help:      "Readiness notifications dispatched, by event.",
		}, []string{"event"}),
		Posted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snmpcarrier",
			Subsystem: "reactor",
			Name:      "posted_total",
			Help:      "Functions posted onto the reactor goroutine.",
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snmpcarrier",
			Subsystem: "reactor",
			Name:      "callback_panics_total",
			Help:      "Callbacks that panicked and were recovered.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Registrations, m.Events, m.Posted, m.Panics)
	}
	return m
}

func (m *Metrics) registered(delta float64) {
	if m == nil {
		return
	}
	m.Registrations.Add(delta)
}

func (m *Metrics) dispatched(ev Events) {
	if m == nil {
		return
	}
	if ev.Readable() {
		m.Events.WithLabelValues("read").Inc()
	}
	if ev.Writable() {
		m.Events.WithLabelValues("write").Inc()
	}
	if ev.Failed() {
		m.Events.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) posted() {
	if m == nil {
		return
	}
	m.Posted.Inc()
}

func (m *Metrics) panicked() {
	if m == nil {
		return
	}
	m.Panics.Inc()
}
