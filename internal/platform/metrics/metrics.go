package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bot. Methods are nil-safe so
// components can treat metrics as optional in tests.
type Metrics struct {
	EventsRouted     *prometheus.CounterVec
	Verifications    prometheus.Counter
	BindingsRejected prometheus.Counter
	Evictions        prometheus.Counter
	EvictionFailures prometheus.Counter
	StoreErrors      prometheus.Counter
	Lockouts         prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatebot_events_routed_total",
			Help: "Inbound events by route classification",
		}, []string{"route"}),
		Verifications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatebot_verifications_total",
			Help: "Candidates successfully verified and bound",
		}),
		BindingsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatebot_bindings_rejected_total",
			Help: "Bind attempts rejected because the record was already bound",
		}),
		Evictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatebot_evictions_total",
			Help: "Unverified members removed from the monitored group",
		}),
		EvictionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatebot_eviction_failures_total",
			Help: "Eviction attempts that failed on the platform API",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatebot_store_errors_total",
			Help: "Directory store operations that failed",
		}),
		Lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatebot_lockouts_total",
			Help: "Candidates locked out for repeated failed attempts",
		}),
	}
}

func (m *Metrics) IncRouted(route string) {
	if m != nil {
		m.EventsRouted.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) IncVerifications() {
	if m != nil {
		m.Verifications.Inc()
	}
}

func (m *Metrics) IncBindingsRejected() {
	if m != nil {
		m.BindingsRejected.Inc()
	}
}

func (m *Metrics) IncEvictions() {
	if m != nil {
		m.Evictions.Inc()
	}
}

func (m *Metrics) IncEvictionFailures() {
	if m != nil {
		m.EvictionFailures.Inc()
	}
}

func (m *Metrics) IncStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}

func (m *Metrics) IncLockouts() {
	if m != nil {
		m.Lockouts.Inc()
	}
}
