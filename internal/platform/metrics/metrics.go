package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry process.
// All methods are nil-safe so components can run without metrics.
type Metrics struct {
	// Registry operations by name and outcome ("ok" or the error code)
	Operations *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec

	// Live minted shares per property
	MintedShares *prometheus.GaugeVec

	JournalSequence prometheus.Gauge

	RelayDelivered   *prometheus.CounterVec
	RelayFailures    *prometheus.CounterVec
	RelayQueueDepth  *prometheus.GaugeVec
	RelayBreakerOpen *prometheus.GaugeVec

	// Requests rejected by the rate limiter, by key kind ("caller" or "ip")
	RateLimited *prometheus.CounterVec
}

// New registers the metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propshare_registry_operations_total",
			Help: "Registry operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propshare_registry_operation_duration_seconds",
			Help:    "Duration of registry operations including lock wait and journal append",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"operation"}),

		MintedShares: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "propshare_minted_shares",
			Help: "Live minted shares per property",
		}, []string{"property_id"}),

		JournalSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "propshare_journal_sequence",
			Help: "Sequence number of the last committed ledger event",
		}),

		RelayDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propshare_relay_delivered_total",
			Help: "Events delivered per sink",
		}, []string{"sink"}),

		RelayFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propshare_relay_delivery_failures_total",
			Help: "Failed delivery attempts per sink",
		}, []string{"sink"}),

		RelayQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "propshare_relay_queue_depth",
			Help: "Events waiting for delivery per sink",
		}, []string{"sink"}),

		RelayBreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "propshare_relay_breaker_open",
			Help: "1 while the sink's circuit breaker is open",
		}, []string{"sink"}),

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propshare_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"kind"}),
	}
}

// ObserveOperation records one registry operation.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) SetMintedShares(propertyID string, shares uint64) {
	if m != nil {
		m.MintedShares.WithLabelValues(propertyID).Set(float64(shares))
	}
}

func (m *Metrics) SetJournalSequence(seq uint64) {
	if m != nil {
		m.JournalSequence.Set(float64(seq))
	}
}

func (m *Metrics) IncrementDelivered(sink string) {
	if m != nil {
		m.RelayDelivered.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementDeliveryFailure(sink string) {
	if m != nil {
		m.RelayFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) SetQueueDepth(sink string, depth int) {
	if m != nil {
		m.RelayQueueDepth.WithLabelValues(sink).Set(float64(depth))
	}
}

func (m *Metrics) SetBreakerOpen(sink string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.RelayBreakerOpen.WithLabelValues(sink).Set(v)
}

func (m *Metrics) IncrementRateLimited(kind string) {
	if m != nil {
		m.RateLimited.WithLabelValues(kind).Inc()
	}
}
