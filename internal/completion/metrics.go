package completion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for the completion and resolve counters.
const (
	resultOK        = "ok"
	resultFailed    = "failed"
	resultCancelled = "cancelled"
	resultResolved  = "resolved"
	resultCached    = "cached"
	resultStale     = "stale"
)

// Metrics records completion traffic per source. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	resolves *prometheus.CounterVec
	items    *prometheus.HistogramVec
}

// NewMetrics registers the completion metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "completion_bridge",
			Name:      "completion_requests_total",
			Help:      "Completion requests by source and outcome.",
		}, []string{"source", "result"}),
		resolves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "completion_bridge",
			Name:      "completion_resolve_total",
			Help:      "Resolve attempts by source and outcome.",
		}, []string{"source", "result"}),
		items: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "completion_bridge",
			Name:      "completion_items",
			Help:      "Items returned to the host per completion request.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"source"}),
	}
}

func (m *Metrics) request(source, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source, result).Inc()
}

func (m *Metrics) resolve(source, result string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(source, result).Inc()
}

func (m *Metrics) itemCount(source string, n int) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(source).Observe(float64(n))
}
