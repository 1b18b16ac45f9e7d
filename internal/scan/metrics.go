package scan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scan pipeline collectors. The host application
// exposes the registry; the library only records.
type Metrics struct {
	attempts      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the scan collectors. A nil registerer
// leaves the collectors unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagscan",
			Name:      "scan_attempts_total",
			Help:      "Completed scan attempts by recognition path and outcome.",
		}, []string{"path", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagscan",
			Name:      "scan_failures_total",
			Help:      "Failed scan attempts by error kind.",
		}, []string{"kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tagscan",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.failures, m.stageDuration)
	}
	return m
}

var defaultMetrics = NewMetrics(nil)

// RegisterMetrics registers the package-level collectors with the given
// registerer. Call at most once per registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg != nil {
		reg.MustRegister(defaultMetrics.attempts, defaultMetrics.failures, defaultMetrics.stageDuration)
	}
}

func (m *Metrics) countAttempt(path, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) countFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
