package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateTableHitsTotal   prometheus.Counter
	RateTableMissesTotal prometheus.Counter
	RateFetchesTotal     *prometheus.CounterVec
	ConversionsTotal     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with the given
// registerer. Using an explicit registerer keeps tests from colliding on
// the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		RateTableHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_table_hits_total",
				Help: "Rate lookups answered from the in-memory table",
			},
		),

		RateTableMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_table_misses_total",
				Help: "Rate lookups that required a fetch from HMRC",
			},
		),

		RateFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_fetches_total",
				Help: "Monthly rate fetches from HMRC by outcome",
			},
			[]string{"outcome"},
		),

		ConversionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Total number of currency conversions to GBP",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.RateTableHitsTotal,
			m.RateTableMissesTotal,
			m.RateFetchesTotal,
			m.ConversionsTotal,
		)
	}

	return m
}
