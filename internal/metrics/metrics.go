package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the lookup service.
type Metrics struct {
	Requests      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	TableRebuilds prometheus.Counter
	TableSize     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoselect_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoselect_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		TableRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoselect_table_rebuilds_total",
			Help: "Lookup table rebuilds from the unit store.",
		}),
		TableSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geoselect_table_countries",
			Help: "Countries in the current lookup table.",
		}),
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.Requests.WithLabelValues(route, status).Inc()
	m.Duration.WithLabelValues(route).Observe(seconds)
}
