package geoselect

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// loaderMetrics holds the Prometheus collectors of a Loader.
type loaderMetrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	cacheHits     prometheus.Counter
	sharedWaits   prometheus.Counter
}

// newLoaderMetrics creates the loader collectors and registers them on reg.
// A nil reg leaves them unregistered.
func newLoaderMetrics(reg prometheus.Registerer) *loaderMetrics {
	factory := promauto.With(reg)
	return &loaderMetrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoselect_lookup_fetches_total",
			Help: "Lookup table fetches by result (success, network_error, parse_error).",
		}, []string{"result"}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoselect_lookup_fetch_duration_seconds",
			Help:    "Duration of lookup table fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoselect_lookup_cache_hits_total",
			Help: "Load calls answered from the cached table.",
		}),
		sharedWaits: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoselect_lookup_shared_waits_total",
			Help: "Load calls that joined a fetch already in flight.",
		}),
	}
}

func resultLabel(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse_error"
	}
	return "network_error"
}
