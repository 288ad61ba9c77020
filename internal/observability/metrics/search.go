package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type SearchMetrics struct {
	registry *prometheus.Registry
	service  string

	searchDuration *prometheus.HistogramVec
	searchResults  *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	rerankFailures prometheus.Counter
}

func NewSearchMetrics(service string) *SearchMetrics {
	registry := prometheus.NewRegistry()

	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search request duration in seconds by search type.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "search_type"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of result counts per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 50},
		},
		[]string{"service", "search_type"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "search",
			Name:      "cache_hits_total",
			Help:      "Searches answered from the result cache.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "search",
			Name:      "cache_misses_total",
			Help:      "Searches that went to the index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rerankFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "search",
			Name:      "rerank_failures_total",
			Help:      "Rerank calls that degraded to blended ordering.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(searchDuration, searchResults, cacheHits, cacheMisses, rerankFailures)

	return &SearchMetrics{
		registry:       registry,
		service:        service,
		searchDuration: searchDuration,
		searchResults:  searchResults,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		rerankFailures: rerankFailures,
	}
}

func (m *SearchMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *SearchMetrics) ObserveSearch(searchType string, duration time.Duration, resultCount int) {
	m.searchDuration.WithLabelValues(m.service, searchType).Observe(duration.Seconds())
	m.searchResults.WithLabelValues(m.service, searchType).Observe(float64(resultCount))
}

func (m *SearchMetrics) CacheHit() {
	m.cacheHits.Inc()
}

func (m *SearchMetrics) CacheMiss() {
	m.cacheMisses.Inc()
}

func (m *SearchMetrics) RerankFailed() {
	m.rerankFailures.Inc()
}
