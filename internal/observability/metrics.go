package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meteo"

// Metrics holds the domain counters, histograms, and gauges. HTTP request
// metrics live in the middleware package.
type Metrics struct {
	// Resolver.
	ResolverCache    *prometheus.CounterVec // labels: result={hit,miss,bypass}
	GeocoderRequests *prometheus.CounterVec // labels: outcome={found,empty,error}
	GeocoderDuration prometheus.Histogram

	// Feed.
	FeedFetches       *prometheus.CounterVec // labels: outcome={success,error}
	FeedFetchDuration prometheus.Histogram
	IngestedRecords   *prometheus.CounterVec // labels: result={stored,skipped,failed}
	UpstreamAvailable prometheus.Gauge
	PublishedEvents   *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		ResolverCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_cache_total",
			Help:      "Point resolutions by cache result.",
		}, []string{"result"}),
		GeocoderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocoder_requests_total",
			Help:      "Geoportal lookups by outcome.",
		}, []string{"outcome"}),
		GeocoderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocoder_duration_seconds",
			Help:      "Geoportal request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "IMGW feed downloads by outcome.",
		}, []string{"outcome"}),
		FeedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "IMGW feed download duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		IngestedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_records_total",
			Help:      "Feed records processed by ingest result.",
		}, []string{"result"}),
		UpstreamAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_available",
			Help:      "1 when the last feed fetch succeeded, 0 otherwise.",
		}),
		PublishedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_events_total",
			Help:      "Advisory change events written to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ResolverCache, m.GeocoderRequests, m.GeocoderDuration,
		m.FeedFetches, m.FeedFetchDuration, m.IngestedRecords,
		m.UpstreamAvailable, m.PublishedEvents,
	}
}

// NewMetrics creates the metrics and registers them with reg, or with the
// default registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so that tests can build
// as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveFeedFetch records one feed download and the resulting upstream state.
func (m *Metrics) ObserveFeedFetch(seconds float64, err error) {
	if m == nil {
		return
	}
	m.FeedFetchDuration.Observe(seconds)
	if err != nil {
		m.FeedFetches.WithLabelValues("error").Inc()
		m.UpstreamAvailable.Set(0)
		return
	}
	m.FeedFetches.WithLabelValues("success").Inc()
	m.UpstreamAvailable.Set(1)
}

// CacheResult counts one resolver cache outcome. Nil-safe.
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.ResolverCache.WithLabelValues(result).Inc()
}

// Geocoder counts one Geoportal lookup. Nil-safe.
func (m *Metrics) Geocoder(seconds float64, outcome string) {
	if m == nil {
		return
	}
	m.GeocoderDuration.Observe(seconds)
	m.GeocoderRequests.WithLabelValues(outcome).Inc()
}

// Ingested adds n records with the given result. Nil-safe.
func (m *Metrics) Ingested(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.IngestedRecords.WithLabelValues(result).Add(float64(n))
}

// Published counts one Kafka write. Nil-safe.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PublishedEvents.WithLabelValues("error").Inc()
		return
	}
	m.PublishedEvents.WithLabelValues("success").Inc()
}
