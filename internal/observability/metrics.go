package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "capyquest"

// Metrics holds the Prometheus collectors for the claim service.
type Metrics struct {
	ClaimAttempts    *prometheus.CounterVec   // labels: kind={claim,purchase}, outcome
	ClaimDuration    *prometheus.HistogramVec // labels: kind
	ClaimsInFlight   prometheus.Gauge
	ConfirmationWait prometheus.Histogram

	LocationRequests *prometheus.CounterVec // labels: outcome={ok,permission-denied,...}
	NetworkGuard     *prometheus.CounterVec // labels: result={already,switched,added,failed}

	WalletRefreshErrors prometheus.Counter
	ClaimEventsDropped  prometheus.Counter

	CatalogCache *prometheus.CounterVec // labels: result={hit,miss}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ClaimAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_attempts_total",
			Help:      "Finished claim and purchase attempts by outcome.",
		}, []string{"kind", "outcome"}),
		ClaimDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "claim_duration_seconds",
			Help:      "Wall time from request to Done.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		ClaimsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "claims_in_flight",
			Help:      "Attempts currently between request and Done.",
		}),
		ConfirmationWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for a transaction receipt.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		LocationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_requests_total",
			Help:      "Location acquisitions by outcome.",
		}, []string{"outcome"}),
		NetworkGuard: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "network_guard_total",
			Help:      "Network guard runs by result.",
		}, []string{"result"}),
		WalletRefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refresh_errors_total",
			Help:      "Failed wallet balance reads.",
		}),
		ClaimEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_events_dropped_total",
			Help:      "Claim events that could not be published.",
		}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Target catalog cache lookups by result.",
		}, []string{"result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when target place names are resolved, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ClaimAttempts,
		m.ClaimDuration,
		m.ClaimsInFlight,
		m.ConfirmationWait,
		m.LocationRequests,
		m.NetworkGuard,
		m.WalletRefreshErrors,
		m.ClaimEventsDropped,
		m.CatalogCache,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
