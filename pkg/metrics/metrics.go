package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query cache metrics, labelled by the first part of the query key.
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_cache_requests_total",
			Help: "Query cache reads by outcome (hit, stale, miss)",
		},
		[]string{"query", "outcome"},
	)

	CacheFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logitrack_cache_fetch_duration_seconds",
			Help:    "Duration of underlying fetches issued by the query cache",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	CacheFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_cache_fetch_errors_total",
			Help: "Failed fetches by query and error kind",
		},
		[]string{"query", "kind"},
	)

	CacheDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_cache_discarded_total",
			Help: "Fetch results discarded because they were superseded or abandoned",
		},
		[]string{"query", "reason"},
	)

	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_cache_invalidations_total",
			Help: "Cache entries marked stale by invalidation",
		},
		[]string{"query"},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logitrack_cache_entries",
			Help: "Entries currently held by the query cache",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "logitrack_cache_evictions_total",
			Help: "Entries evicted by the LRU bound or the idle janitor",
		},
	)

	// Change subscription metrics
	FeedSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logitrack_feed_subscriptions",
			Help: "Open change-feed connections (one per distinct scope)",
		},
	)

	HubChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logitrack_hub_channels",
			Help: "Realtime channels with at least one consumer",
		},
	)

	ChangesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_changes_received_total",
			Help: "Row change notifications received by table and event type",
		},
		[]string{"table", "type"},
	)

	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logitrack_websocket_clients",
			Help: "Connected dashboard websocket clients",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_api_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logitrack_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logitrack_api_rate_limited_total",
			Help: "Requests rejected by the rate limiter by endpoint category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(CacheFetchDuration)
	prometheus.MustRegister(CacheFetchErrorsTotal)
	prometheus.MustRegister(CacheDiscardedTotal)
	prometheus.MustRegister(CacheInvalidationsTotal)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(FeedSubscriptions)
	prometheus.MustRegister(HubChannels)
	prometheus.MustRegister(ChangesReceivedTotal)
	prometheus.MustRegister(WebSocketClients)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(RateLimitedTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
