// Package metrics declares the process's Prometheus collectors. Every
// counter/gauge/histogram the server exposes lives here, grouped by the
// component that updates it, and is registered once at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediavault"

var (
	// HTTP / API surface.

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	// Preparation Cache (§4.5).

	PrepCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prepcache_hits_total",
		Help:      "Total preparation-cache memory-tier hits.",
	})

	PrepCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prepcache_misses_total",
		Help:      "Total preparation-cache memory-tier misses.",
	})

	PrepCacheBuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prepcache_builds_total",
		Help:      "Total number of times this process claimed the builder slot for a MediaFile id.",
	})

	PrepCacheBlobHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prepcache_blob_hits_total",
		Help:      "Total builds that were satisfied from the persisted hls_prepared blob without re-parsing the moov.",
	})

	PrepCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prepcache_evictions_total",
		Help:      "Total preparation-cache memory-tier evictions.",
	})

	PrepCacheCoalescedWaitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prepcache_coalesced_waits_total",
		Help:      "Total calls that waited on another caller's in-flight builder instead of claiming one themselves.",
	})

	PrepCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "prepcache_entries",
		Help:      "Current number of entries resident in the preparation cache's memory tier.",
	})

	// Profile Classifier / Qualifier (§4.6-4.7).

	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classifications_total",
		Help:      "Total profile classifications by resulting profile (A, B, C).",
	}, []string{"profile"})

	QualifierDemotionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "qualifier_demotions_total",
		Help:      "Total Profile-B candidates demoted to C by the qualifier.",
	})

	QualifierProbeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "qualifier_probe_failures_total",
		Help:      "Total Profile-B candidates demoted because the live preparation probe failed.",
	})

	// Sendfile Server (§4.8).

	SendfileBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sendfile_bytes_total",
		Help:      "Total bytes written by the sendfile fast path.",
	})

	SendfileConnectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sendfile_connections_total",
		Help:      "Total connections accepted by the sendfile path, by route (segment, direct, fallthrough).",
	}, []string{"route"})

	SendfileEAGAINRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sendfile_eagain_retries_total",
		Help:      "Total EAGAIN retries during partial sendfile/write calls.",
	})

	SendfileWriteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sendfile_write_duration_seconds",
		Help:      "Duration of one fast-path response's full byte-range write.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// Job Store / Conversion Worker (§4.9-4.10).

	JobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_submitted_total",
		Help:      "Total conversion jobs submitted.",
	})

	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_completed_total",
		Help:      "Total conversion jobs completed successfully.",
	})

	JobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_failed_total",
		Help:      "Total conversion jobs that failed (before and after retries exhausted).",
	})

	JobsRetriedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_retried_total",
		Help:      "Total conversion jobs requeued for retry.",
	})

	JobsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_cancelled_total",
		Help:      "Total conversion jobs cancelled.",
	})

	JobQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_queue_depth",
		Help:      "Current number of queued (not yet running) conversion jobs.",
	})

	ConversionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conversion_duration_seconds",
		Help:      "Duration of a completed conversion job, start to finish.",
		Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600},
	})

	// Event Bus (§4.11).

	EventBusPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_published_total",
		Help:      "Total events published by category.",
	}, []string{"category"})

	EventBusSubscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eventbus_subscribers",
		Help:      "Current number of active event bus subscribers.",
	})

	EventBusLaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_lagged_total",
		Help:      "Total times a slow subscriber's buffer filled and events were dropped for it.",
	})

	// Session Manager / Streaming Resolver (§4.12-4.13).

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of currently active playback sessions.",
	})

	SessionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Total sessions reaped by the idle janitor.",
	})

	RouteResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_resolutions_total",
		Help:      "Total streaming-route resolutions by chosen route (direct, hls).",
	}, []string{"route"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PrepCacheHits,
		PrepCacheMisses,
		PrepCacheBuilds,
		PrepCacheBlobHits,
		PrepCacheEvictions,
		PrepCacheCoalescedWaitsTotal,
		PrepCacheEntries,
		ClassificationsTotal,
		QualifierDemotionsTotal,
		QualifierProbeFailuresTotal,
		SendfileBytesTotal,
		SendfileConnectionsTotal,
		SendfileEAGAINRetriesTotal,
		SendfileWriteDuration,
		JobsSubmittedTotal,
		JobsCompletedTotal,
		JobsFailedTotal,
		JobsRetriedTotal,
		JobsCancelledTotal,
		JobQueueDepth,
		ConversionDuration,
		EventBusPublishedTotal,
		EventBusSubscribersGauge,
		EventBusLaggedTotal,
		ActiveSessions,
		SessionsExpiredTotal,
		RouteResolutionsTotal,
	)
}
