package services

import (
	"pathfinder/internal/sessioncache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	TagsCreated        prometheus.Counter
	CheckoutsCreated   prometheus.Counter
	PurchasesCompleted prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	SessionLookup      prometheus.Histogram
	JobRuns            *prometheus.CounterVec
}

var globalMetrics *Metrics

// InitMetrics registers the application metrics. Session cache counters are
// read from the cache at scrape time.
func InitMetrics(cache *sessioncache.Cache) *Metrics {
	metrics := &Metrics{
		TagsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_tags_created_total",
			Help: "Total number of tag rows created",
		}),

		CheckoutsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_checkouts_created_total",
			Help: "Total number of toolkit checkout sessions created",
		}),

		PurchasesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_purchases_completed_total",
			Help: "Total number of toolkit purchases marked paid",
		}),

		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_webhook_events_total",
			Help: "Payment webhook events by type and outcome",
		}, []string{"type", "outcome"}),

		SessionLookup: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pathfinder_session_lookup_duration_seconds",
			Help:    "Latency of uncached session lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),

		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_job_runs_total",
			Help: "Background job runs by job and outcome",
		}, []string{"job", "outcome"}),
	}

	if cache != nil {
		counter := func(name, help string, read func(sessioncache.Stats) uint64) {
			prometheus.MustRegister(prometheus.NewCounterFunc(
				prometheus.CounterOpts{Name: name, Help: help},
				func() float64 { return float64(read(cache.Stats())) },
			))
		}
		counter("pathfinder_session_cache_hits_total", "Session cache hits",
			func(s sessioncache.Stats) uint64 { return s.Hits })
		counter("pathfinder_session_cache_misses_total", "Session cache misses that started a lookup",
			func(s sessioncache.Stats) uint64 { return s.Misses })
		counter("pathfinder_session_cache_coalesced_total", "Requests that joined an in-flight lookup",
			func(s sessioncache.Stats) uint64 { return s.Coalesced })
		counter("pathfinder_session_cache_failures_total", "Session lookups that failed",
			func(s sessioncache.Stats) uint64 { return s.Failures })
		counter("pathfinder_session_cache_evictions_total", "Entries evicted for capacity",
			func(s sessioncache.Stats) uint64 { return s.Evictions })

		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "pathfinder_session_cache_entries",
				Help: "Current number of session cache entries",
			},
			func() float64 { return float64(cache.Len()) },
		))
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance, nil until InitMetrics runs
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordTagsCreated counts newly created tag rows
func (m *Metrics) RecordTagsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TagsCreated.Add(float64(n))
}

// RecordCheckout counts a created checkout session
func (m *Metrics) RecordCheckout() {
	if m == nil {
		return
	}
	m.CheckoutsCreated.Inc()
}

// RecordPurchaseCompleted counts purchases moved to paid
func (m *Metrics) RecordPurchaseCompleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PurchasesCompleted.Add(float64(n))
}

// RecordWebhook counts a webhook delivery
func (m *Metrics) RecordWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordSessionLookup records the latency of a backing session lookup
func (m *Metrics) RecordSessionLookup(seconds float64) {
	if m == nil {
		return
	}
	m.SessionLookup.Observe(seconds)
}

// RecordJobRun counts a background job run
func (m *Metrics) RecordJobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
}
