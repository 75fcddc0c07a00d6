// Package metrics exposes Prometheus collectors for the jobwatch service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal          *prometheus.CounterVec
	jobsScrapedTotal     prometheus.Counter
	jobsAcceptedTotal    prometheus.Counter
	listingsSkippedTotal *prometheus.CounterVec
	pagesFetchedTotal    prometheus.Counter
	messagesSentTotal    *prometheus.CounterVec
	deliveryFailedTotal  prometheus.Counter
	storeCallsTotal      *prometheus.CounterVec
	quotaWaitSeconds     prometheus.Histogram

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_cycles_total",
				Help: "Total fetch/merge/notify cycles, labeled by outcome.",
			},
			[]string{"status"},
		)

		jobsScrapedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobwatch_jobs_scraped_total",
				Help: "Total job records emitted by the scraper.",
			},
		)

		jobsAcceptedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobwatch_jobs_accepted_total",
				Help: "Total job records accepted as new by the store.",
			},
		)

		listingsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_listings_skipped_total",
				Help: "Total listings discarded during parsing, labeled by reason.",
			},
			[]string{"reason"},
		)

		pagesFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobwatch_pages_fetched_total",
				Help: "Total listing pages fetched.",
			},
		)

		messagesSentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_messages_sent_total",
				Help: "Total messages delivered, labeled by kind.",
			},
			[]string{"kind"},
		)

		deliveryFailedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobwatch_delivery_failed_total",
				Help: "Total failed message deliveries.",
			},
		)

		storeCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_store_calls_total",
				Help: "Total backing-service calls, labeled by operation.",
			},
			[]string{"op"},
		)

		quotaWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobwatch_quota_wait_seconds",
				Help:    "Histogram of time spent waiting on the store quota governor.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 15, 60},
			},
		)
	})
}

// IncCycle counts a completed cycle by outcome ("ok", "empty", "error").
func IncCycle(status string) {
	Init()
	cyclesTotal.WithLabelValues(status).Inc()
}

// AddJobsScraped counts records emitted by the scraper.
func AddJobsScraped(n int) {
	Init()
	jobsScrapedTotal.Add(float64(n))
}

// AddJobsAccepted counts records newly accepted by the store.
func AddJobsAccepted(n int) {
	Init()
	jobsAcceptedTotal.Add(float64(n))
}

// IncListingSkipped counts a discarded listing by reason.
func IncListingSkipped(reason string) {
	Init()
	listingsSkippedTotal.WithLabelValues(reason).Inc()
}

// IncPageFetched counts one fetched listing page.
func IncPageFetched() {
	Init()
	pagesFetchedTotal.Inc()
}

// IncMessageSent counts one delivered message by kind ("batch", "debug",
// "status", "reply").
func IncMessageSent(kind string) {
	Init()
	messagesSentTotal.WithLabelValues(kind).Inc()
}

// IncDeliveryFailed counts one failed delivery.
func IncDeliveryFailed() {
	Init()
	deliveryFailedTotal.Inc()
}

// IncStoreCall counts one backing-service call by operation.
func IncStoreCall(op string) {
	Init()
	storeCallsTotal.WithLabelValues(op).Inc()
}

// ObserveQuotaWait records time spent blocked on the quota governor.
func ObserveQuotaWait(d time.Duration) {
	Init()
	quotaWaitSeconds.Observe(d.Seconds())
}
