package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorq_jobs_created_total",
			Help: "Total number of jobs accepted by intake.",
		},
		[]string{"vendor"},
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorq_dispatches_total",
			Help: "Total number of dispatch attempts by outcome.",
		},
		[]string{"vendor", "outcome"}, // complete, accepted, retried, failed, dropped
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorq_retries_total",
			Help: "Total number of scheduled retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, other
	)

	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorq_webhooks_total",
			Help: "Total number of vendor webhook callbacks by result.",
		},
		[]string{"vendor", "result"}, // complete, failed, duplicate, rejected
	)

	VendorCallSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendorq_vendor_call_seconds",
			Help:    "Latency of vendor dispatch calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"vendor"},
	)

	RateLimitWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendorq_rate_limit_wait_seconds",
			Help:    "Time workers spent waiting for a rate limit slot.",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"vendor"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vendorq_queue_depth",
			Help: "Current dispatch queue depth by priority band.",
		},
		[]string{"band"}, // high, low, delayed
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		JobsCreatedTotal,
		DispatchesTotal,
		RetriesTotal,
		WebhooksTotal,
		VendorCallSeconds,
		RateLimitWaitSeconds,
		QueueDepth,
	)
}

// RecordJobCreated increments the intake counter for a vendor.
func RecordJobCreated(vendor string) {
	JobsCreatedTotal.WithLabelValues(vendor).Inc()
}

// RecordDispatch records the outcome of one dispatch attempt.
func RecordDispatch(vendor, outcome string) {
	DispatchesTotal.WithLabelValues(vendor, outcome).Inc()
}

// RecordRetry increments the retry counter for a failure reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordWebhook records a webhook callback result.
func RecordWebhook(vendor, result string) {
	WebhooksTotal.WithLabelValues(vendor, result).Inc()
}

// ObserveVendorCall records the latency of a vendor dispatch call.
func ObserveVendorCall(vendor string, d time.Duration) {
	VendorCallSeconds.WithLabelValues(vendor).Observe(d.Seconds())
}

// ObserveRateLimitWait records time spent waiting for a rate limit slot.
func ObserveRateLimitWait(vendor string, d time.Duration) {
	RateLimitWaitSeconds.WithLabelValues(vendor).Observe(d.Seconds())
}

// UpdateQueueDepth sets the current depth gauge for a queue band.
func UpdateQueueDepth(band string, depth float64) {
	QueueDepth.WithLabelValues(band).Set(depth)
}
