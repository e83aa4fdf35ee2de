package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the API and the delivery worker.
type Metrics struct {
	PushResults    *prometheus.CounterVec
	PushBatchSize  prometheus.Histogram
	CacheFetches   *prometheus.CounterVec
	JobRetries     prometheus.Counter
	AlertsSent     prometheus.Counter
	DevicesTargets prometheus.Histogram
}

// NewMetrics creates and registers collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PushResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cor_push_results_total",
			Help: "Push notification results by final status.",
		}, []string{"status"}),
		PushBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cor_push_batch_size",
			Help:    "Number of notifications per dispatched batch.",
			Buckets: []float64{1, 10, 50, 100, 250, 500},
		}),
		CacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cor_cache_fetches_total",
			Help: "Source fetches by namespace and outcome (fresh, stale, unavailable).",
		}, []string{"namespace", "result"}),
		JobRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cor_delivery_job_retries_total",
			Help: "Delivery job executions that failed and were requeued.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cor_alerts_sent_total",
			Help: "Alerts transitioned from draft to sent.",
		}),
		DevicesTargets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cor_alert_target_devices",
			Help:    "Resolved target set size per alert send.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	reg.MustRegister(
		m.PushResults,
		m.PushBatchSize,
		m.CacheFetches,
		m.JobRetries,
		m.AlertsSent,
		m.DevicesTargets,
	)
	return m
}

// NewMetricsForTesting returns metrics backed by a throwaway registry.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
