package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the dispatcher, by event type and outcome (delivered, failed).",
	}, []string{"event_type", "outcome"})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Outbox events parked in outbox_dlq, by topic.",
	}, []string{"topic"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gestionale",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time from claiming an outbox batch to marking it published.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gestionale",
		Subsystem: "outbox",
		Name:      "batch_size",
		Help:      "Events claimed per non-empty batch.",
		Buckets:   prometheus.LinearBuckets(1, 10, 10),
	})
)

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
)

func init() {
	prometheus.MustRegister(publishedCounter, dlqCounter, batchDuration, batchSize)
}

func recordBatch(messages []Message, outcome string, started time.Time) {
	for _, msg := range messages {
		publishedCounter.WithLabelValues(msg.EventType, outcome).Inc()
	}
	batchSize.Observe(float64(len(messages)))
	batchDuration.Observe(time.Since(started).Seconds())
}
