package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Activity events handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Activity events whose handler failed, left uncommitted.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Records skipped because their framing or headers were malformed.",
	}, []string{"topic"})

	endToEndLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gestionale",
		Subsystem: "consumer",
		Name:      "event_latency_seconds",
		Help:      "Delay between an event being written to Kafka and being handled.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gestionale",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent handled event per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, endToEndLatency, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if msg.Timestamp.IsZero() {
		return
	}
	lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	if lag := time.Since(msg.Timestamp); lag >= 0 {
		endToEndLatency.WithLabelValues(msg.Topic).Observe(lag.Seconds())
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
