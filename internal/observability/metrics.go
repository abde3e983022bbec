// Package observability owns the Prometheus collectors shared by the server and the
// activity table.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gestionale",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write committed to Postgres.",
	})

	dataVersionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gestionale",
		Subsystem: "attivita",
		Name:      "data_version",
		Help:      "Current dataVersion of the process-wide activity store.",
	})

	saveCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "attivita",
		Name:      "saves_total",
		Help:      "Row saves issued by the activity table, by operation and result.",
	}, []string{"op", "result"})

	deleteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "attivita",
		Name:      "deletes_total",
		Help:      "Row deletions issued by the activity table, by result.",
	}, []string{"result"})

	reloadCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "attivita",
		Name:      "reloads_total",
		Help:      "Forced reloads performed by the activity table, by trigger.",
	}, []string{"reason"})

	autoCreateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gestionale",
		Subsystem: "attivita",
		Name:      "autocreate_total",
		Help:      "Automatic rows created for today, by result.",
	}, []string{"result"})

	reloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gestionale",
		Subsystem: "attivita",
		Name:      "reload_duration_seconds",
		Help:      "Latency of forced reloads as seen by the activity table.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		activityPersistGauge,
		dataVersionGauge,
		saveCounter,
		deleteCounter,
		reloadCounter,
		autoCreateCounter,
		reloadDuration,
	)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// SetDataVersion mirrors the store's dataVersion.
func SetDataVersion(v uint64) {
	dataVersionGauge.Set(float64(v))
}

// RecordSave counts a create or update attempt.
func RecordSave(op string, err error) {
	saveCounter.WithLabelValues(op, result(err)).Inc()
}

// RecordDelete counts a server delete attempt.
func RecordDelete(err error) {
	deleteCounter.WithLabelValues(result(err)).Inc()
}

// RecordReload counts a completed forced reload and its latency.
func RecordReload(reason string, elapsed time.Duration) {
	reloadCounter.WithLabelValues(reason).Inc()
	reloadDuration.Observe(elapsed.Seconds())
}

// RecordAutoCreate counts an automatic row creation attempt.
func RecordAutoCreate(err error) {
	autoCreateCounter.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
