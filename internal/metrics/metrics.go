// Package metrics exposes Prometheus counters for metadata refreshes, sync
// runs and remote requests. Collectors register with the default registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "fieldsurvey"

	syncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Total number of records pushed to the remote system by outcome",
		},
		[]string{"outcome"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "refresh_total",
			Help:      "Total number of metadata refreshes by result",
		},
		[]string{"result"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of metadata refreshes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Total number of remote API requests by operation and HTTP status",
		},
		[]string{"operation", "status"},
	)
)

// Sync outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// RefreshOK is the result label of a successful refresh.
const RefreshOK = "ok"

// ObserveSync records the outcome counts of one sync run.
func ObserveSync(succeeded, failed int) {
	syncRecordsTotal.WithLabelValues(OutcomeSucceeded).Add(float64(succeeded))
	syncRecordsTotal.WithLabelValues(OutcomeFailed).Add(float64(failed))
}

// ObserveRefresh records one metadata refresh. result is RefreshOK or the
// error category.
func ObserveRefresh(result string, elapsed time.Duration) {
	refreshTotal.WithLabelValues(result).Inc()
	refreshDuration.Observe(elapsed.Seconds())
}

// ObserveRemoteRequest records one HTTP exchange. status 0 means the request
// never got a response.
func ObserveRemoteRequest(operation string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	remoteRequestsTotal.WithLabelValues(operation, label).Inc()
}
