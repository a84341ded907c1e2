// Package telemetry exposes prometheus counters for the sync layer. The
// host application decides whether to serve them (e.g. via promhttp).
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SendAttempts counts transmit attempts, including retries.
	SendAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collabdesk_send_attempts_total",
		Help: "Outbound transmit attempts, including retries.",
	})

	// SendFailures counts sends abandoned after the retry ceiling or a
	// terminal transmit error.
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collabdesk_send_failures_total",
		Help: "Sends abandoned after retries were exhausted or a terminal error.",
	})

	// RecordsMerged counts records passed through reconciliation merges.
	RecordsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collabdesk_records_merged_total",
		Help: "Records merged into conversation lists.",
	})

	// CacheWriteFailures counts best-effort cache persistence failures.
	CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collabdesk_cache_write_failures_total",
		Help: "Local cache writes that failed and were swallowed.",
	})
)

// Handler returns the HTTP handler serving the default registry, for hosts
// that want a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
