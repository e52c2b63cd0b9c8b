// Package metrics provides Prometheus instrumentation for the order flow
// and the batch jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersCreated counts accepted transactions, partitioned by side.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_orders_total",
		Help: "Total number of transactions appended to ledgers",
	}, []string{"side"})

	// OrderRejections counts orders rejected by the validator, by error code.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_order_rejections_total",
		Help: "Orders rejected by the pre-flight validator",
	}, []string{"code"})

	// RoundTicks counts simulator round advancements.
	RoundTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_round_ticks_total",
		Help: "Total simulator round ticks executed",
	})

	// TickParticipantFailures counts participants skipped during a tick.
	TickParticipantFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_tick_participant_failures_total",
		Help: "Participant updates skipped during round ticks",
	})

	// RollupGroups counts groups successfully rolled up.
	RollupGroups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_rollup_groups_total",
		Help: "Groups successfully processed by rollup passes",
	})

	// RollupFailures counts groups skipped by rollup passes.
	RollupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_rollup_failures_total",
		Help: "Groups skipped by rollup passes due to errors",
	})

	// BatchPassDuration tracks wall-clock time of batch passes, by job.
	BatchPassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_batch_pass_duration_seconds",
		Help:    "Duration of batch passes in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
