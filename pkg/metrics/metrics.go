// Package metrics provides Prometheus metrics for the sheetsink pipeline:
// message throughput by type, per-stream sink depth, drain outcomes, and
// adaptive limit growth events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drain outcome label values.
const (
	DrainOutcomeSuccess     = "success"
	DrainOutcomeRateLimited = "rate_limited"
	DrainOutcomeError       = "error"
)

var (
	// MessagesProcessed counts protocol messages by type (SCHEMA, RECORD, STATE).
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsink_messages_processed_total",
			Help: "Total protocol messages processed by message type",
		},
		[]string{"type"},
	)

	// RowsBuffered counts rows appended to per-stream sink buffers.
	RowsBuffered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsink_rows_buffered_total",
			Help: "Total rows buffered into sinks by stream",
		},
		[]string{"stream"},
	)

	// RowsDrained counts rows successfully appended to the tabular store.
	RowsDrained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsink_rows_drained_total",
			Help: "Total rows bulk-appended to the tabular store by stream",
		},
		[]string{"stream"},
	)

	// DrainsTotal counts drain attempts by stream and outcome.
	DrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsink_drains_total",
			Help: "Total drain attempts by stream and outcome",
		},
		[]string{"stream", "outcome"},
	)

	// SinkLimitGrowths counts additive-increase events triggered by
	// rate-limited drains.
	SinkLimitGrowths = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsink_sink_limit_growths_total",
			Help: "Total sink limit increases triggered by store rate limiting",
		},
		[]string{"stream"},
	)

	// SinkDepth tracks the current number of buffered rows per stream.
	SinkDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetsink_sink_depth_rows",
			Help: "Current buffered rows per stream sink",
		},
		[]string{"stream"},
	)

	// SinkLimit tracks the current adaptive flush threshold per stream.
	SinkLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetsink_sink_limit_rows",
			Help: "Current adaptive flush threshold per stream sink",
		},
		[]string{"stream"},
	)
)
