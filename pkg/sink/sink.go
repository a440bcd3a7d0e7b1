// Package sink buffers flattened rows per stream and bulk-appends them to a
// tabular store through an adaptive batching controller.
//
// Each stream owns one sink: a FIFO row buffer and a mutable flush threshold
// (the limit). When the store reports a rate-limited rejection the controller
// does not retry; it raises the limit by a fixed increment and lets the
// buffer keep growing, so the next drain carries a larger batch and calls the
// store less often (additive increase, defer on congestion). A hard ceiling
// converts persistent rate limiting into a fatal overflow instead of
// unbounded buffering.
package sink

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/datapipehq/sheetsink/pkg/flatten"
	"github.com/datapipehq/sheetsink/pkg/metrics"
	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// Default sink tunables, in rows.
const (
	DefaultSinkSize       = 50
	DefaultLimitIncrement = 20
	DefaultMaxLimit       = 250
)

// Table is an opaque handle to one destination table, returned by the store.
type Table interface {
	// Name returns the destination-side table name.
	Name() string
}

// TabularStore is the external collaborator that owns tables and appends
// rows. A rate-limited rejection from AppendRows must surface as a
// sinkerrors error of type ErrorTypeRateLimit; the manager treats every
// other error as fatal.
type TabularStore interface {
	// OpenTable returns the table for a stream, creating it seeded with a
	// header row if it does not exist. Idempotent.
	OpenTable(ctx context.Context, name string, header []string) (Table, error)

	// AppendRows bulk-appends rows to the table in order.
	AppendRows(ctx context.Context, table Table, rows [][]interface{}) error
}

// Limits holds the three tunables of the adaptive batching controller.
type Limits struct {
	DefaultSize    int // initial flush threshold per sink
	LimitIncrement int // additive increase applied on rate limiting
	MaxLimit       int // ceiling; a rate limit past this overflows the sink
}

// DefaultLimits returns the stock tunables.
func DefaultLimits() Limits {
	return Limits{
		DefaultSize:    DefaultSinkSize,
		LimitIncrement: DefaultLimitIncrement,
		MaxLimit:       DefaultMaxLimit,
	}
}

// streamSink is the buffered state for one stream.
type streamSink struct {
	columns   []string       // header, fixed by the first record
	columnIdx map[string]int // column name -> position
	table     Table
	rows      [][]interface{}
	limit     int
}

// Manager owns one sink per stream and drives the drain policy. It is not
// safe for concurrent use; all adds happen on the single message-processing
// goroutine.
type Manager struct {
	store  TabularStore
	limits Limits
	logger *zap.Logger
	sinks  map[string]*streamSink
}

// NewManager creates a sink manager over the given store.
func NewManager(store TabularStore, limits Limits, log *zap.Logger) *Manager {
	if limits.DefaultSize <= 0 {
		limits.DefaultSize = DefaultSinkSize
	}
	if limits.LimitIncrement <= 0 {
		limits.LimitIncrement = DefaultLimitIncrement
	}
	if limits.MaxLimit <= 0 {
		limits.MaxLimit = DefaultMaxLimit
	}
	return &Manager{
		store:  store,
		limits: limits,
		logger: log.With(zap.String("component", "sink_manager")),
		sinks:  make(map[string]*streamSink),
	}
}

// Add buffers one flattened record for a stream and drains the sink if the
// buffer has grown past its limit.
//
// The first record for a stream fixes the table's column order and opens the
// table (creating it with a header row if needed). Later records are aligned
// to that header by column name: a missing column is padded with a nil cell,
// an unknown column fails the record with a validation error, so positional
// misalignment is never possible.
func (m *Manager) Add(ctx context.Context, stream string, record flatten.Record) error {
	s, ok := m.sinks[stream]
	if !ok {
		columns := record.Keys()
		table, err := m.store.OpenTable(ctx, stream, columns)
		if err != nil {
			return sinkerrors.Wrap(err, sinkerrors.ErrorTypeStore, "failed to open table for stream").
				WithDetail("stream", stream)
		}

		idx := make(map[string]int, len(columns))
		for i, c := range columns {
			idx[c] = i
		}
		s = &streamSink{
			columns:   columns,
			columnIdx: idx,
			table:     table,
			limit:     m.limits.DefaultSize,
		}
		m.sinks[stream] = s
		metrics.SinkLimit.WithLabelValues(stream).Set(float64(s.limit))
	}

	row, err := s.alignRow(stream, record)
	if err != nil {
		return err
	}
	s.rows = append(s.rows, row)
	metrics.RowsBuffered.WithLabelValues(stream).Inc()
	metrics.SinkDepth.WithLabelValues(stream).Set(float64(len(s.rows)))

	return m.checkAndMaybeDrain(ctx, stream, s)
}

// alignRow projects a record onto the sink's fixed column order.
func (s *streamSink) alignRow(stream string, record flatten.Record) ([]interface{}, error) {
	row := make([]interface{}, len(s.columns))
	for _, f := range record {
		i, ok := s.columnIdx[f.Key]
		if !ok {
			return nil, sinkerrors.New(sinkerrors.ErrorTypeValidation,
				"record carries a column absent from the stream's header").
				WithDetail("stream", stream).
				WithDetail("column", f.Key).
				WithDetail("header", s.columns)
		}
		row[i] = f.Value
	}
	return row, nil
}

// checkAndMaybeDrain drains when the buffer has exceeded the limit. The
// buffer may exceed the limit by exactly the record that triggered the check.
func (m *Manager) checkAndMaybeDrain(ctx context.Context, stream string, s *streamSink) error {
	if len(s.rows) > s.limit {
		return m.drain(ctx, stream, s)
	}
	return nil
}

// drain attempts to bulk-append the entire buffer in one store call.
//
// Success clears the buffer. A rate-limited rejection below the ceiling
// raises the limit and returns without retrying; the buffer is deliberately
// left to grow until the next add breaches the new, higher limit. A rate
// limit once the limit has already passed the ceiling is a fatal overflow:
// the buffered rows stay in place and the run aborts without a checkpoint,
// leaving the upstream orchestrator to resume from the previous one. Any
// other store failure is fatal as-is.
func (m *Manager) drain(ctx context.Context, stream string, s *streamSink) error {
	err := m.store.AppendRows(ctx, s.table, s.rows)
	if err == nil {
		m.logger.Info("sink limit hit, draining rows",
			zap.String("stream", stream),
			zap.Int("rows", len(s.rows)))
		metrics.RowsDrained.WithLabelValues(stream).Add(float64(len(s.rows)))
		metrics.DrainsTotal.WithLabelValues(stream, metrics.DrainOutcomeSuccess).Inc()
		s.rows = nil
		metrics.SinkDepth.WithLabelValues(stream).Set(0)
		return nil
	}

	if !sinkerrors.IsType(err, sinkerrors.ErrorTypeRateLimit) {
		metrics.DrainsTotal.WithLabelValues(stream, metrics.DrainOutcomeError).Inc()
		return sinkerrors.Wrap(err, sinkerrors.ErrorTypeStore, "bulk append failed").
			WithDetail("stream", stream).
			WithDetail("rows", len(s.rows))
	}

	metrics.DrainsTotal.WithLabelValues(stream, metrics.DrainOutcomeRateLimited).Inc()
	if s.limit > m.limits.MaxLimit {
		return sinkerrors.New(sinkerrors.ErrorTypeOverflow, "max sink size reached").
			WithDetail("stream", stream).
			WithDetail("limit", s.limit).
			WithDetail("max_limit", m.limits.MaxLimit).
			WithDetail("buffered_rows", len(s.rows))
	}

	s.limit += m.limits.LimitIncrement
	metrics.SinkLimitGrowths.WithLabelValues(stream).Inc()
	metrics.SinkLimit.WithLabelValues(stream).Set(float64(s.limit))
	m.logger.Warn("store rate limit reached, growing sink temporarily",
		zap.String("stream", stream),
		zap.Int("limit", s.limit))
	return nil
}

// DrainAll drains every sink holding rows. Used once at end-of-stream;
// failures here are as fatal as mid-run ones and suppress the checkpoint.
// Streams drain in name order so failures are deterministic.
//
// Deferring on a rate limit only makes sense mid-run, when a later add will
// retry the drain at a higher threshold. Here there is no later add, so a
// rate-limited final drain that leaves rows behind is fatal: the checkpoint
// must never vouch for rows that were not delivered.
func (m *Manager) DrainAll(ctx context.Context) error {
	streams := make([]string, 0, len(m.sinks))
	for stream, s := range m.sinks {
		if len(s.rows) > 0 {
			streams = append(streams, stream)
		}
	}
	sort.Strings(streams)

	for _, stream := range streams {
		s := m.sinks[stream]
		if err := m.drain(ctx, stream, s); err != nil {
			return err
		}
		if len(s.rows) > 0 {
			return sinkerrors.New(sinkerrors.ErrorTypeRateLimit, "store rate limited the final drain").
				WithDetail("stream", stream).
				WithDetail("buffered_rows", len(s.rows))
		}
	}

	m.logger.Info("all sinks drained")
	return nil
}

// BufferedRows returns the number of rows currently buffered for a stream.
func (m *Manager) BufferedRows(stream string) int {
	if s, ok := m.sinks[stream]; ok {
		return len(s.rows)
	}
	return 0
}

// Limit returns the current flush threshold for a stream, or the default if
// the stream has no sink yet.
func (m *Manager) Limit(stream string) int {
	if s, ok := m.sinks[stream]; ok {
		return s.limit
	}
	return m.limits.DefaultSize
}

// Columns returns the header fixed for a stream, or nil before its first
// record.
func (m *Manager) Columns(stream string) []string {
	if s, ok := m.sinks[stream]; ok {
		return s.columns
	}
	return nil
}
