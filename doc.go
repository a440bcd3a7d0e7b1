// Package sheetsink is a Singer target that sinks a protocol stream into
// Google Sheets, one worksheet per stream.
//
// The interesting part lives in pkg/sink: an adaptive batching controller
// that buffers rows per stream and reacts to API rate limiting by growing
// its batch threshold instead of retrying, trading latency and memory for
// fewer, larger append calls.
//
// Layout:
//   - cmd/sheetsink: the CLI entry point
//   - internal/pipeline: the single-threaded message loop and dispatcher
//   - pkg/protocol: SCHEMA/RECORD/STATE message decoding
//   - pkg/flatten: order-preserving nested record flattening
//   - pkg/schema: per-stream schema registry and validation
//   - pkg/sink: adaptive batching sinks over a TabularStore
//   - pkg/store/sheets: the Google Sheets TabularStore
package sheetsink
