// Package pipeline drives a run: it consumes protocol messages in arrival
// order on a single goroutine, routes them through the dispatcher, drains
// every sink at end-of-stream, and emits the final checkpoint.
//
// Ordering needs no locks: one message is fully processed before the next is
// read, and a drain for one stream blocks the whole loop. The only blocking
// calls are the store's; their latency belongs to the store client.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datapipehq/sheetsink/pkg/protocol"
	"github.com/datapipehq/sheetsink/pkg/schema"
	"github.com/datapipehq/sheetsink/pkg/sink"
	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// maxLineSize bounds a single protocol line; records beyond this fail the
// run as a decode error.
const maxLineSize = 16 * 1024 * 1024

// Pipeline wires the registry, sink manager, and checkpoint writer together
// for one run.
type Pipeline struct {
	registry *schema.Registry
	sinks    *sink.Manager
	out      io.Writer
	logger   *zap.Logger

	state    gojson.RawMessage // last STATE value, absent until first STATE
	hasState bool
}

// New creates a pipeline writing its final checkpoint to out.
func New(registry *schema.Registry, sinks *sink.Manager, out io.Writer, log *zap.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		sinks:    sinks,
		out:      out,
		logger:   log.With(zap.String("component", "pipeline")),
	}
}

// Run consumes the message stream until EOF or the first fatal error.
//
// Any failure (decode, unrecognized message, missing schema, validation,
// overflowed sink, store error) aborts immediately: no further lines are
// processed and no checkpoint is emitted. Only a clean EOF followed by a
// successful drain of every sink produces the checkpoint line.
func (p *Pipeline) Run(ctx context.Context, in io.Reader) error {
	start := time.Now()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			// trailing newlines produce blank lines, not messages
			continue
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			p.logger.Error("parsing failed for message",
				zap.Int("line", lineNo),
				zap.Error(err))
			return err
		}

		if err := p.dispatch(ctx, msg); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return sinkerrors.Wrap(err, sinkerrors.ErrorTypeDecode, "failed reading input stream").
			WithDetail("line", lineNo)
	}

	if err := p.sinks.DrainAll(ctx); err != nil {
		return err
	}

	if err := p.emitState(); err != nil {
		return err
	}

	p.logger.Info("target has consumed all streams to completion",
		zap.Int("lines", lineNo),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// emitState writes the last remembered STATE value as a single JSON line.
// A run that never saw a STATE message writes nothing.
func (p *Pipeline) emitState() error {
	if !p.hasState {
		return nil
	}

	p.logger.Debug("outputting state", zap.ByteString("state", p.state))
	if _, err := p.out.Write(append(p.state, '\n')); err != nil {
		return sinkerrors.Wrap(err, sinkerrors.ErrorTypeInternal, "failed to emit checkpoint")
	}
	return nil
}
