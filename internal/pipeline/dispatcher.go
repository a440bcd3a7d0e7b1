package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/datapipehq/sheetsink/pkg/flatten"
	"github.com/datapipehq/sheetsink/pkg/metrics"
	"github.com/datapipehq/sheetsink/pkg/protocol"
	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// dispatch routes one decoded message.
//
// Each stream moves through an implicit two-state machine: schema-unknown
// until its first SCHEMA message, schema-known afterwards (later SCHEMA
// messages replace the registration in place). Records are only accepted in
// schema-known; STATE messages bypass the streams entirely and overwrite the
// run's remembered checkpoint.
func (p *Pipeline) dispatch(ctx context.Context, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.SchemaMessage:
		metrics.MessagesProcessed.WithLabelValues(protocol.TypeSchema).Inc()
		p.registry.Register(m.Stream, m.Schema, m.KeyProperties)
		return nil

	case *protocol.RecordMessage:
		metrics.MessagesProcessed.WithLabelValues(protocol.TypeRecord).Inc()
		if err := p.registry.Validate(m.Stream, m.Record); err != nil {
			return err
		}
		record, err := flatten.FlattenRaw(m.Record)
		if err != nil {
			return err
		}
		return p.sinks.Add(ctx, m.Stream, record)

	case *protocol.StateMessage:
		metrics.MessagesProcessed.WithLabelValues(protocol.TypeState).Inc()
		p.state = append(p.state[:0], m.Value...)
		p.hasState = true
		p.logger.Debug("state set", zap.ByteString("value", m.Value))
		return nil

	default:
		// Parse only produces the three variants; this arm guards against a
		// future variant slipping past the dispatcher.
		return sinkerrors.New(sinkerrors.ErrorTypeMessage, "message shape not recognized").
			WithDetail("message", msg)
	}
}
