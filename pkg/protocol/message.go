// Package protocol decodes the line-delimited Singer message stream consumed
// on stdin. Each line is one JSON document carrying exactly one of three
// shapes, discriminated by its "type" field:
//
//	{"type":"SCHEMA","stream":...,"schema":...,"key_properties":[...]}
//	{"type":"RECORD","stream":...,"record":{...}}
//	{"type":"STATE","value":...}
//
// Parse returns the decoded message as a sealed tagged union so the
// dispatcher can match exhaustively over the three variants.
package protocol

import (
	gojson "github.com/goccy/go-json"

	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// Message type discriminants as they appear on the wire.
const (
	TypeSchema = "SCHEMA"
	TypeRecord = "RECORD"
	TypeState  = "STATE"
)

// Message is the sealed union of the three recognized message shapes.
type Message interface {
	isMessage()
}

// SchemaMessage declares (or replaces) the schema for a stream.
type SchemaMessage struct {
	Stream        string
	Schema        gojson.RawMessage
	KeyProperties []string
}

// RecordMessage carries one data record for a stream.
type RecordMessage struct {
	Stream string
	Record gojson.RawMessage
}

// StateMessage carries an opaque checkpoint value; the last one seen is
// emitted when the run completes.
type StateMessage struct {
	Value gojson.RawMessage
}

func (*SchemaMessage) isMessage() {}
func (*RecordMessage) isMessage() {}
func (*StateMessage) isMessage()  {}

// envelope is the superset of all message fields; the discriminant decides
// which subset is required.
type envelope struct {
	Type          string            `json:"type"`
	Stream        string            `json:"stream"`
	Schema        gojson.RawMessage `json:"schema"`
	Record        gojson.RawMessage `json:"record"`
	Value         gojson.RawMessage `json:"value"`
	KeyProperties []string          `json:"key_properties"`
}

// Parse decodes one input line into a Message.
//
// Malformed JSON yields a decode error; well-formed JSON that matches none of
// the three recognized shapes yields a message_not_recognized error carrying
// the raw line for diagnostics. Both are fatal to the run.
//
// The returned message holds copies of the raw payloads, so callers may
// reuse the line buffer.
func Parse(line []byte) (Message, error) {
	var env envelope
	if err := gojson.Unmarshal(line, &env); err != nil {
		return nil, sinkerrors.Wrap(err, sinkerrors.ErrorTypeDecode, "line is not valid JSON").
			WithDetail("line", string(line))
	}

	switch env.Type {
	case TypeSchema:
		if env.Stream == "" || len(env.Schema) == 0 {
			return nil, notRecognized(line, "SCHEMA message missing stream or schema")
		}
		return &SchemaMessage{
			Stream:        env.Stream,
			Schema:        cloneRaw(env.Schema),
			KeyProperties: env.KeyProperties,
		}, nil

	case TypeRecord:
		if env.Stream == "" || len(env.Record) == 0 {
			return nil, notRecognized(line, "RECORD message missing stream or record")
		}
		return &RecordMessage{
			Stream: env.Stream,
			Record: cloneRaw(env.Record),
		}, nil

	case TypeState:
		if len(env.Value) == 0 {
			return nil, notRecognized(line, "STATE message missing value")
		}
		return &StateMessage{Value: cloneRaw(env.Value)}, nil

	default:
		return nil, notRecognized(line, "message type not recognized")
	}
}

func notRecognized(line []byte, msg string) *sinkerrors.Error {
	return sinkerrors.New(sinkerrors.ErrorTypeMessage, msg).
		WithDetail("message", string(line))
}

// cloneRaw detaches a RawMessage from the decoder's input buffer.
func cloneRaw(raw gojson.RawMessage) gojson.RawMessage {
	return gojson.RawMessage(append([]byte(nil), raw...))
}
