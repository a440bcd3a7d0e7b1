// Package schema tracks the last-declared JSON Schema and key properties for
// each stream and validates incoming records against them.
package schema

import (
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/datapipehq/sheetsink/pkg/logger"
	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// StreamSchema is the registered schema state for one stream. A later SCHEMA
// message for the same stream replaces it wholesale.
type StreamSchema struct {
	Stream        string
	Document      []byte   // raw JSON Schema document
	KeyProperties []string // ordered key property names
}

// Registry holds per-stream schemas for the duration of a run. It is not
// safe for concurrent use; the pipeline processes messages on a single
// goroutine.
type Registry struct {
	schemas map[string]*StreamSchema
	logger  *zap.Logger
}

// NewRegistry creates an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*StreamSchema),
		logger:  logger.Get().With(zap.String("component", "stream_registry")),
	}
}

// Register stores the schema and key properties for a stream, replacing any
// previous registration. It never fails.
//
// The document bytes are copied; callers may reuse their buffer.
func (r *Registry) Register(stream string, document []byte, keyProperties []string) {
	r.schemas[stream] = &StreamSchema{
		Stream:        stream,
		Document:      append([]byte(nil), document...),
		KeyProperties: keyProperties,
	}
	r.logger.Debug("schema registered",
		zap.String("stream", stream),
		zap.Strings("key_properties", keyProperties))
}

// Lookup returns the registered schema for a stream, or false if no SCHEMA
// message has been seen for it.
func (r *Registry) Lookup(stream string) (*StreamSchema, bool) {
	s, ok := r.schemas[stream]
	return s, ok
}

// Streams returns the names of all registered streams.
func (r *Registry) Streams() []string {
	streams := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		streams = append(streams, name)
	}
	return streams
}

// Validate checks a raw record against the stream's registered schema.
//
// A record for an unregistered stream fails with schema_not_found; a record
// that violates its schema fails with validation, carrying the stream name
// and per-field violation details. Both are fatal to the run.
func (r *Registry) Validate(stream string, record []byte) error {
	s, ok := r.schemas[stream]
	if !ok {
		return sinkerrors.New(sinkerrors.ErrorTypeSchemaNotFound,
			"record arrived before a schema was registered for its stream").
			WithDetail("stream", stream)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(s.Document),
		gojsonschema.NewBytesLoader(record),
	)
	if err != nil {
		return sinkerrors.Wrap(err, sinkerrors.ErrorTypeValidation, "schema validation could not run").
			WithDetail("stream", stream)
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return sinkerrors.New(sinkerrors.ErrorTypeValidation, "record does not conform to its registered schema").
			WithDetail("stream", stream).
			WithDetail("violations", violations)
	}

	return nil
}
