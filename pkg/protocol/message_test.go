package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

func TestParseSchemaMessage(t *testing.T) {
	line := []byte(`{"type":"SCHEMA","stream":"users","schema":{"type":"object"},"key_properties":["id"]}`)

	msg, err := Parse(line)
	require.NoError(t, err)

	sm, ok := msg.(*SchemaMessage)
	require.True(t, ok, "expected *SchemaMessage, got %T", msg)
	assert.Equal(t, "users", sm.Stream)
	assert.JSONEq(t, `{"type":"object"}`, string(sm.Schema))
	assert.Equal(t, []string{"id"}, sm.KeyProperties)
}

func TestParseRecordMessage(t *testing.T) {
	line := []byte(`{"type":"RECORD","stream":"users","record":{"id":1}}`)

	msg, err := Parse(line)
	require.NoError(t, err)

	rm, ok := msg.(*RecordMessage)
	require.True(t, ok, "expected *RecordMessage, got %T", msg)
	assert.Equal(t, "users", rm.Stream)
	assert.JSONEq(t, `{"id":1}`, string(rm.Record))
}

func TestParseStateMessage(t *testing.T) {
	line := []byte(`{"type":"STATE","value":{"users":1}}`)

	msg, err := Parse(line)
	require.NoError(t, err)

	sm, ok := msg.(*StateMessage)
	require.True(t, ok, "expected *StateMessage, got %T", msg)
	assert.JSONEq(t, `{"users":1}`, string(sm.Value))
}

func TestParseMalformedJSONIsDecodeError(t *testing.T) {
	_, err := Parse([]byte(`{"type":"RECORD",`))
	require.Error(t, err)
	assert.True(t, sinkerrors.IsType(err, sinkerrors.ErrorTypeDecode))
}

func TestParseUnknownTypeIsNotRecognized(t *testing.T) {
	line := []byte(`{"type":"ACTIVATE_VERSION","stream":"users"}`)

	_, err := Parse(line)
	require.Error(t, err)
	assert.True(t, sinkerrors.IsType(err, sinkerrors.ErrorTypeMessage))

	// The raw message travels with the error for diagnostics.
	var serr *sinkerrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, string(line), serr.Details["message"])
}

func TestParseIncompleteShapesAreNotRecognized(t *testing.T) {
	cases := map[string]string{
		"schema without stream": `{"type":"SCHEMA","schema":{"type":"object"}}`,
		"schema without schema": `{"type":"SCHEMA","stream":"users"}`,
		"record without record": `{"type":"RECORD","stream":"users"}`,
		"record without stream": `{"type":"RECORD","record":{"id":1}}`,
		"state without value":   `{"type":"STATE"}`,
		"no type at all":        `{"stream":"users","record":{"id":1}}`,
	}

	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(line))
			require.Error(t, err)
			assert.True(t, sinkerrors.IsType(err, sinkerrors.ErrorTypeMessage))
		})
	}
}

func TestParseDetachesFromLineBuffer(t *testing.T) {
	line := []byte(`{"type":"STATE","value":{"users":1}}`)

	msg, err := Parse(line)
	require.NoError(t, err)

	// The scanner reuses its buffer between lines; clobber it.
	for i := range line {
		line[i] = 'x'
	}

	sm := msg.(*StateMessage)
	assert.JSONEq(t, `{"users":1}`, string(sm.Value))
}
