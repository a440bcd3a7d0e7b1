package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

func TestLookupUnknownStream(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("users")
	assert.False(t, ok)
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("users", []byte(`{"type":"object"}`), []string{"id"})

	s, ok := r.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, "users", s.Stream)
	assert.JSONEq(t, `{"type":"object"}`, string(s.Document))
	assert.Equal(t, []string{"id"}, s.KeyProperties)
}

func TestRegisterReplacesPreviousSchema(t *testing.T) {
	r := NewRegistry()
	strict := []byte(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`)
	loose := []byte(`{"type":"object"}`)

	r.Register("users", strict, []string{"id"})
	require.Error(t, r.Validate("users", []byte(`{"name":"no id"}`)))

	r.Register("users", loose, nil)
	assert.NoError(t, r.Validate("users", []byte(`{"name":"no id"}`)))

	s, _ := r.Lookup("users")
	assert.Nil(t, s.KeyProperties)
}

func TestValidateUnregisteredStreamIsSchemaNotFound(t *testing.T) {
	r := NewRegistry()

	err := r.Validate("users", []byte(`{"id":1}`))
	require.Error(t, err)
	assert.True(t, sinkerrors.IsType(err, sinkerrors.ErrorTypeSchemaNotFound))
}

func TestValidateConformingRecord(t *testing.T) {
	r := NewRegistry()
	r.Register("users", []byte(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`), nil)

	assert.NoError(t, r.Validate("users", []byte(`{"id":1,"name":"x"}`)))
}

func TestValidateViolationCarriesDetail(t *testing.T) {
	r := NewRegistry()
	r.Register("users", []byte(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`), nil)

	err := r.Validate("users", []byte(`{"id":"not-an-integer"}`))
	require.Error(t, err)
	assert.True(t, sinkerrors.IsType(err, sinkerrors.ErrorTypeValidation))

	var serr *sinkerrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "users", serr.Details["stream"])
	assert.NotEmpty(t, serr.Details["violations"])
}

func TestRegisterCopiesDocument(t *testing.T) {
	r := NewRegistry()
	doc := []byte(`{"type":"object"}`)
	r.Register("users", doc, nil)

	for i := range doc {
		doc[i] = 'x'
	}

	s, _ := r.Lookup("users")
	assert.JSONEq(t, `{"type":"object"}`, string(s.Document))
}

func TestStreams(t *testing.T) {
	r := NewRegistry()
	r.Register("a", []byte(`{}`), nil)
	r.Register("b", []byte(`{}`), nil)

	assert.ElementsMatch(t, []string{"a", "b"}, r.Streams())
}
