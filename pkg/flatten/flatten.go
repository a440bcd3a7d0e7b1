// Package flatten turns nested JSON records into flat rows suitable for a
// tabular destination.
//
// Key order matters here: the destination table's header row is fixed by the
// first record's flattened key order, so objects are decoded into an ordered
// member list instead of a Go map (which would shuffle encounter order).
package flatten

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// Member is one key/value pair of a decoded JSON object. Nested objects
// decode to Object; all other values decode to scalars, gojson.Number, or
// []interface{}.
type Member struct {
	Key   string
	Value interface{}
}

// Object is a JSON object with its members in encounter order.
type Object []Member

// Field is one column of a flattened record.
type Field struct {
	Key   string
	Value interface{}
}

// Record is a flat record: dot-joined keys in encounter order, no nested
// objects among the values.
type Record []Field

// Keys returns the record's column names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Values returns the record's cell values in key order.
func (r Record) Values() []interface{} {
	values := make([]interface{}, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// Flatten collapses nested objects into dot-joined keys, depth first:
// {"a":1,"b":{"c":2}} becomes [{a 1} {b.c 2}]. Sequences and scalars pass
// through untouched; an empty nested object contributes no fields, so its
// parent key disappears. Flattening an already-flat record is a no-op.
func Flatten(obj Object) Record {
	out := make(Record, 0, len(obj))
	for _, m := range obj {
		if child, ok := m.Value.(Object); ok {
			for _, f := range Flatten(child) {
				out = append(out, Field{Key: m.Key + "." + f.Key, Value: f.Value})
			}
			continue
		}
		out = append(out, Field{Key: m.Key, Value: m.Value})
	}
	return out
}

// FlattenRaw decodes a raw JSON object and flattens it in one step.
func FlattenRaw(raw []byte) (Record, error) {
	obj, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	return Flatten(obj), nil
}

// DecodeObject decodes raw JSON into an Object, preserving member order.
// Numbers decode as gojson.Number so values re-encode exactly as received.
func DecodeObject(raw []byte) (Object, error) {
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, decodeErr(err, raw)
	}
	if delim, ok := tok.(gojson.Delim); !ok || delim != '{' {
		return nil, sinkerrors.New(sinkerrors.ErrorTypeDecode, "record is not a JSON object").
			WithDetail("record", string(raw))
	}

	obj, err := decodeMembers(dec)
	if err != nil {
		return nil, decodeErr(err, raw)
	}
	return obj, nil
}

// decodeMembers consumes members until the enclosing '}' (inclusive).
func decodeMembers(dec *gojson.Decoder) (Object, error) {
	obj := Object{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj = append(obj, Member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return obj, nil
}

// decodeValue consumes one value: a nested Object, a []interface{}, or a
// scalar token.
func decodeValue(dec *gojson.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(gojson.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		return decodeMembers(dec)
	case '[':
		arr := []interface{}{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil { // closing ']'
			return nil, err
		}
		return arr, nil
	default:
		return nil, io.ErrUnexpectedEOF
	}
}

func decodeErr(err error, raw []byte) *sinkerrors.Error {
	return sinkerrors.Wrap(err, sinkerrors.ErrorTypeDecode, "failed to decode record object").
		WithDetail("record", string(raw))
}
