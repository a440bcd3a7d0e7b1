package flatten

import (
	"reflect"
	"testing"

	gojson "github.com/goccy/go-json"

	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

func mustFlatten(t *testing.T, raw string) Record {
	t.Helper()
	rec, err := FlattenRaw([]byte(raw))
	if err != nil {
		t.Fatalf("FlattenRaw(%s) failed: %v", raw, err)
	}
	return rec
}

func TestFlattenNested(t *testing.T) {
	rec := mustFlatten(t, `{"a":1,"b":{"c":2,"d":3}}`)

	wantKeys := []string{"a", "b.c", "b.d"}
	if !reflect.DeepEqual(rec.Keys(), wantKeys) {
		t.Errorf("expected keys %v, got %v", wantKeys, rec.Keys())
	}

	wantValues := []interface{}{gojson.Number("1"), gojson.Number("2"), gojson.Number("3")}
	if !reflect.DeepEqual(rec.Values(), wantValues) {
		t.Errorf("expected values %v, got %v", wantValues, rec.Values())
	}
}

func TestFlattenDeepNesting(t *testing.T) {
	rec := mustFlatten(t, `{"a":{"b":{"c":{"d":"leaf"}}}}`)

	if len(rec) != 1 {
		t.Fatalf("expected 1 field, got %d", len(rec))
	}
	if rec[0].Key != "a.b.c.d" {
		t.Errorf("expected key 'a.b.c.d', got '%s'", rec[0].Key)
	}
	if rec[0].Value != "leaf" {
		t.Errorf("expected value 'leaf', got %v", rec[0].Value)
	}
}

func TestFlattenAlreadyFlatIsNoOp(t *testing.T) {
	raw := `{"id":1,"name":"x","ok":true}`
	rec := mustFlatten(t, raw)

	obj, err := DecodeObject([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeObject failed: %v", err)
	}
	for i, m := range obj {
		if rec[i].Key != m.Key || !reflect.DeepEqual(rec[i].Value, m.Value) {
			t.Errorf("field %d changed by flattening: %v -> %v", i, m, rec[i])
		}
	}
}

func TestFlattenPreservesEncounterOrder(t *testing.T) {
	rec := mustFlatten(t, `{"z":1,"m":{"b":2,"a":3},"a":4}`)

	wantKeys := []string{"z", "m.b", "m.a", "a"}
	if !reflect.DeepEqual(rec.Keys(), wantKeys) {
		t.Errorf("expected keys %v, got %v", wantKeys, rec.Keys())
	}
}

func TestFlattenEmptyNestedObjectDisappears(t *testing.T) {
	rec := mustFlatten(t, `{"a":1,"gone":{},"b":2}`)

	wantKeys := []string{"a", "b"}
	if !reflect.DeepEqual(rec.Keys(), wantKeys) {
		t.Errorf("expected keys %v, got %v", wantKeys, rec.Keys())
	}
}

func TestFlattenSequencesAreOpaque(t *testing.T) {
	rec := mustFlatten(t, `{"tags":["a","b"],"n":1}`)

	wantKeys := []string{"tags", "n"}
	if !reflect.DeepEqual(rec.Keys(), wantKeys) {
		t.Fatalf("expected keys %v, got %v", wantKeys, rec.Keys())
	}
	tags, ok := rec[0].Value.([]interface{})
	if !ok {
		t.Fatalf("expected []interface{} for sequence value, got %T", rec[0].Value)
	}
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("sequence value changed: %v", tags)
	}
}

func TestFlattenNullAndBool(t *testing.T) {
	rec := mustFlatten(t, `{"a":null,"b":false}`)

	if rec[0].Value != nil {
		t.Errorf("expected nil for null, got %v", rec[0].Value)
	}
	if rec[1].Value != false {
		t.Errorf("expected false, got %v", rec[1].Value)
	}
}

func TestDecodeObjectRejectsNonObject(t *testing.T) {
	_, err := DecodeObject([]byte(`[1,2,3]`))
	if !sinkerrors.IsType(err, sinkerrors.ErrorTypeDecode) {
		t.Errorf("expected decode error for non-object, got %v", err)
	}
}

func TestDecodeObjectRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeObject([]byte(`{"a":`))
	if !sinkerrors.IsType(err, sinkerrors.ErrorTypeDecode) {
		t.Errorf("expected decode error for malformed JSON, got %v", err)
	}
}
