// Package mapper turns untyped documents into typed field values according
// to a schema, and engine hits back into records.
package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2/search"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/schema"
)

// Synthetic record keys added by FromResult.
const (
	IDKey    = "_id"
	ScoreKey = "_score"
)

// Document is a caller-submitted record: field name to scalar value.
type Document map[string]any

// Record is a projected query result.
type Record map[string]any

// CoercionError reports a value that cannot be converted to its field's type.
// It matches txerrors.ErrFieldCoercion under errors.Is.
type CoercionError struct {
	Field  string
	Raw    any
	Target schema.Type
	Cause  error
}

func (e *CoercionError) Error() string {
	msg := fmt.Sprintf("[%s] field %q: cannot coerce %v (%T) to %s",
		txerrors.ErrCodeFieldCoercion, e.Field, e.Raw, e.Raw, e.Target)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CoercionError) Unwrap() error { return e.Cause }

// Is matches the field-coercion error kind.
func (e *CoercionError) Is(target error) bool {
	t, ok := target.(*txerrors.Error)
	return ok && t.Code == txerrors.ErrCodeFieldCoercion
}

// ToIndexedFields maps doc onto s in schema order. Fields that are absent
// from doc or nil are skipped. The first value that cannot be coerced fails
// the whole document with a *CoercionError.
func ToIndexedFields(s *schema.Schema, doc Document) ([]schema.Value, error) {
	values := make([]schema.Value, 0, len(s.Fields))
	for _, f := range s.Fields {
		raw, ok := doc[f.Name]
		if !ok || isNil(raw) {
			continue
		}
		v, err := coerce(f, raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func coerce(f schema.Field, raw any) (schema.Value, error) {
	attrs := schema.AttrsOf(f)
	fail := func(cause error) error {
		return &CoercionError{Field: f.Name, Raw: raw, Target: f.Type, Cause: cause}
	}

	switch f.Type {
	case schema.String:
		return schema.StringValue{Attrs: attrs, Value: textOf(raw)}, nil
	case schema.Text:
		return schema.TextValue{Attrs: attrs, Value: textOf(raw)}, nil
	case schema.Int32:
		n, err := toInt32(raw)
		if err != nil {
			return nil, fail(err)
		}
		return schema.Int32Value{Attrs: attrs, Value: n}, nil
	case schema.Double:
		x, err := toFloat(raw, 64)
		if err != nil {
			return nil, fail(err)
		}
		return schema.DoubleValue{Attrs: attrs, Value: x}, nil
	case schema.Single:
		x, err := toFloat(raw, 32)
		if err != nil {
			return nil, fail(err)
		}
		return schema.SingleValue{Attrs: attrs, Value: float32(x)}, nil
	default:
		return nil, fail(fmt.Errorf("unsupported field type %s", f.Type))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func textOf(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt32(raw any) (int32, error) {
	switch v := raw.(type) {
	case string:
		return parseInt32(v)
	case json.Number:
		return parseInt32(v.String())
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int64ToInt32(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt32 {
			return 0, fmt.Errorf("value %d overflows int32", u)
		}
		return int32(u), nil
	case reflect.Float32, reflect.Float64:
		return floatToInt32(rv.Float())
	default:
		return 0, fmt.Errorf("not a number")
	}
}

func parseInt32(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int64ToInt32(n)
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return floatToInt32(x)
}

func int64ToInt32(n int64) (int32, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %d overflows int32", n)
	}
	return int32(n), nil
}

func floatToInt32(x float64) (int32, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("value %v is not finite", x)
	}
	return int64ToInt32(int64(math.Trunc(x)))
}

func toFloat(raw any, bitSize int) (float64, error) {
	var x float64
	switch v := raw.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), bitSize)
		if err != nil {
			return 0, err
		}
		x = parsed
	case json.Number:
		parsed, err := strconv.ParseFloat(v.String(), bitSize)
		if err != nil {
			return 0, err
		}
		x = parsed
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			x = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			x = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			x = rv.Float()
		default:
			return 0, fmt.Errorf("not a number")
		}
	}
	if bitSize == 32 && !math.IsInf(x, 0) && math.Abs(x) > math.MaxFloat32 {
		return 0, fmt.Errorf("value %v overflows float32", x)
	}
	return x, nil
}

// FromResult projects an engine hit onto s. Every schema field whose value
// the engine returned is converted back to the field's Go type (string,
// int32, float64 or float32); missing fields are left out. The record also
// carries the internal document id under IDKey and the relevance score
// under ScoreKey.
func FromResult(s *schema.Schema, hit *search.DocumentMatch) Record {
	rec := make(Record, len(s.Fields)+2)
	for _, f := range s.Fields {
		raw, ok := hit.Fields[f.Name]
		if !ok || raw == nil {
			continue
		}
		if list, ok := raw.([]interface{}); ok {
			vals := make([]any, 0, len(list))
			for _, item := range list {
				vals = append(vals, project(f.Type, item))
			}
			rec[f.Name] = vals
			continue
		}
		rec[f.Name] = project(f.Type, raw)
	}
	rec[IDKey] = hit.ID
	rec[ScoreKey] = hit.Score
	return rec
}

func project(t schema.Type, raw any) any {
	switch t {
	case schema.Int32:
		if x, ok := raw.(float64); ok {
			return int32(x)
		}
	case schema.Double:
		if x, ok := raw.(float64); ok {
			return x
		}
	case schema.Single:
		if x, ok := raw.(float64); ok {
			return float32(x)
		}
	case schema.String, schema.Text:
		return textOf(raw)
	}
	return raw
}
