package types

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// Value types a field or column may declare.
const (
	ValueTypeText        = "text"
	ValueTypeInt32       = "int32"
	ValueTypeInt64       = "int64"
	ValueTypeUint32      = "uint32"
	ValueTypeFloat32     = "float32"
	ValueTypeFloat64     = "float64"
	ValueTypeBool        = "bool"
	ValueTypeISODatetime = "isodatetime"
	ValueTypeReference   = "reference"
	ValueTypeRegion      = "region"
)

// validValueTypes is the set of recognized value types.
var validValueTypes = map[string]bool{
	ValueTypeText:        true,
	ValueTypeInt32:       true,
	ValueTypeInt64:       true,
	ValueTypeUint32:      true,
	ValueTypeFloat32:     true,
	ValueTypeFloat64:     true,
	ValueTypeBool:        true,
	ValueTypeISODatetime: true,
	ValueTypeReference:   true,
	ValueTypeRegion:      true,
}

// IsValidValueType reports whether the given string is a recognized value type.
func IsValidValueType(vt string) bool {
	return validValueTypes[vt]
}

// IsLinkValueType reports whether values of this type point at other
// containers instead of carrying data.
func IsLinkValueType(vt string) bool {
	return vt == ValueTypeReference || vt == ValueTypeRegion
}

// NormalizeValue converts v into the canonical in-memory form for a
// scalar value type and checks it against shape. Integers become int64,
// floats become float64, datetimes become UTC time.Time, and arrays become
// nested []any, one level per dimension.
//
// Reference and region values are not handled here; their validation
// needs the object graph.
func NormalizeValue(valueType string, shape Shape, v any) (any, error) {
	if IsLinkValueType(valueType) {
		return nil, fmt.Errorf("%w: %s values are links", ErrValueTypeMismatch, valueType)
	}
	if !IsValidValueType(valueType) {
		return nil, fmt.Errorf("%w: unknown value type %q", ErrInvalidSpec, valueType)
	}
	return normalizeDims(valueType, shape, v)
}

func normalizeDims(valueType string, shape Shape, v any) (any, error) {
	if len(shape) == 0 {
		return normalizeScalar(valueType, v)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: expected %d-dimensional array, got %T", ErrShapeMismatch, len(shape), v)
	}
	n := rv.Len()
	if !shape[0].Accepts(n) {
		return nil, fmt.Errorf("%w: dimension of length %d, want %s", ErrShapeMismatch, n, shape[0])
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		elem, err := normalizeDims(valueType, shape[1:], rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

func normalizeScalar(valueType string, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil %s value", ErrValueTypeMismatch, valueType)
	}
	if k := reflect.ValueOf(v).Kind(); k == reflect.Slice || k == reflect.Array {
		return nil, fmt.Errorf("%w: got array for scalar %s", ErrShapeMismatch, valueType)
	}

	switch valueType {
	case ValueTypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ValueTypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case ValueTypeInt32:
		if i, ok := asInt64(v); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return i, nil
		}
	case ValueTypeInt64:
		if i, ok := asInt64(v); ok {
			return i, nil
		}
	case ValueTypeUint32:
		if i, ok := asInt64(v); ok && i >= 0 && i <= math.MaxUint32 {
			return i, nil
		}
	case ValueTypeFloat32, ValueTypeFloat64:
		f, ok := asFloat64(v)
		if !ok {
			break
		}
		if valueType == ValueTypeFloat64 {
			return f, nil
		}
		if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v overflows float32", ErrValueTypeMismatch, f)
		}
		return float64(float32(f)), nil
	case ValueTypeISODatetime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValueTypeMismatch, err)
			}
			return parsed.UTC(), nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not a %s", ErrValueTypeMismatch, v, valueType)
}

func asInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// asFloat64 accepts floats and, for float fields, integer literals.
func asFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
