package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Non-finite floats have no JSON number form and are written as strings.
const (
	encodedNaN    = "NaN"
	encodedPosInf = "Inf"
	encodedNegInf = "-Inf"
)

// EncodeValue serializes a normalized value of the given value type.
// Datetimes are written as RFC 3339 strings, non-finite floats as
// "NaN", "Inf" or "-Inf", and references and regions as their JSON
// objects.
func EncodeValue(valueType string, v any) ([]byte, error) {
	switch valueType {
	case types.ValueTypeReference:
		if _, ok := v.(Reference); !ok {
			return nil, fmt.Errorf("%w: %T is not a Reference", types.ErrValueTypeMismatch, v)
		}
	case types.ValueTypeRegion:
		if _, ok := v.(Region); !ok {
			return nil, fmt.Errorf("%w: %T is not a Region", types.ErrValueTypeMismatch, v)
		}
	}
	data, err := json.Marshal(encodeFloats(v))
	if err != nil {
		return nil, fmt.Errorf("encoding %s value: %w", valueType, err)
	}
	return data, nil
}

// DecodeValue reverses EncodeValue. Data values come back normalized for
// valueType and shape.
func DecodeValue(valueType string, shape types.Shape, data []byte) (any, error) {
	switch valueType {
	case types.ValueTypeReference:
		var ref Reference
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, fmt.Errorf("decoding reference: %w", err)
		}
		return ref, nil
	case types.ValueTypeRegion:
		var r Region
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding region: %w", err)
		}
		return r, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding %s value: %w", valueType, err)
	}
	conv, err := convertNumbers(valueType, raw)
	if err != nil {
		return nil, err
	}
	return types.NormalizeValue(valueType, shape, conv)
}

// encodeFloats replaces non-finite float64 leaves with their string forms.
// Other values are returned as they are.
func encodeFloats(v any) any {
	switch x := v.(type) {
	case float64:
		switch {
		case math.IsNaN(x):
			return encodedNaN
		case math.IsInf(x, 1):
			return encodedPosInf
		case math.IsInf(x, -1):
			return encodedNegInf
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeFloats(e)
		}
		return out
	default:
		return v
	}
}

// convertNumbers replaces json.Number leaves with int64 or float64
// according to valueType, so integers wider than a float64 mantissa
// survive. Float kinds also take the string forms of non-finite values.
func convertNumbers(valueType string, v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		switch valueType {
		case types.ValueTypeInt32, types.ValueTypeInt64, types.ValueTypeUint32:
			n, err := x.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s is not an integer", types.ErrValueTypeMismatch, x)
			}
			return n, nil
		default:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s is not a number", types.ErrValueTypeMismatch, x)
			}
			return f, nil
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := convertNumbers(valueType, e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case string:
		if valueType != types.ValueTypeFloat32 && valueType != types.ValueTypeFloat64 {
			return v, nil
		}
		switch x {
		case encodedNaN:
			return math.NaN(), nil
		case encodedPosInf:
			return math.Inf(1), nil
		case encodedNegInf:
			return math.Inf(-1), nil
		}
		return nil, fmt.Errorf("%w: %q is not a number", types.ErrValueTypeMismatch, x)
	default:
		return v, nil
	}
}
