package assertions

import (
	"cmp"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
)

// toNumber returns the numeric value of v when v is a number. Strings are
// never treated as numbers here; literal equality is type-sensitive.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// exactInt returns the exact integer value of v when v is an integral number.
// json.Number text beyond int64 range goes through big.Rat so no digits are
// lost.
func exactInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return big.NewInt(int64(n)), true
	case uint16:
		return big.NewInt(int64(n)), true
	case uint32:
		return big.NewInt(int64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case float32:
		return floatInt(float64(n))
	case float64:
		return floatInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return big.NewInt(i), true
		}
		r, ok := new(big.Rat).SetString(n.String())
		if !ok || !r.IsInt() {
			return nil, false
		}
		return new(big.Int).Set(r.Num()), true
	}
	return nil, false
}

func floatInt(f float64) (*big.Int, bool) {
	if !isIntegral(f) {
		return nil, false
	}
	i, _ := big.NewFloat(f).Int(nil)
	return i, true
}

// compareNumbers orders two numbers. Integral values compare exactly; float64
// is used only when either side has a fractional part.
func compareNumbers(a, b any) (int, bool) {
	af, okA := toNumber(a)
	bf, okB := toNumber(b)
	if !okA || !okB {
		return 0, false
	}
	ai, intA := exactInt(a)
	bi, intB := exactInt(b)
	if intA && intB {
		return ai.Cmp(bi), true
	}
	return cmp.Compare(af, bf), true
}

// literalEqual compares two scalar values. Numbers compare numerically across
// representations, everything else must agree on both type and value.
func literalEqual(expected, actual any) bool {
	if _, ok := toNumber(expected); ok {
		c, ok := compareNumbers(expected, actual)
		return ok && c == 0
	}
	if _, ok := toNumber(actual); ok {
		return false
	}
	switch e := expected.(type) {
	case nil:
		return actual == nil
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	}
	return reflect.DeepEqual(expected, actual)
}

// kindName names the JSON kind of v for messages.
func kindName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case map[string]any, map[any]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := toNumber(v); ok {
		return "number"
	}
	return reflect.TypeOf(v).String()
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, map[any]any, []any:
		return true
	}
	return false
}

// coerceString returns the textual form used for pattern and regex matching.
// Strings pass through, numbers are formatted, everything else is rejected.
func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case bool, nil:
		return "", false
	}
	if isContainer(v) {
		return "", false
	}
	f, ok := toNumber(v)
	if !ok {
		return "", false
	}
	if i, ok := exactInt(v); ok {
		return i.String(), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// PlainNumbers replaces json.Number values with int64 or float64 so they can
// take part in arithmetic outside this package.
func PlainNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = PlainNumbers(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = PlainNumbers(child)
		}
		return out
	default:
		return v
	}
}
