package vectorcodec

import (
	"math"
)

// floatLike is satisfied by json.Number from both encoding/json and go-json.
type floatLike interface {
	Float64() (float64, error)
}

// toFloat64 converts a numeric scalar to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
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
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case floatLike:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// numericSlice flattens any supported slice of numbers into float64s.
// []byte is deliberately absent: callers treat it as an encoded buffer.
func numericSlice(value any) ([]float64, bool) {
	switch v := value.(type) {
	case []float32:
		return convertSlice(v), true
	case []float64:
		return append([]float64(nil), v...), true
	case []int:
		return convertSlice(v), true
	case []int8:
		return convertSlice(v), true
	case []int16:
		return convertSlice(v), true
	case []int32:
		return convertSlice(v), true
	case []int64:
		return convertSlice(v), true
	case []uint16:
		return convertSlice(v), true
	case []uint32:
		return convertSlice(v), true
	case []bool:
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, true
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			f, ok := toFloat64(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

type number interface {
	~float32 | ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint16 | ~uint32
}

func convertSlice[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
