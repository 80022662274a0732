package rerank

import (
	"fmt"
	"strings"
)

// Parse builds a strategy from its wire name and parameters, e.g.
// ("rrf", {"k": 60}) or ("weighted", {"weights": [0.9, 0.1]}).
func Parse(name string, params map[string]any) (Strategy, error) {
	switch strings.ToLower(name) {
	case "rrf":
		r := RRF{}
		if raw, ok := params["k"]; ok {
			k, ok := toFloat(raw)
			if !ok {
				return nil, fmt.Errorf("%w: k is %T", ErrInvalidParams, raw)
			}
			r.K = k
		}
		return r, nil
	case "weighted":
		raw, ok := params["weights"]
		if !ok {
			return nil, fmt.Errorf("%w: weighted strategy needs weights", ErrInvalidWeights)
		}
		weights, err := toFloats(raw)
		if err != nil {
			return nil, err
		}
		return Weighted{Weights: weights}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Params renders a strategy back into its wire parameters.
func Params(s Strategy) map[string]any {
	switch v := s.(type) {
	case RRF:
		return map[string]any{"k": v.k()}
	case Weighted:
		return map[string]any{"weights": append([]float64(nil), v.Weights...)}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toFloats(v any) ([]float64, error) {
	switch w := v.(type) {
	case []float64:
		return append([]float64(nil), w...), nil
	case []float32:
		out := make([]float64, len(w))
		for i, x := range w {
			out[i] = float64(x)
		}
		return out, nil
	case []any:
		out := make([]float64, len(w))
		for i, x := range w {
			f, ok := toFloat(x)
			if !ok {
				return nil, fmt.Errorf("%w: weight %d is %T", ErrInvalidWeights, i, x)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: weights are %T", ErrInvalidWeights, v)
}
