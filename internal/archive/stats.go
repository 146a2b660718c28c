package archive

import (
	"encoding/json"
	"math"
)

// Stats are the summary values cached in a record's metadata.
type Stats struct {
	PointsCount int
	MaxValue    float64
	MinValue    float64
	Amplitude   float64
}

// ComputeStats summarizes results["y_values"]. A missing, empty or
// non-numeric series yields zero statistics instead of an error.
func ComputeStats(results Document) Stats {
	y, ok := Series(results, "y_values")
	if !ok || len(y) == 0 {
		return Stats{}
	}

	maxV, minV := y[0], y[0]
	for _, v := range y[1:] {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}

	return Stats{
		PointsCount: len(y),
		MaxValue:    maxV,
		MinValue:    minV,
		Amplitude:   (maxV - minV) / 2,
	}
}

// Series reads a numeric sequence from a document. It accepts the shapes a
// series takes in memory ([]float64) and after a JSON round trip ([]any).
// ok is false when the key is absent or any element is not a finite number.
func Series(doc Document, key string) ([]float64, bool) {
	raw, present := doc[key]
	if !present || raw == nil {
		return nil, false
	}

	switch v := raw.(type) {
	case []float64:
		for _, f := range v {
			if !finite(f) {
				return nil, false
			}
		}
		return append([]float64(nil), v...), true
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			f, ok := toFloat(e)
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

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, finite(f)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
