// Package stats derives aggregate statistics from flattened health data. All
// functions are pure and safe for concurrent use.
package stats

import "math"

// MinMax is an observed value range.
type MinMax struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func isFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// positive returns v as an optional value, dropping zero and negative values.
func positive(v float64) *float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// AverageMetric returns the arithmetic mean of the finite values, or nil when
// there are none. Nil, NaN and infinite entries do not count.
func AverageMetric(values []*float64) *float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// GetMinMax returns the range of the finite values, or nil when there are none.
func GetMinMax(values []*float64) *MinMax {
	var out *MinMax
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if out == nil {
			out = &MinMax{Min: *v, Max: *v}
			continue
		}
		out.Min = math.Min(out.Min, *v)
		out.Max = math.Max(out.Max, *v)
	}
	return out
}

// collect maps items to optional values.
func collect[T any](items []T, get func(T) *float64) []*float64 {
	out := make([]*float64, 0, len(items))
	for _, it := range items {
		out = append(out, get(it))
	}
	return out
}
