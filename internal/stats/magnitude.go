package stats

import "math"

// MagnitudeRanges holds the observed range of each column across a set of
// rows. A nil range means no row had a value for that column.
type MagnitudeRanges struct {
	Steps       *MinMax `json:"steps,omitempty"`
	Sleep       *MinMax `json:"sleep,omitempty"`
	Deep        *MinMax `json:"deep,omitempty"`
	Light       *MinMax `json:"light,omitempty"`
	REM         *MinMax `json:"rem,omitempty"`
	Awake       *MinMax `json:"awake,omitempty"`
	HRAverage   *MinMax `json:"hr_average,omitempty"`
	WeightDelta *MinMax `json:"weight_delta,omitempty"`
}

// BuildMagnitudeRanges computes the per-column range over rows. Weight deltas
// are ranged by absolute value.
func BuildMagnitudeRanges(rows []RangeEventStat) MagnitudeRanges {
	col := func(get func(RangeEventStat) *float64) *MinMax {
		return GetMinMax(collect(rows, get))
	}
	return MagnitudeRanges{
		Steps:     col(func(r RangeEventStat) *float64 { return r.Steps }),
		Sleep:     col(func(r RangeEventStat) *float64 { return r.Sleep }),
		Deep:      col(func(r RangeEventStat) *float64 { return r.Deep }),
		Light:     col(func(r RangeEventStat) *float64 { return r.Light }),
		REM:       col(func(r RangeEventStat) *float64 { return r.REM }),
		Awake:     col(func(r RangeEventStat) *float64 { return r.Awake }),
		HRAverage: col(func(r RangeEventStat) *float64 { return r.HRAverage }),
		WeightDelta: col(func(r RangeEventStat) *float64 {
			if r.WeightDelta == nil {
				return nil
			}
			return Float(math.Abs(*r.WeightDelta))
		}),
	}
}

// GetMagnitudeClass maps value onto a palette slot by its position in
// [min, max]. Equal bounds select the middle slot. An empty palette or a
// non-finite input yields neutral.
func GetMagnitudeClass(value, min, max float64, palette []string, neutral string) string {
	n := len(palette)
	if n == 0 || !isFinite(&value) || !isFinite(&min) || !isFinite(&max) {
		return neutral
	}
	if min == max {
		return palette[n/2]
	}
	// Halved operands keep the differences finite for any finite bounds.
	ratio := (value/2 - min/2) / (max/2 - min/2)
	slot := math.Floor(ratio * float64(n))
	if math.IsNaN(slot) || slot < 0 {
		slot = 0
	}
	if slot > float64(n-1) {
		slot = float64(n - 1)
	}
	return palette[int(slot)]
}

// Class classifies an optional value against the range. Missing values and
// missing ranges yield neutral.
func (r *MinMax) Class(value *float64, palette []string, neutral string) string {
	if r == nil || !isFinite(value) {
		return neutral
	}
	return GetMagnitudeClass(*value, r.Min, r.Max, palette, neutral)
}
