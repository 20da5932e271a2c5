package scorer

import "math"

// NormalizeLinear maps value onto [0,1] over [lo, hi], clamping outside the
// range. A degenerate range (hi == lo) yields 0.
func NormalizeLinear(value, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	r := (value - lo) / (hi - lo)
	if math.IsNaN(r) {
		return 0
	}
	return clamp(r, 0, 1)
}

// NormalizeLog maps value onto [0,1] as (ln(value+1)/ln(max+1))^3, capped at 1.
// The cubic curve keeps values well below max near zero. Non-positive value
// or max yields 0.
func NormalizeLog(value, max float64) float64 {
	if value <= 0 || max <= 0 || math.IsNaN(value) || math.IsNaN(max) {
		return 0
	}
	r := math.Pow(math.Log1p(value)/math.Log1p(max), 3)
	if math.IsNaN(r) {
		return 0
	}
	return math.Min(r, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
