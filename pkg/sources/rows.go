package sources

import (
	"encoding/json"
	"math"
	"strconv"
)

// Row is one loosely-typed upstream record. Upstream schemas shift between
// API versions and locales, so fields are only read through accessors that
// apply the default-to-zero / default-to-placeholder policy.
type Row map[string]any

// Num reads a numeric field, coercing strings and JSON numbers. Absent,
// non-numeric and non-finite values become 0 - callers never see NaN or
// absence-typed numbers.
func (r Row) Num(key string) float64 {
	return Coerce(r[key])
}

// Str reads a string field, returning fallback when absent or empty.
func (r Row) Str(key, fallback string) string {
	if v, ok := r[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Coerce converts an arbitrary upstream value to a finite float64,
// defaulting to 0.
func Coerce(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Ratio divides zero-safely: a zero denominator yields 0, not NaN/Inf.
func Ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// DeltaPct is the previous-period comparison percentage. A zero previous
// value yields 0 rather than an undefined growth rate.
func DeltaPct(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Deltas computes comparison percentages for every measure present in both
// periods.
func Deltas(current, previous map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(current))
	for name, cur := range current {
		out[name] = DeltaPct(cur, previous[name])
	}
	return out
}
