package models

import "math"

// Overview is the normalized single-record output of an overview-style
// metric endpoint. Every measure a source declares is present in Measures,
// zero-filled when upstream data is absent - callers never see missing or
// null numbers.
type Overview struct {
	Measures  map[string]float64  `json:"measures"`
	Durations map[string]Duration `json:"durations,omitempty"`
	// DeltasPct holds previous-period comparison percentages keyed by
	// measure name, only populated when a compare range was requested.
	DeltasPct map[string]float64 `json:"deltas_pct,omitempty"`
}

// NewOverview returns an Overview with every named measure zero-filled.
func NewOverview(measures ...string) *Overview {
	m := make(map[string]float64, len(measures))
	for _, name := range measures {
		m[name] = 0
	}
	return &Overview{Measures: m}
}

// BreakdownRow is one dimension slice of a breakdown-style metric endpoint.
// Label may be a composite key such as "source / medium".
type BreakdownRow struct {
	Label     string              `json:"label"`
	Measures  map[string]float64  `json:"measures"`
	Durations map[string]Duration `json:"durations,omitempty"`
	// Extra carries per-row string metadata (entity id, derived kind,
	// country code) that is not a numeric measure.
	Extra map[string]string `json:"extra,omitempty"`
}

// Duration is the normalized duration encoding: values at or below 60
// seconds are seconds-only; above that, whole minutes plus the remainder.
type Duration struct {
	Minutes int64 `json:"minutes,omitempty"`
	Seconds int64 `json:"seconds"`
}

// EncodeDuration converts a total length in seconds into the normalized
// encoding. Exactly 60 seconds stays seconds-only. Negative and non-finite
// inputs collapse to zero.
func EncodeDuration(totalSeconds float64) Duration {
	// int64 conversion of NaN/Inf is implementation-defined, so reject
	// non-finite inputs before converting.
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) || totalSeconds < 0 {
		return Duration{}
	}
	secs := int64(totalSeconds)
	if secs <= 60 {
		return Duration{Seconds: secs}
	}
	return Duration{Minutes: secs / 60, Seconds: secs % 60}
}

// TotalSeconds returns the duration flattened back to seconds.
func (d Duration) TotalSeconds() int64 {
	return d.Minutes*60 + d.Seconds
}
