package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDuration_SecondsOnly(t *testing.T) {
	d := EncodeDuration(45)
	assert.Equal(t, int64(0), d.Minutes)
	assert.Equal(t, int64(45), d.Seconds)
}

func TestEncodeDuration_BoundaryStaysSecondsOnly(t *testing.T) {
	d := EncodeDuration(60)
	assert.Equal(t, int64(0), d.Minutes)
	assert.Equal(t, int64(60), d.Seconds)
}

func TestEncodeDuration_AboveBoundarySplits(t *testing.T) {
	d := EncodeDuration(61)
	assert.Equal(t, int64(1), d.Minutes)
	assert.Equal(t, int64(1), d.Seconds)

	d = EncodeDuration(90)
	assert.Equal(t, int64(1), d.Minutes)
	assert.Equal(t, int64(30), d.Seconds)

	d = EncodeDuration(185.7)
	assert.Equal(t, int64(3), d.Minutes)
	assert.Equal(t, int64(5), d.Seconds)
}

func TestEncodeDuration_NegativeCollapsesToZero(t *testing.T) {
	d := EncodeDuration(-12)
	assert.Equal(t, int64(0), d.Minutes)
	assert.Equal(t, int64(0), d.Seconds)
}

func TestEncodeDuration_NonFiniteCollapsesToZero(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		d := EncodeDuration(v)
		assert.Equal(t, int64(0), d.Minutes)
		assert.Equal(t, int64(0), d.Seconds)
	}
}

func TestDuration_TotalSeconds(t *testing.T) {
	assert.Equal(t, int64(90), Duration{Minutes: 1, Seconds: 30}.TotalSeconds())
	assert.Equal(t, int64(45), Duration{Seconds: 45}.TotalSeconds())
}

func TestNewOverview_ZeroFillsEveryMeasure(t *testing.T) {
	o := NewOverview("sessions", "users", "pageviews")
	assert.Len(t, o.Measures, 3)
	for _, name := range []string{"sessions", "users", "pageviews"} {
		v, ok := o.Measures[name]
		assert.True(t, ok, "measure %s missing", name)
		assert.Zero(t, v)
	}
}
