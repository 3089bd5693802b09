package sources

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerce(t *testing.T) {
	assert.Equal(t, 1.5, Coerce(1.5))
	assert.Equal(t, 2.0, Coerce(float32(2)))
	assert.Equal(t, 3.0, Coerce(3))
	assert.Equal(t, 4.0, Coerce(int64(4)))
	assert.Equal(t, 5.5, Coerce(json.Number("5.5")))
	assert.Equal(t, 123.0, Coerce("123"))
	assert.Equal(t, 0.5, Coerce("0.5"))
}

func TestCoerce_DefaultsToZero(t *testing.T) {
	assert.Zero(t, Coerce(nil))
	assert.Zero(t, Coerce("not a number"))
	assert.Zero(t, Coerce(""))
	assert.Zero(t, Coerce(json.Number("x")))
	assert.Zero(t, Coerce(true))
	assert.Zero(t, Coerce(math.NaN()))
	assert.Zero(t, Coerce(math.Inf(1)))
}

func TestRowAccessors(t *testing.T) {
	row := Row{"clicks": "42", "name": "Brand", "empty": ""}

	assert.Equal(t, 42.0, row.Num("clicks"))
	assert.Zero(t, row.Num("absent"))
	assert.Equal(t, "Brand", row.Str("name", "fallback"))
	assert.Equal(t, "fallback", row.Str("empty", "fallback"))
	assert.Equal(t, "fallback", row.Str("absent", "fallback"))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, Ratio(10, 5))
	assert.Zero(t, Ratio(10, 0))
}

func TestDeltaPct(t *testing.T) {
	assert.Equal(t, 50.0, DeltaPct(150, 100))
	assert.Equal(t, -25.0, DeltaPct(75, 100))
	assert.Zero(t, DeltaPct(75, 0))
}

func TestDeltas(t *testing.T) {
	out := Deltas(
		map[string]float64{"sessions": 110, "users": 50, "new": 10},
		map[string]float64{"sessions": 100, "users": 100},
	)
	assert.Equal(t, 10.0, out["sessions"])
	assert.Equal(t, -50.0, out["users"])
	assert.Zero(t, out["new"], "measure absent in previous period")
}
