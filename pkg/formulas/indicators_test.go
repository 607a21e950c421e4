package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, got, 1e-12)

	assert.Nil(t, SMA([]float64{1, 2}, 3))
	assert.Nil(t, SMA([]float64{1, 2}, 0))
}

func TestRollingStdDev(t *testing.T) {
	got := RollingStdDev([]float64{1, 3, 1, 3}, 2)
	assert.Len(t, got, 3)
	for _, v := range got {
		assert.InDelta(t, 1.0, v, 1e-9)
	}

	flat := RollingStdDev([]float64{5, 5, 5}, 2)
	assert.InDeltaSlice(t, []float64{0, 0}, flat, 1e-12)
	assert.False(t, math.IsNaN(flat[0]))
}
