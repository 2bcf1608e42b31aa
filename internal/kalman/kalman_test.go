package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterPredictIntegratesVelocity(t *testing.T) {
	t.Parallel()
	f := NewFilter(10, 10, 1, 1, 0.01, 0.1)
	f.x[idxVX] = 2
	f.x[idxVY] = -1
	f.Predict()

	x, y, _, _ := f.Box()
	assert.InDelta(t, 12, x, 1e-9)
	assert.InDelta(t, 9, y, 1e-9)
}

func TestFilterUpdateMovesTowardMeasurement(t *testing.T) {
	t.Parallel()
	f := NewFilter(0, 0, 1, 1, 0.01, 0.1)
	f.Update(10, 10, 1, 1)

	x, y, _, _ := f.Box()
	assert.Greater(t, x, 0.0)
	assert.Less(t, x, 10.0)
	assert.Greater(t, y, 0.0)
}

func TestFilterValid(t *testing.T) {
	t.Parallel()
	f := NewFilter(0, 0, 1, 1, 0.01, 0.1)
	assert.True(t, f.Valid())

	f.x[idxScale] = math.NaN()
	assert.False(t, f.Valid())

	f.x[idxScale] = 1
	f.x[idxAspect] = -1
	assert.False(t, f.Valid())
}

func TestFilterDampVelocity(t *testing.T) {
	t.Parallel()
	f := NewFilter(0, 0, 1, 1, 0.01, 0.1)
	f.x[idxVX] = 10
	f.x[idxVY] = 10
	f.x[idxScaleRate] = 10
	f.DampVelocity(0.5, 0.25)

	vx, vy, scaleRate := f.Velocity()
	assert.InDelta(t, 5, vx, 1e-9)
	assert.InDelta(t, 5, vy, 1e-9)
	assert.InDelta(t, 2.5, scaleRate, 1e-9)
}

func TestUnivariateKFConverges(t *testing.T) {
	t.Parallel()
	u := NewUnivariateKF(0.5, 0.001, 0.05)

	var last float64
	for i := 0; i < 200; i++ {
		last = u.Update(0.2)
	}
	assert.InDelta(t, 0.2, last, 0.02)
}
