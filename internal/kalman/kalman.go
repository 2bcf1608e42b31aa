// Package kalman implements the two filters used by the tracker: a
// constant-velocity + scale/aspect Kalman filter for track motion, and a
// scalar Kalman filter used to smooth a running appearance-cost statistic.
package kalman

import "math"

// state indices for Filter.x, matching spec.md §3's Track Kalman state:
// [x, y, scale, aspect, vx, vy, scaleRate].
const (
	idxX = iota
	idxY
	idxScale
	idxAspect
	idxVX
	idxVY
	idxScaleRate
	stateDim
)

// Filter is a constant-velocity Kalman filter over a 7-dimensional state
// (center x/y, scale, aspect, and their velocities where applicable; aspect
// has no explicit rate term per spec.md, it is carried forward unchanged).
type Filter struct {
	x [stateDim]float64
	p [stateDim][stateDim]float64

	processVar     float64
	measurementVar float64
}

// NewFilter initializes a Filter from an observed box (center x/y, scale,
// aspect) with zero initial velocity and a diagonal covariance.
func NewFilter(x, y, scale, aspect, processVar, measurementVar float64) *Filter {
	f := &Filter{processVar: processVar, measurementVar: measurementVar}
	f.x[idxX] = x
	f.x[idxY] = y
	f.x[idxScale] = scale
	f.x[idxAspect] = aspect
	for i := range f.p {
		f.p[i][i] = 10
	}
	return f
}

// Predict advances the state by one frame: position and scale integrate
// their velocities; aspect and scaleRate ride unchanged in this simplified
// constant-velocity model.
func (f *Filter) Predict() {
	f.x[idxX] += f.x[idxVX]
	f.x[idxY] += f.x[idxVY]
	f.x[idxScale] += f.x[idxScaleRate]

	for i := 0; i < stateDim; i++ {
		f.p[i][i] += f.processVar
	}
}

// Update corrects the state with an observed box (center x/y, scale,
// aspect), using an independent per-dimension Kalman gain (the model treats
// each state dimension's measurement as uncorrelated, matching the
// diagonal-covariance approximation used throughout this filter).
func (f *Filter) Update(x, y, scale, aspect float64) {
	measurements := [4]float64{x, y, scale, aspect}
	for i, z := range measurements {
		variance := f.p[i][i] + f.measurementVar
		if variance <= 0 {
			continue
		}
		gain := f.p[i][i] / variance
		innovation := z - f.x[i]
		f.x[i] += gain * innovation
		f.p[i][i] *= 1 - gain

		switch i {
		case idxX:
			f.x[idxVX] += gain * innovation * 0.5
		case idxY:
			f.x[idxVY] += gain * innovation * 0.5
		case idxScale:
			f.x[idxScaleRate] += gain * innovation * 0.5
		}
	}
}

// Box returns the current center x/y, scale, aspect.
func (f *Filter) Box() (x, y, scale, aspect float64) {
	return f.x[idxX], f.x[idxY], f.x[idxScale], f.x[idxAspect]
}

// Velocity returns the current x/y velocity and scale rate.
func (f *Filter) Velocity() (vx, vy, scaleRate float64) {
	return f.x[idxVX], f.x[idxVY], f.x[idxScaleRate]
}

// SetPosition overwrites the center x/y without touching velocity, used by
// the tracker to apply bounds clamping (spec.md §4.1 step 1).
func (f *Filter) SetPosition(x, y float64) {
	f.x[idxX] = x
	f.x[idxY] = y
}

// ZeroVelocityX zeroes the x velocity component, applied when a clamp
// occurred on the x axis.
func (f *Filter) ZeroVelocityX() { f.x[idxVX] = 0 }

// ZeroVelocityY zeroes the y velocity component, applied when a clamp
// occurred on the y axis.
func (f *Filter) ZeroVelocityY() { f.x[idxVY] = 0 }

// DampVelocity scales x/y velocity and scale rate, applied on a miss per
// spec.md §4.1 step 4 ("apply velocity/growth damping").
func (f *Filter) DampVelocity(velocityDamping, growthDamping float64) {
	f.x[idxVX] *= velocityDamping
	f.x[idxVY] *= velocityDamping
	f.x[idxScaleRate] *= growthDamping
}

// IntentAngle returns the direction of travel implied by the current
// velocity, used to compute the OCM cost term.
func (f *Filter) IntentAngle() float64 {
	return math.Atan2(f.x[idxVY], f.x[idxVX])
}

// Valid reports whether the filter's scale and aspect remain finite and
// positive; an invalid filter marks its owning track for termination per
// spec.md §3's Track invariants.
func (f *Filter) Valid() bool {
	scale, aspect := f.x[idxScale], f.x[idxAspect]
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return false
	}
	if math.IsNaN(aspect) || math.IsInf(aspect, 0) || aspect <= 0 {
		return false
	}
	return true
}

// UnivariateKF is a scalar Kalman filter used to smooth a running
// appearance-cost statistic for a track (spec.md §3's
// "owned UnivariateKF of the running appearance cost").
type UnivariateKF struct {
	mean     float64
	variance float64

	processVar     float64
	measurementVar float64
}

// NewUnivariateKF creates a scalar filter seeded at initialMean.
func NewUnivariateKF(initialMean, processVar, measurementVar float64) *UnivariateKF {
	return &UnivariateKF{
		mean:           initialMean,
		variance:       measurementVar,
		processVar:     processVar,
		measurementVar: measurementVar,
	}
}

// Update folds in a new cost observation and returns the smoothed mean.
func (u *UnivariateKF) Update(observed float64) float64 {
	u.variance += u.processVar

	denom := u.variance + u.measurementVar
	if denom <= 0 {
		return u.mean
	}
	gain := u.variance / denom
	u.mean += gain * (observed - u.mean)
	u.variance *= 1 - gain
	return u.mean
}

// Mean returns the current smoothed estimate.
func (u *UnivariateKF) Mean() float64 {
	return u.mean
}
