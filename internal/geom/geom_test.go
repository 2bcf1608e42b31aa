package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestIoU(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{X: 10, Y: 10, W: 4, H: 4}, Box{X: 10, Y: 10, W: 4, H: 4}, 1},
		{"disjoint", Box{X: 0, Y: 0, W: 2, H: 2}, Box{X: 10, Y: 10, W: 2, H: 2}, 0},
		{"half overlap", Box{X: 0, Y: 0, W: 2, H: 2}, Box{X: 1, Y: 0, W: 2, H: 2}, 1.0 / 3.0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := IoU(tc.a, tc.b)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0, Wrap(0), 1e-9)
	assert.InDelta(t, -math.Pi+0.1, Wrap(math.Pi+0.1), 1e-9)
	assert.InDelta(t, math.Pi-0.1, Wrap(math.Pi-0.1), 1e-9)
}

// TestCameraCoordinateTransformerRoundTrip checks the design note invariant:
// ToImage(ToKF(b)) reproduces b for any of the 8 orientations on normalized
// boxes that fit entirely within the frame.
func TestCameraCoordinateTransformerRoundTrip(t *testing.T) {
	t.Parallel()

	orientations := []Orientation{Orientation0, Orientation90, Orientation180, Orientation270}

	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(64, 3840).Draw(t, "width")
		height := rapid.IntRange(64, 2160).Draw(t, "height")
		orientation := orientations[rapid.IntRange(0, 3).Draw(t, "orientationIdx")]
		mirrored := rapid.Bool().Draw(t, "mirrored")

		w := rapid.Float64Range(0.01, 0.5).Draw(t, "w")
		h := rapid.Float64Range(0.01, 0.5).Draw(t, "h")
		x := rapid.Float64Range(0, 1-w).Draw(t, "x")
		y := rapid.Float64Range(0, 1-h).Draw(t, "y")

		b := Box{X: x, Y: y, W: w, H: h}
		xf := NewCameraCoordinateTransformer(width, height, orientation, mirrored)

		kf := xf.ToKF(b)
		back := xf.ToImage(kf)

		assert.InDelta(t, b.X, back.X, 1e-6)
		assert.InDelta(t, b.Y, back.Y, 1e-6)
		assert.InDelta(t, b.W, back.W, 1e-6)
		assert.InDelta(t, b.H, back.H, 1e-6)
	})
}

func TestClamp(t *testing.T) {
	t.Parallel()
	xf := NewCameraCoordinateTransformer(100, 100, Orientation0, false)

	out, clampedX, clampedY := xf.Clamp(Box{X: -10, Y: 50, W: 10, H: 10})
	assert.True(t, clampedX)
	assert.False(t, clampedY)
	assert.InDelta(t, 5, out.X, 1e-9)

	out, clampedX, clampedY = xf.Clamp(Box{X: 50, Y: 1000, W: 10, H: 10})
	assert.False(t, clampedX)
	assert.True(t, clampedY)
	assert.InDelta(t, 95, out.Y, 1e-9)
}
