// Package geom provides the planar geometry shared by the tracker and the
// face-crop pipeline: normalized image-space boxes, centered Kalman-filter
// coordinates, and the conversion between them under the 8 camera
// orientations (0/90/180/270, each optionally mirrored).
package geom

import "math"

// Orientation is the camera rotation applied before a frame reaches the
// tracker, in degrees clockwise.
type Orientation int

// Supported orientations, matching the external Frame contract in spec.md §6.
const (
	Orientation0 Orientation = 0
	Orientation90 Orientation = 90
	Orientation180 Orientation = 180
	Orientation270 Orientation = 270
)

// Point is a 2D coordinate, unit depends on context (normalized or pixels).
type Point struct {
	X, Y float64
}

// Box is an axis-aligned rectangle. In image-normalized space, X/Y/W/H are
// all in [0,1] relative to frame width/height. In Kalman-filter space, X/Y
// is the box center in pixels and W/H are pixel width/height.
type Box struct {
	X, Y, W, H float64
}

// Center returns the box's midpoint.
func (b Box) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Area returns width*height.
func (b Box) Area() float64 {
	return b.W * b.H
}

// IoU computes intersection-over-union between two axis-aligned boxes given
// in the same coordinate space (typically Kalman-filter coordinates, per
// spec.md §4.1's motion gate).
func IoU(a, b Box) float64 {
	ax0, ay0, ax1, ay1 := a.X-a.W/2, a.Y-a.H/2, a.X+a.W/2, a.Y+a.H/2
	bx0, by0, bx1, by1 := b.X-b.W/2, b.Y-b.H/2, b.X+b.W/2, b.Y+b.H/2

	ix0, iy0 := math.Max(ax0, bx0), math.Max(ay0, by0)
	ix1, iy1 := math.Min(ax1, bx1), math.Min(ay1, by1)

	iw, ih := ix1-ix0, iy1-iy0
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Wrap normalizes an angle into (-pi, pi].
func Wrap(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// CameraCoordinateTransformer converts axis-aligned boxes between
// image-normalized [0,1] space and centered, rotation-normalized
// Kalman-filter pixel space, for a fixed video resolution and orientation.
//
// toKf and toImage are inverses of each other for any of the 8
// orientations: ToImage(ToKF(b)) reproduces b (modulo float rounding).
type CameraCoordinateTransformer struct {
	Width, Height int
	Orientation   Orientation
	Mirrored      bool
}

// NewCameraCoordinateTransformer constructs a transformer for the given
// video resolution, orientation, and mirror flag.
func NewCameraCoordinateTransformer(width, height int, orientation Orientation, mirrored bool) *CameraCoordinateTransformer {
	return &CameraCoordinateTransformer{Width: width, Height: height, Orientation: orientation, Mirrored: mirrored}
}

// rotatedDims returns the frame's width/height as seen after rotation.
func (c *CameraCoordinateTransformer) rotatedDims() (w, h float64) {
	switch c.Orientation {
	case Orientation90, Orientation270:
		return float64(c.Height), float64(c.Width)
	default:
		return float64(c.Width), float64(c.Height)
	}
}

// rotateNormalized applies orientation (and mirroring) to a normalized
// [0,1] box, producing a normalized box in the rotated, upright frame.
func (c *CameraCoordinateTransformer) rotateNormalized(b Box, forward bool) Box {
	angle := c.Orientation
	if !forward {
		// Inverse rotation.
		switch angle {
		case Orientation90:
			angle = Orientation270
		case Orientation270:
			angle = Orientation90
		}
	}

	out := b
	switch angle {
	case Orientation90:
		out = Box{X: b.Y, Y: 1 - b.X - b.W, W: b.H, H: b.W}
	case Orientation180:
		out = Box{X: 1 - b.X - b.W, Y: 1 - b.Y - b.H, W: b.W, H: b.H}
	case Orientation270:
		out = Box{X: 1 - b.Y - b.H, Y: b.X, W: b.H, H: b.W}
	}

	if c.Mirrored {
		out.X = 1 - out.X - out.W
	}
	return out
}

// ToKF converts a normalized image-space box into centered Kalman-filter
// pixel coordinates for this transformer's resolution and orientation.
func (c *CameraCoordinateTransformer) ToKF(b Box) Box {
	rotated := c.rotateNormalized(b, true)
	w, h := c.rotatedDims()

	return Box{
		X: (rotated.X + rotated.W/2) * w,
		Y: (rotated.Y + rotated.H/2) * h,
		W: rotated.W * w,
		H: rotated.H * h,
	}
}

// ToImage converts centered Kalman-filter pixel coordinates back into a
// normalized [0,1] image-space box, inverting ToKF for the same
// orientation/mirror configuration.
func (c *CameraCoordinateTransformer) ToImage(b Box) Box {
	w, h := c.rotatedDims()

	normalized := Box{
		X: b.X/w - b.W/w/2,
		Y: b.Y/h - b.H/h/2,
		W: b.W / w,
		H: b.H / h,
	}

	// Undo mirroring before undoing rotation: rotateNormalized(forward=false)
	// expects the rotated-frame box, but mirroring was applied last in ToKF,
	// so it must be undone first here.
	if c.Mirrored {
		normalized.X = 1 - normalized.X - normalized.W
	}

	switch c.Orientation {
	case Orientation90:
		return Box{X: 1 - normalized.Y - normalized.H, Y: normalized.X, W: normalized.H, H: normalized.W}
	case Orientation180:
		return Box{X: 1 - normalized.X - normalized.W, Y: 1 - normalized.Y - normalized.H, W: normalized.W, H: normalized.H}
	case Orientation270:
		return Box{X: normalized.Y, Y: 1 - normalized.X - normalized.W, W: normalized.H, H: normalized.W}
	default:
		return normalized
	}
}

// Clamp restricts a KF-space box's center to stay within [half-size, dim -
// half-size] of the transformer's rotated frame bounds, returning the
// clamped box and whether X or Y was clamped (used by the tracker to zero
// the corresponding velocity component, per spec.md §4.1 step 1).
func (c *CameraCoordinateTransformer) Clamp(b Box) (out Box, clampedX, clampedY bool) {
	w, h := c.rotatedDims()
	out = b

	minX, maxX := b.W/2, w-b.W/2
	if out.X < minX {
		out.X = minX
		clampedX = true
	} else if out.X > maxX {
		out.X = maxX
		clampedX = true
	}

	minY, maxY := b.H/2, h-b.H/2
	if out.Y < minY {
		out.Y = minY
		clampedY = true
	} else if out.Y > maxY {
		out.Y = maxY
		clampedY = true
	}

	return out, clampedX, clampedY
}
