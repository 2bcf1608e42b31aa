package track

import "github.com/zsiec/asdcore/internal/geom"

// Prediction is a single face detector output, in normalized image-space
// coordinates, before a Detection ID or Kalman coordinates are assigned.
type Prediction struct {
	BoxImage   geom.Box
	Confidence float64
	Landmarks  [10]float64
	Attitude   Attitude
	IsFullFace bool
}

// FaceDetector is the external, black-box CNN face detector (spec.md §6).
// Implementations may be blocking CPU/GPU-bound calls; the tracker invokes
// them synchronously on the driver thread (spec.md §5).
type FaceDetector interface {
	Detect(pixelBuffer []byte, width, height int) ([]Prediction, error)
}

// FaceEmbedder is the external, black-box face embedder (spec.md §6). It
// writes a 512-dim L2-normalized embedding onto each detection it accepts;
// detections it refuses (low-quality crop) are left with a nil embedding.
type FaceEmbedder interface {
	Embed(pixelBuffer []byte, width, height int, detections []*Detection) error
}
