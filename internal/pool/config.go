package pool

// Config holds the pool-level knobs from spec.md §6: buffer/model counts,
// scheduling cooldown, and the crop/clip geometry each ASDBuffer is built
// with.
type Config struct {
	NumVideoBuffers int
	NumASDModels    int

	// Cooldown is the minimum number of frames between two scheduled uses
	// of the same buffer (spec.md §4.3).
	Cooldown int

	Framerate   int
	VideoLength int
	MinFrames   int
	MinGapSize  int

	FrameWidth, FrameHeight int
	NormBias, NormScale     float32
}

// DefaultConfig returns the literal parameters from spec.md §8's end-to-end
// scenarios (framerate=30, framesPerUpdate=5, videoLength=25, minFrames=12).
func DefaultConfig() Config {
	return Config{
		NumVideoBuffers: 4,
		NumASDModels:    1,
		Cooldown:        5,
		Framerate:       30,
		VideoLength:     25,
		MinFrames:       12,
		MinGapSize:      3,
		FrameWidth:      112,
		FrameHeight:     112,
		NormBias:        0.5,
		NormScale:       2.0,
	}
}
