package track

// Config holds the tracker-specific tunables from spec.md §6.
type Config struct {
	ConfirmationThreshold             int
	DeactivationThreshold             int
	IterationsPerEmbeddingUpdate      int
	EmbeddingConfidenceThreshold      float64
	EmbeddingAlpha                    float64
	MinIoU                            float64
	MaxAppearanceCost                 float64
	MaxTeleportCost                   float64
	OCMWeight                         float64
	ConfidenceWeight                  float64
	AppearanceWeight                  float64
	VelocityDamping                   float64
	GrowthDamping                     float64
	AppearanceCostVariance            float64
	AppearanceCostMeasurementVariance float64
}

// DefaultConfig returns tracker tunables in the range spec.md implies,
// suitable as a starting point for the demo driver and tests.
func DefaultConfig() Config {
	return Config{
		ConfirmationThreshold:        30,
		DeactivationThreshold:        15,
		IterationsPerEmbeddingUpdate: 5,
		EmbeddingConfidenceThreshold: 0.5,
		EmbeddingAlpha:               0.3,
		MinIoU:                       0.3,
		MaxAppearanceCost:            0.4,
		MaxTeleportCost:              0.25,
		OCMWeight:                    0.5,
		ConfidenceWeight:             0.25,
		AppearanceWeight:             1.0,
		VelocityDamping:              0.8,
		GrowthDamping:                0.9,
		AppearanceCostVariance:       0.001,
		AppearanceCostMeasurementVariance: 0.05,
	}
}
