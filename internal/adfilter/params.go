package adfilter

// Params holds the tunable constants of both ad heuristics.
type Params struct {
	// Statistical stage weights. Combined = Deviation*w + Position*w + Discontinuity*w, capped at 1.
	DeviationWeight     float64
	PositionWeight      float64
	DiscontinuityWeight float64

	// ZScoreScale maps a z-score onto [0,1]: abnormality = min(1, z/ZScoreScale).
	ZScoreScale float64

	// PositionWindow is how many segments from either end count as head or tail.
	PositionWindow      int
	HeadPositionFactor  float64
	TailPositionFactor  float64
	DiscontinuityFactor float64

	// AdThreshold gates classification; the removal threshold is derived from it.
	AdThreshold      float64
	DynamicSlope     float64
	DynamicThreshMin float64
	DynamicThreshMax float64

	// Segments shorter than MicroSegmentSeconds past MicroSegmentMinIndex are always removed.
	MicroSegmentSeconds  float64
	MicroSegmentMinIndex int

	// Continuity stage.
	NameLengthTolerance int
	RepeatBenchmark     int
	// A media path further from its predecessor than the learned maximum is an
	// outlier, as long as that maximum is positive and below MaxLearnedDistance.
	MaxLearnedDistance int
	// RolloverTolerance stops a counter gaining a digit (seg9 to seg10) from
	// counting as an outlier.
	RolloverTolerance bool

	// WrappedShareLimit caps the fraction of segments that brute-force mode
	// may drop; above it only the markers are stripped.
	WrappedShareLimit float64
}

func DefaultParams() Params {
	return Params{
		DeviationWeight:     0.6,
		PositionWeight:      0.3,
		DiscontinuityWeight: 0.1,
		ZScoreScale:         3,

		PositionWindow:      3,
		HeadPositionFactor:  0.8,
		TailPositionFactor:  0.5,
		DiscontinuityFactor: 0.3,

		AdThreshold:      0.65,
		DynamicSlope:     0.2,
		DynamicThreshMin: 0.5,
		DynamicThreshMax: 0.8,

		MicroSegmentSeconds:  1.0,
		MicroSegmentMinIndex: 3,

		NameLengthTolerance: 1,
		RepeatBenchmark:     5,
		MaxLearnedDistance:  10,

		WrappedShareLimit: 0.5,
	}
}
