package domain

type Segment struct {
	Index            int
	Duration         float64
	URI              string
	HasDiscontinuity bool
	HasMap           bool

	// StartLine..EndLine is the segment's span in the source text, covering any
	// tags between the previous segment and this one. EndLine is the URI line.
	StartLine int
	EndLine   int
	Raw       []string
}

type HeaderLine struct {
	Line int
	Text string
}

type Headers struct {
	Main  []HeaderLine
	Other []HeaderLine
}

type SegmentStats struct {
	Mean   float64
	StdDev float64
	P10    float64
	P90    float64
	Total  float64
	Count  int
	Min    float64
	Max    float64
}

type AdScore struct {
	Deviation          float64
	ZScore             float64
	DeviationScore     float64
	PositionScore      float64
	DiscontinuityScore float64
	Combined           float64
	IsAd               bool
}

type AnalyzedSegment struct {
	Segment
	Score AdScore
}
