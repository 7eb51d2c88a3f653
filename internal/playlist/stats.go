package playlist

import (
	"math"
	"slices"

	"github.com/eleven-am/hlsselect/internal/domain"
)

func CalculateStats(segments []domain.Segment) domain.SegmentStats {
	if len(segments) == 0 {
		return domain.SegmentStats{}
	}

	durations := make([]float64, len(segments))
	var total float64
	for i, seg := range segments {
		durations[i] = seg.Duration
		total += seg.Duration
	}

	n := float64(len(durations))
	mean := total / n

	var sq float64
	for _, d := range durations {
		sq += (d - mean) * (d - mean)
	}

	slices.Sort(durations)

	return domain.SegmentStats{
		Mean:   mean,
		StdDev: math.Sqrt(sq / n),
		P10:    nearestRank(durations, 0.1),
		P90:    nearestRank(durations, 0.9),
		Total:  total,
		Count:  len(segments),
		Min:    durations[0],
		Max:    durations[len(durations)-1],
	}
}

func nearestRank(sorted []float64, q float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * q))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
