package playlist

import (
	"math"
	"testing"

	"github.com/eleven-am/hlsselect/internal/domain"
	"github.com/stretchr/testify/assert"
)

func segmentsWithDurations(durations ...float64) []domain.Segment {
	segments := make([]domain.Segment, len(durations))
	for i, d := range durations {
		segments[i] = domain.Segment{Index: i, Duration: d}
	}
	return segments
}

func TestCalculateStats_Empty(t *testing.T) {
	assert.Equal(t, domain.SegmentStats{}, CalculateStats(nil))
}

func TestCalculateStats_CountAndMean(t *testing.T) {
	inputs := [][]float64{
		{10},
		{9.5, 9.6, 9.4, 2.1, 9.5, 9.6},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		{0.5, 12.25, 6, 6, 6},
	}

	for _, durations := range inputs {
		stats := CalculateStats(segmentsWithDurations(durations...))

		var sum float64
		for _, d := range durations {
			sum += d
		}

		assert.Equal(t, len(durations), stats.Count)
		assert.InDelta(t, sum/float64(len(durations)), stats.Mean, 1e-6)
		assert.InDelta(t, sum, stats.Total, 1e-6)
	}
}

func TestCalculateStats_PopulationStdDevAndPercentiles(t *testing.T) {
	stats := CalculateStats(segmentsWithDurations(2, 4, 4, 4, 5, 5, 7, 9))

	assert.InDelta(t, 5.0, stats.Mean, 1e-9)
	assert.InDelta(t, 2.0, stats.StdDev, 1e-9)
	// sorted[floor(8*0.1)] = sorted[0], sorted[floor(8*0.9)] = sorted[7]
	assert.Equal(t, 2.0, stats.P10)
	assert.Equal(t, 9.0, stats.P90)
	assert.Equal(t, 2.0, stats.Min)
	assert.Equal(t, 9.0, stats.Max)
}

func TestCalculateStats_UniformHasZeroStdDev(t *testing.T) {
	stats := CalculateStats(segmentsWithDurations(6, 6, 6))
	assert.Equal(t, 0.0, stats.StdDev)
	assert.False(t, math.IsNaN(stats.StdDev))
}
