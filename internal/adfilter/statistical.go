package adfilter

import (
	"math"

	"github.com/eleven-am/hlsselect/internal/domain"
	"github.com/eleven-am/hlsselect/internal/playlist"
)

// Analyze scores every segment against the duration distribution of its playlist.
func Analyze(segments []domain.Segment, stats domain.SegmentStats, p Params) []domain.AnalyzedSegment {
	analyzed := make([]domain.AnalyzedSegment, len(segments))
	n := len(segments)

	for i, seg := range segments {
		deviation := math.Abs(seg.Duration - stats.Mean)

		var z float64
		if stats.StdDev > 0 {
			z = deviation / stats.StdDev
		}
		abnormality := math.Min(1, z/p.ZScoreScale)

		var position float64
		switch {
		case seg.Index < p.PositionWindow && seg.Duration < stats.P10:
			position = p.HeadPositionFactor
		case seg.Index > n-p.PositionWindow && seg.Duration < stats.P10:
			position = p.TailPositionFactor
		}

		var discontinuity float64
		if seg.HasDiscontinuity {
			discontinuity = p.DiscontinuityFactor
		}

		combined := math.Min(1, abnormality*p.DeviationWeight+
			position*p.PositionWeight+
			discontinuity*p.DiscontinuityWeight)

		analyzed[i] = domain.AnalyzedSegment{
			Segment: seg,
			Score: domain.AdScore{
				Deviation:          deviation,
				ZScore:             z,
				DeviationScore:     abnormality,
				PositionScore:      position,
				DiscontinuityScore: discontinuity,
				Combined:           combined,
				IsAd:               combined > p.AdThreshold,
			},
		}
	}

	return analyzed
}

// DynamicThreshold lowers the removal threshold for playlists whose durations
// vary a lot relative to their mean.
func DynamicThreshold(stats domain.SegmentStats, p Params) float64 {
	if stats.Mean <= 0 || stats.StdDev <= 0 {
		return p.AdThreshold
	}
	t := p.AdThreshold - (stats.StdDev/stats.Mean)*p.DynamicSlope
	return math.Min(p.DynamicThreshMax, math.Max(p.DynamicThreshMin, t))
}

// Decide returns the segments that survive removal, in their original order.
func Decide(analyzed []domain.AnalyzedSegment, stats domain.SegmentStats, p Params) []domain.Segment {
	threshold := DynamicThreshold(stats, p)

	kept := make([]domain.Segment, 0, len(analyzed))
	for _, a := range analyzed {
		if a.Score.IsAd && a.Score.Combined > threshold {
			continue
		}
		if a.Duration < p.MicroSegmentSeconds && a.Index > p.MicroSegmentMinIndex {
			continue
		}
		kept = append(kept, a.Segment)
	}
	return kept
}

// Statistical removes segments whose duration is anomalous for the playlist.
type Statistical struct {
	params Params
}

func NewStatistical(p Params) *Statistical {
	return &Statistical{params: p}
}

func (s *Statistical) Name() string { return "statistical" }

func (s *Statistical) Apply(content string) string {
	segments, headers := playlist.Parse(content)
	if len(segments) == 0 {
		return content
	}

	stats := playlist.CalculateStats(segments)
	kept := Decide(Analyze(segments, stats, s.params), stats, s.params)
	if len(kept) == len(segments) {
		return content
	}

	return playlist.Rebuild(content, headers, kept)
}
