package scoring

import (
	"math"
	"slices"

	"github.com/eleven-am/hlsselect/internal/domain"
	"github.com/eleven-am/hlsselect/internal/quality"
)

type Params struct {
	WQuality, WSpeed, WPing, WJitter float64

	// BandwidthPenalty scales the quality score of a tier the measured speed cannot sustain.
	BandwidthPenalty float64

	// Speed score is a logistic curve centred on SpeedMidpoint KB/s.
	SpeedMidpoint     float64
	SpeedSteepness    float64
	UnknownSpeedScore float64

	// Latency penalty falls linearly from 1 at PenaltyGoodMs to PenaltyFloor at PenaltyBadMs.
	PenaltyGoodMs float64
	PenaltyBadMs  float64
	PenaltyFloor  float64

	// Bounds used when a batch has no valid measurement.
	DefaultMaxSpeed  float64
	DefaultMinPing   float64
	DefaultMaxPing   float64
	DefaultMaxJitter float64
}

var DefaultParams = Params{
	WQuality: 0.35, WSpeed: 0.35, WPing: 0.10, WJitter: 0.20,

	BandwidthPenalty: 0.3,

	SpeedMidpoint:     2500,
	SpeedSteepness:    0.0015,
	UnknownSpeedScore: 30,

	PenaltyGoodMs: 150,
	PenaltyBadMs:  600,
	PenaltyFloor:  0.7,

	DefaultMaxSpeed:  1024,
	DefaultMinPing:   50,
	DefaultMaxPing:   1000,
	DefaultMaxJitter: 500,
}

// Bounds normalizes one batch of probe results against each other.
type Bounds struct {
	// MaxSpeed is reported for diagnostics; speed is scored on an absolute curve.
	MaxSpeed  float64
	MinPing   float64
	MaxPing   float64
	MaxJitter float64
}

// NewBounds derives bounds from the positive measurements in results, falling
// back to the defaults for any quantity nobody measured.
func NewBounds(results []domain.ProbeResult, p Params) Bounds {
	b := Bounds{
		MaxSpeed:  p.DefaultMaxSpeed,
		MinPing:   p.DefaultMinPing,
		MaxPing:   p.DefaultMaxPing,
		MaxJitter: p.DefaultMaxJitter,
	}

	var speeds, pings, jitters []float64
	for _, r := range results {
		if r.ThroughputKBps > 0 {
			speeds = append(speeds, r.ThroughputKBps)
		}
		if r.PingMillis > 0 {
			pings = append(pings, r.PingMillis)
		}
		if r.JitterKBps > 0 {
			jitters = append(jitters, r.JitterKBps)
		}
	}

	if len(speeds) > 0 {
		b.MaxSpeed = slices.Max(speeds)
	}
	if len(pings) > 0 {
		b.MinPing = slices.Min(pings)
		b.MaxPing = slices.Max(pings)
	}
	if len(jitters) > 0 {
		b.MaxJitter = slices.Max(jitters)
	}
	return b
}

func Score(r domain.ProbeResult, b Bounds, p Params) (float64, domain.ScoreBreakdown) {
	var bd domain.ScoreBreakdown

	bd.Quality = quality.Score(r.Quality)
	if required, ok := quality.RequiredKBps(r.Quality); ok && r.ThroughputKBps > 0 && r.ThroughputKBps < required {
		bd.Quality *= p.BandwidthPenalty
		bd.BandwidthLimited = true
	}

	bd.Speed = speedScore(r.ThroughputKBps, p)
	bd.Ping = pingScore(r.PingMillis, b)
	bd.Jitter = jitterScore(r.JitterKBps, b)
	bd.Penalty = latencyPenalty(r.PingMillis, p)

	score := bd.Quality*p.WQuality + bd.Speed*p.WSpeed + bd.Ping*p.WPing + bd.Jitter*p.WJitter
	score *= bd.Penalty

	return math.Max(0, score), bd
}

func speedScore(kbps float64, p Params) float64 {
	if kbps <= 0 {
		return p.UnknownSpeedScore
	}
	return 100 / (1 + math.Exp(-p.SpeedSteepness*(kbps-p.SpeedMidpoint)))
}

func pingScore(ping float64, b Bounds) float64 {
	if ping <= 0 {
		return 0
	}
	if b.MaxPing == b.MinPing {
		return 100
	}
	ratio := (b.MaxPing - ping) / (b.MaxPing - b.MinPing)
	return math.Min(100, math.Max(0, ratio*100))
}

func jitterScore(jitter float64, b Bounds) float64 {
	if jitter <= 0 || b.MaxJitter <= 0 {
		return 100
	}
	return 100 * (1 - math.Min(1, jitter/b.MaxJitter))
}

func latencyPenalty(ping float64, p Params) float64 {
	switch {
	case ping <= p.PenaltyGoodMs:
		return 1
	case ping >= p.PenaltyBadMs:
		return p.PenaltyFloor
	}
	f := (ping - p.PenaltyGoodMs) / (p.PenaltyBadMs - p.PenaltyGoodMs)
	return 1 - f*(1-p.PenaltyFloor)
}

// Rank scores the batch and sorts it best first. Equal scores keep
// declaration order.
func Rank(results []domain.ProbeResult, p Params) []domain.ScoredSource {
	b := NewBounds(results, p)

	ranked := make([]domain.ScoredSource, len(results))
	for i, r := range results {
		score, bd := Score(r, b, p)
		ranked[i] = domain.ScoredSource{ProbeResult: r, Score: score, Breakdown: bd}
	}

	slices.SortStableFunc(ranked, func(a, b domain.ScoredSource) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.Order - b.Order
	})
	return ranked
}
