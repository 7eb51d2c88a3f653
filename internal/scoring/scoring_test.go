package scoring

import (
	"math"
	"testing"

	"github.com/eleven-am/hlsselect/internal/domain"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestScore_BandwidthLimitedTier(t *testing.T) {
	b := Bounds{MaxSpeed: 800, MinPing: 100, MaxPing: 100, MaxJitter: 0}
	r := domain.ProbeResult{Quality: domain.Quality4K, ThroughputKBps: 800, PingMillis: 100}

	_, bd := Score(r, b, DefaultParams)

	if !bd.BandwidthLimited {
		t.Fatalf("4K at 800KB/s should be bandwidth limited")
	}
	if !approx(bd.Quality, 30) {
		t.Fatalf("expected quality sub-score 100*0.3, got %f", bd.Quality)
	}
}

func TestScore_UnknownSpeedIsNotPenalized(t *testing.T) {
	r := domain.ProbeResult{Quality: domain.Quality4K, PingMillis: 100}

	_, bd := Score(r, Bounds{MinPing: 50, MaxPing: 1000}, DefaultParams)

	if bd.BandwidthLimited || bd.Quality != 100 {
		t.Fatalf("unknown speed must not trigger the bandwidth penalty: %#v", bd)
	}
	if bd.Speed != 30 {
		t.Fatalf("unknown speed should score 30, got %f", bd.Speed)
	}
}

func TestScore_SubScores(t *testing.T) {
	b := Bounds{MinPing: 100, MaxPing: 500, MaxJitter: 200}
	r := domain.ProbeResult{Quality: domain.Quality720P, ThroughputKBps: 2500, PingMillis: 300, JitterKBps: 50}

	score, bd := Score(r, b, DefaultParams)

	if !approx(bd.Speed, 50) {
		t.Fatalf("speed at the midpoint should score 50, got %f", bd.Speed)
	}
	if !approx(bd.Ping, 50) {
		t.Fatalf("ping halfway between bounds should score 50, got %f", bd.Ping)
	}
	if !approx(bd.Jitter, 75) {
		t.Fatalf("jitter at a quarter of max should score 75, got %f", bd.Jitter)
	}
	if !approx(bd.Penalty, 1-(150.0/450.0)*0.3) {
		t.Fatalf("unexpected latency penalty %f", bd.Penalty)
	}

	want := (50*0.35 + 50*0.35 + 50*0.10 + 75*0.20) * bd.Penalty
	if !approx(score, want) {
		t.Fatalf("expected score %f, got %f", want, score)
	}
}

func TestPingScore_Edges(t *testing.T) {
	if pingScore(0, Bounds{MinPing: 1, MaxPing: 2}) != 0 {
		t.Fatalf("non-positive ping scores 0")
	}
	if pingScore(300, Bounds{MinPing: 300, MaxPing: 300}) != 100 {
		t.Fatalf("equal bounds score 100")
	}
	if pingScore(2000, Bounds{MinPing: 50, MaxPing: 1000}) != 0 {
		t.Fatalf("ping above max clamps to 0")
	}
}

func TestLatencyPenalty(t *testing.T) {
	p := DefaultParams
	cases := map[float64]float64{0: 1, 150: 1, 375: 0.85, 600: 0.7, 5000: 0.7}
	for ping, want := range cases {
		if got := latencyPenalty(ping, p); !approx(got, want) {
			t.Fatalf("penalty(%v) = %v, want %v", ping, got, want)
		}
	}
}

func TestNewBounds_DefaultsAndObserved(t *testing.T) {
	b := NewBounds(nil, DefaultParams)
	if b != (Bounds{MaxSpeed: 1024, MinPing: 50, MaxPing: 1000, MaxJitter: 500}) {
		t.Fatalf("unexpected default bounds %#v", b)
	}

	b = NewBounds([]domain.ProbeResult{
		{ThroughputKBps: 900, PingMillis: 120, JitterKBps: 30},
		{ThroughputKBps: 0, PingMillis: 400, JitterKBps: 0},
		{ThroughputKBps: 3000, PingMillis: 0, JitterKBps: 80},
	}, DefaultParams)
	if b != (Bounds{MaxSpeed: 3000, MinPing: 120, MaxPing: 400, MaxJitter: 80}) {
		t.Fatalf("unexpected observed bounds %#v", b)
	}
}

func TestRank_BestFirstWithDeclarationTieBreak(t *testing.T) {
	results := []domain.ProbeResult{
		{SourceID: "slow-4k", Quality: domain.Quality4K, ThroughputKBps: 800, PingMillis: 120, Order: 0},
		{SourceID: "twin-b", Quality: domain.Quality1080P, ThroughputKBps: 3000, PingMillis: 100, Order: 2},
		{SourceID: "twin-a", Quality: domain.Quality1080P, ThroughputKBps: 3000, PingMillis: 100, Order: 1},
	}

	ranked := Rank(results, DefaultParams)

	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked sources, got %d", len(ranked))
	}
	if ranked[0].SourceID != "twin-a" || ranked[1].SourceID != "twin-b" {
		t.Fatalf("expected tie broken by declaration order, got %s, %s", ranked[0].SourceID, ranked[1].SourceID)
	}
	if ranked[2].SourceID != "slow-4k" || !ranked[2].Breakdown.BandwidthLimited {
		t.Fatalf("bandwidth limited 4K should rank last: %#v", ranked[2])
	}
	for _, r := range ranked {
		if r.Score < 0 {
			t.Fatalf("score must be non-negative, got %f", r.Score)
		}
	}
}
