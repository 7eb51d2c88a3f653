package quality

import (
	"strconv"
	"strings"

	"github.com/eleven-am/hlsselect/internal/domain"
)

type tier struct {
	quality  domain.QualityTier
	minWidth int
}

// Ordered from the widest tier down; the first matching width wins.
var widthTiers = []tier{
	{quality: domain.Quality4K, minWidth: 3840},
	{quality: domain.Quality2K, minWidth: 2560},
	{quality: domain.Quality1080P, minWidth: 1920},
	{quality: domain.Quality720P, minWidth: 1280},
	{quality: domain.Quality480P, minWidth: 854},
}

var tierScores = map[domain.QualityTier]float64{
	domain.Quality4K:    100,
	domain.Quality2K:    90,
	domain.Quality1080P: 75,
	domain.Quality720P:  50,
	domain.Quality480P:  25,
	domain.QualitySD:    10,
}

// Minimum sustained throughput, in KB/s, required to play a tier smoothly.
var requiredKBps = map[domain.QualityTier]float64{
	domain.Quality4K:    2500,
	domain.Quality2K:    1875,
	domain.Quality1080P: 1000,
	domain.Quality720P:  500,
}

func FromWidth(width int) domain.QualityTier {
	if width <= 0 {
		return domain.QualityUnknown
	}
	for _, t := range widthTiers {
		if width >= t.minWidth {
			return t.quality
		}
	}
	return domain.QualitySD
}

// ParseWidth reads the width out of an HLS RESOLUTION attribute ("1920x1080").
func ParseWidth(resolution string) int {
	w, _, ok := strings.Cut(strings.TrimSpace(resolution), "x")
	if !ok {
		return 0
	}
	width, err := strconv.Atoi(w)
	if err != nil || width < 0 {
		return 0
	}
	return width
}

func Score(q domain.QualityTier) float64 {
	return tierScores[q]
}

// RequiredKBps reports the bandwidth floor for a tier. Tiers without a floor
// return false.
func RequiredKBps(q domain.QualityTier) (float64, bool) {
	v, ok := requiredKBps[q]
	return v, ok
}
