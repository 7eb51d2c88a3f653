package domain

import "time"

type QualityTier string

const (
	QualitySD      QualityTier = "SD"
	Quality480P    QualityTier = "480P"
	Quality720P    QualityTier = "720P"
	Quality1080P   QualityTier = "1080P"
	Quality2K      QualityTier = "2K"
	Quality4K      QualityTier = "4K"
	QualityUnknown QualityTier = "UNKNOWN"
)

type CandidateSource struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	SampleSegmentURL string   `json:"sample_segment_url" yaml:"sample_segment_url"`
	SegmentURLs      []string `json:"segment_urls" yaml:"segment_urls"`

	// Order is the declaration index within the candidate list.
	Order int `json:"order" yaml:"-"`
}

// ProbeURL returns the URL used by the full probe: the second entry when
// present, so that the probe does not hit the same warmed-up resource as the ping.
func (c CandidateSource) ProbeURL() string {
	switch {
	case len(c.SegmentURLs) > 1:
		return c.SegmentURLs[1]
	case len(c.SegmentURLs) == 1:
		return c.SegmentURLs[0]
	default:
		return c.SampleSegmentURL
	}
}

func (c CandidateSource) PingURL() string {
	if c.SampleSegmentURL != "" {
		return c.SampleSegmentURL
	}
	if len(c.SegmentURLs) > 0 {
		return c.SegmentURLs[0]
	}
	return ""
}

type PingResult struct {
	Source CandidateSource
	Ping   time.Duration
	Err    error
}

type ProbeResult struct {
	SourceID       string      `json:"source_id"`
	URL            string      `json:"url"`
	PingMillis     float64     `json:"ping_ms"`
	Quality        QualityTier `json:"quality"`
	Width          int         `json:"width,omitempty"`
	ThroughputKBps float64     `json:"throughput_kbps"`
	JitterKBps     float64     `json:"jitter_kbps"`
	Order          int         `json:"order"`
}

type ScoreBreakdown struct {
	Quality float64 `json:"quality"`
	Speed   float64 `json:"speed"`
	Ping    float64 `json:"ping"`
	Jitter  float64 `json:"jitter"`
	Penalty float64 `json:"penalty"`

	// BandwidthLimited is set when the claimed tier was discounted because
	// the measured throughput cannot sustain it.
	BandwidthLimited bool `json:"bandwidth_limited,omitempty"`
}

type ScoredSource struct {
	ProbeResult
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}
