// Package hlsselect picks the best playback source among several mirrors of the
// same HLS stream and strips advertisement segments from media playlists.
//
// hlsselect works purely on network timing and playlist text. It never decodes
// video beyond an optional ffprobe call used to learn a stream's resolution when
// the playlist does not advertise one.
//
// # Source Selection
//
// SelectSource runs a two-phase probe:
//
//  1. Every candidate's sample URL is pinged with a HEAD request in parallel.
//     Candidates slower than PingThreshold are discarded.
//  2. Surviving candidates are probed in depth: their playlist is fetched and
//     timed, the resolution tier is read (or decoded), and the head of the first
//     segment is downloaded to measure throughput and jitter.
//
// The probe results are then scored (quality, speed, latency, stability) and the
// best candidate wins. Probing failures never fail a selection; they only remove
// a candidate from consideration, and sensible fallbacks apply when nothing
// could be measured.
//
// # Basic Usage
//
//	logger := zerolog.New(os.Stderr)
//	controller := hlsselect.NewController(hlsselect.Options{
//	    Logger:          &logger,
//	    SequentialProbe: false,
//	})
//
//	selection, err := controller.SelectSource(ctx, candidates)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fetch the chosen playlist with ads removed
//	playlist, err := controller.FetchPlaylist(ctx, selection.PlaybackURL)
//
// # Ad Filtering
//
// FilterPlaylist runs two independent heuristics in sequence. The continuity
// stage looks at how segment URIs are named and drops blocks that do not fit
// the surrounding content. The statistical stage drops segments whose duration
// is anomalous for the playlist. The rewritten playlist keeps its structural
// tags and has TARGETDURATION and MEDIA-SEQUENCE updated for the segments that
// remain. Multivariant playlists and text that cannot be parsed are returned
// unchanged.
package hlsselect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eleven-am/hlsselect/internal/adfilter"
	"github.com/eleven-am/hlsselect/internal/domain"
	"github.com/eleven-am/hlsselect/internal/probe"
	"github.com/eleven-am/hlsselect/internal/scoring"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type (
	// CandidateSource is one mirror of the stream being selected. SampleSegmentURL
	// is pinged in the first phase; SegmentURLs lists the episode playlists, and
	// the second entry (or the first if there is only one) is probed in depth.
	CandidateSource = domain.CandidateSource

	// QualityTier is a coarse resolution bucket, from SD to 4K.
	QualityTier = domain.QualityTier

	// PingResult is the outcome of the liveness ping against one candidate.
	PingResult = domain.PingResult

	// ProbeResult holds the measurements of the in-depth probe of one candidate.
	ProbeResult = domain.ProbeResult

	// ScoredSource is a ProbeResult with its final score and sub-scores.
	ScoredSource = domain.ScoredSource

	// ScoreBreakdown exposes the individual sub-scores of a ScoredSource.
	ScoreBreakdown = domain.ScoreBreakdown

	// ProbeError describes a failed network probe. It is logged, never returned
	// from SelectSource.
	ProbeError = domain.ProbeError

	// Decoder reads the picture width of a media segment. The default
	// implementation shells out to ffprobe.
	Decoder = probe.Decoder

	// ScoringParams tunes the source scorer.
	ScoringParams = scoring.Params

	// AdFilterParams tunes both ad filtering heuristics.
	AdFilterParams = adfilter.Params
)

const (
	QualitySD      = domain.QualitySD
	Quality480P    = domain.Quality480P
	Quality720P    = domain.Quality720P
	Quality1080P   = domain.Quality1080P
	Quality2K      = domain.Quality2K
	Quality4K      = domain.Quality4K
	QualityUnknown = domain.QualityUnknown
)

var (
	// ErrNoCandidates is returned by SelectSource for an empty candidate list.
	ErrNoCandidates = domain.ErrNoCandidates

	// ErrAllSourcesFailed is returned by SelectSource when no candidate carries
	// any URL to play.
	ErrAllSourcesFailed = domain.ErrAllSourcesFailed

	// ErrSourceUnavailable is returned by FetchPlaylist when the playlist cannot
	// be downloaded.
	ErrSourceUnavailable = domain.ErrSourceUnavailable
)

// Options configures the Controller behavior and dependencies.
type Options struct {
	// Logger receives structured logs. Default: a disabled logger.
	Logger *zerolog.Logger

	// HTTPClient is used for every network request.
	// Default: a pooled client with no global timeout; each request is bounded
	// by the timeouts below.
	HTTPClient *http.Client

	// Decoder learns the resolution of streams whose playlist does not
	// advertise one. Default: ffprobe from PATH.
	Decoder Decoder

	// DisableDecoder skips decode-time resolution probing entirely.
	DisableDecoder bool

	// SequentialProbe probes surviving candidates one at a time instead of in
	// two parallel batches. Results are equivalent; sequential mode is gentler
	// on shared uplinks.
	SequentialProbe bool

	// DisableAdFilter makes FilterPlaylist and FetchPlaylist return playlists
	// byte-for-byte as downloaded.
	DisableAdFilter bool

	// RegexFilter is an optional case-insensitive pattern whose matches are
	// deleted from the playlist text before ad filtering. An invalid pattern is
	// logged and ignored.
	RegexFilter string

	// PingThreshold is the phase-one cut-off. Default: 800ms.
	PingThreshold time.Duration

	// PingTimeout bounds each phase-one request. Default: 1 second.
	PingTimeout time.Duration

	// ProbeTimeout bounds the whole phase-two probe of one candidate.
	// Default: 8 seconds.
	ProbeTimeout time.Duration

	// PlaylistTimeout bounds FetchPlaylist. Default: 8 seconds.
	PlaylistTimeout time.Duration

	// SequentialDelay is the pause between probes in sequential mode.
	// Default: 100ms.
	SequentialDelay time.Duration

	// MaxProbeBytes is the size of the ranged segment download used to measure
	// throughput. Default: 2 MiB.
	MaxProbeBytes int64

	// SampleWindow is the width of one throughput sample. Jitter is the
	// standard deviation of these samples. Default: 100ms.
	SampleWindow time.Duration

	// MaxProbeRate caps phase-two probes started per second. Default: 0 (no cap).
	MaxProbeRate int

	// Scoring tunes the scorer. Default: scoring defaults.
	Scoring ScoringParams

	// AdFilter tunes the ad heuristics. Default: ad filter defaults.
	AdFilter AdFilterParams
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.HTTPClient == nil {
		o.HTTPClient = probe.NewHTTPClient()
	}
	if o.Decoder == nil && !o.DisableDecoder {
		o.Decoder = probe.NewFFProbe()
	}
	if o.DisableDecoder {
		o.Decoder = nil
	}
	if o.PingThreshold == 0 {
		o.PingThreshold = 800 * time.Millisecond
	}
	if o.PingTimeout == 0 {
		o.PingTimeout = probe.DefaultPingTimeout
	}
	if o.ProbeTimeout == 0 {
		o.ProbeTimeout = probe.DefaultProbeTimeout
	}
	if o.PlaylistTimeout == 0 {
		o.PlaylistTimeout = 8 * time.Second
	}
	if o.SequentialDelay == 0 {
		o.SequentialDelay = probe.DefaultSequentialDelay
	}
	if o.MaxProbeBytes == 0 {
		o.MaxProbeBytes = probe.DefaultMaxProbeBytes
	}
	if o.SampleWindow == 0 {
		o.SampleWindow = probe.DefaultSampleWindow
	}
	if o.Scoring == (ScoringParams{}) {
		o.Scoring = scoring.DefaultParams
	}
	if o.AdFilter == (AdFilterParams{}) {
		o.AdFilter = adfilter.DefaultParams()
	}
}

func (o *Options) validate() {
	if o.PingThreshold < 0 || o.PingTimeout < 0 || o.ProbeTimeout < 0 || o.PlaylistTimeout < 0 {
		panic("hlsselect: timeouts must not be negative")
	}
	if o.MaxProbeRate < 0 {
		panic("hlsselect: MaxProbeRate must not be negative")
	}
}

// Selection is the outcome of SelectSource.
type Selection struct {
	// ID identifies this selection in logs.
	ID uuid.UUID `json:"id"`

	// Source is the chosen candidate.
	Source CandidateSource `json:"source"`

	// PlaybackURL is the URL the player should load for the chosen candidate.
	PlaybackURL string `json:"playback_url"`

	// Best is the winning score, nil when the choice was made without a
	// second-phase probe.
	Best *ScoredSource `json:"best,omitempty"`

	// Ranked lists every successfully probed candidate, best first, so callers
	// can display measurements without probing again.
	Ranked []ScoredSource `json:"ranked,omitempty"`

	// Pings lists phase-one results in candidate order.
	Pings []PingResult `json:"-"`

	// Fallback is set when the source was chosen by a fallback rule because
	// nothing could be measured.
	Fallback bool `json:"fallback"`

	// Reason names the rule that produced the choice.
	Reason string `json:"reason"`
}

const (
	ReasonSingleCandidate = "single-candidate"
	ReasonNoSurvivors     = "no-survivors"
	ReasonSingleSurvivor  = "single-survivor"
	ReasonProbesFailed    = "probes-failed"
	ReasonScored          = "scored"
)

// Controller is the main entry point for source selection and playlist
// filtering. It holds no per-request state and is safe for concurrent use.
type Controller struct {
	opts   Options
	prober *probe.Prober
	filter *adfilter.Pipeline
	logger zerolog.Logger
}

// NewController creates a new Controller with the given options.
// It panics if options hold negative durations or rates.
func NewController(opts Options) *Controller {
	opts.validate()
	opts.setDefaults()

	logger := opts.Logger.With().Str("component", "hlsselect").Logger()

	prober := probe.NewProber(probe.Config{
		Client:          opts.HTTPClient,
		Decoder:         opts.Decoder,
		Logger:          *opts.Logger,
		PingTimeout:     opts.PingTimeout,
		ProbeTimeout:    opts.ProbeTimeout,
		SequentialDelay: opts.SequentialDelay,
		MaxProbeBytes:   opts.MaxProbeBytes,
		SampleWindow:    opts.SampleWindow,
		MaxProbeRate:    opts.MaxProbeRate,
	})

	filter := adfilter.Default(*opts.Logger, opts.AdFilter)
	if opts.RegexFilter != "" {
		re, err := adfilter.NewRegex(opts.RegexFilter)
		if err != nil {
			logger.Warn().Err(err).Msg("ignoring regex filter")
		} else {
			stages := append([]adfilter.Stage{re}, filter.Stages()...)
			filter = adfilter.NewPipeline(*opts.Logger, stages...)
		}
	}

	return &Controller{
		opts:   opts,
		prober: prober,
		filter: filter,
		logger: logger,
	}
}

// SelectSource picks the best candidate.
//
// A single candidate is returned without any network request. Otherwise all
// candidates are pinged; if none answers within PingThreshold the first
// candidate is returned, and if exactly one does it is returned without a
// second phase. Remaining candidates are probed in depth and scored; if every
// probe fails, the fastest pinging candidate is returned.
//
// Returns ErrNoCandidates for an empty list, ErrAllSourcesFailed when no
// candidate has a URL, or the context error if ctx is done before a choice is
// made.
func (c *Controller) SelectSource(ctx context.Context, candidates []CandidateSource) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	sources := make([]CandidateSource, len(candidates))
	playable := false
	for i, cand := range candidates {
		cand.Order = i
		sources[i] = cand
		if cand.PingURL() != "" {
			playable = true
		}
	}
	if !playable {
		return nil, fmt.Errorf("select source: %w", ErrAllSourcesFailed)
	}

	sel := &Selection{ID: uuid.New()}
	log := c.logger.With().Str("selection_id", sel.ID.String()).Logger()

	if len(sources) == 1 {
		return sel.choose(sources[0], ReasonSingleCandidate), nil
	}

	sel.Pings = c.prober.Ping(ctx, sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	survivors := probe.Survivors(sel.Pings, c.opts.PingThreshold)
	log.Debug().Int("candidates", len(sources)).Int("survivors", len(survivors)).Msg("ping phase complete")

	switch len(survivors) {
	case 0:
		log.Warn().Msg("no source answered in time, using the first candidate")
		sel.Fallback = true
		return sel.choose(sources[0], ReasonNoSurvivors), nil
	case 1:
		return sel.choose(survivors[0].Source, ReasonSingleSurvivor), nil
	}

	probing := make([]CandidateSource, len(survivors))
	for i, s := range survivors {
		probing[i] = s.Source
	}

	results := c.prober.ProbeAll(ctx, probing, c.opts.SequentialProbe)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		log.Warn().Msg("every probe failed, using the fastest pinging source")
		sel.Fallback = true
		return sel.choose(survivors[0].Source, ReasonProbesFailed), nil
	}

	sel.Ranked = scoring.Rank(results, c.opts.Scoring)
	best := sel.Ranked[0]
	sel.Best = &best

	for i, r := range sel.Ranked {
		log.Debug().
			Int("rank", i+1).
			Str("source", r.SourceID).
			Float64("score", r.Score).
			Str("quality", string(r.Quality)).
			Float64("speed_kbps", r.ThroughputKBps).
			Float64("ping_ms", r.PingMillis).
			Float64("jitter_kbps", r.JitterKBps).
			Msg("ranked source")
	}

	sel.choose(sources[best.Order], ReasonScored)
	log.Info().Str("source", sel.Source.ID).Float64("score", best.Score).Msg("source selected")
	return sel, nil
}

func (s *Selection) choose(src CandidateSource, reason string) *Selection {
	s.Source = src
	s.PlaybackURL = src.PingURL()
	s.Reason = reason
	return s
}

// FilterPlaylist removes advertisement segments from a media playlist.
//
// The input is returned unchanged when ad filtering is disabled, when it is a
// multivariant playlist, or when it holds no parseable segments. Filtering
// never fails: a heuristic that cannot make sense of the input leaves it as is.
func (c *Controller) FilterPlaylist(content string) string {
	if c.opts.DisableAdFilter {
		return content
	}
	return c.filter.Apply(content)
}

// FetchPlaylist downloads a playlist and passes it through FilterPlaylist.
//
// Returns an error wrapping ErrSourceUnavailable when the download fails, times
// out or answers with a non-2xx status.
func (c *Controller) FetchPlaylist(ctx context.Context, playlistURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.PlaylistTimeout)
	defer cancel()

	content, err := probe.FetchText(ctx, c.opts.HTTPClient, playlistURL)
	if err != nil {
		return "", fmt.Errorf("fetch playlist: %w: %w", ErrSourceUnavailable, err)
	}

	return c.FilterPlaylist(content), nil
}
