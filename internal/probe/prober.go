package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/eleven-am/hlsselect/internal/domain"
	"github.com/eleven-am/hlsselect/internal/quality"
	"github.com/grafov/m3u8"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Unreachable is the ping recorded for a source that has nothing to ping.
const Unreachable = time.Duration(math.MaxInt64)

const (
	DefaultPingTimeout     = time.Second
	DefaultProbeTimeout    = 8 * time.Second
	DefaultSequentialDelay = 100 * time.Millisecond
	DefaultMaxProbeBytes   = 2 << 20
	DefaultSampleWindow    = 100 * time.Millisecond
)

type Config struct {
	Client  *http.Client
	Decoder Decoder
	Logger  zerolog.Logger

	PingTimeout     time.Duration
	ProbeTimeout    time.Duration
	SequentialDelay time.Duration
	MaxProbeBytes   int64
	SampleWindow    time.Duration

	// MaxProbeRate caps full probes per second across all sources. Zero means unlimited.
	MaxProbeRate int
}

func (c *Config) setDefaults() {
	if c.Client == nil {
		c.Client = NewHTTPClient()
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.SequentialDelay < 0 {
		c.SequentialDelay = 0
	}
	if c.MaxProbeBytes <= 0 {
		c.MaxProbeBytes = DefaultMaxProbeBytes
	}
	if c.SampleWindow <= 0 {
		c.SampleWindow = DefaultSampleWindow
	}
}

type Prober struct {
	cfg     Config
	limiter ratelimit.Limiter
	logger  zerolog.Logger
}

func NewProber(cfg Config) *Prober {
	cfg.setDefaults()

	limiter := ratelimit.NewUnlimited()
	if cfg.MaxProbeRate > 0 {
		limiter = ratelimit.New(cfg.MaxProbeRate, ratelimit.WithoutSlack)
	}

	return &Prober{
		cfg:     cfg,
		limiter: limiter,
		logger:  cfg.Logger.With().Str("component", "probe").Logger(),
	}
}

// Ping times a HEAD request against every source concurrently. Results are in
// input order. A failed request still reports how long it took to fail.
func (p *Prober) Ping(ctx context.Context, sources []domain.CandidateSource) []domain.PingResult {
	results := make([]domain.PingResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = p.ping(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Prober) ping(ctx context.Context, src domain.CandidateSource) domain.PingResult {
	target := src.PingURL()
	if target == "" {
		return domain.PingResult{
			Source: src,
			Ping:   Unreachable,
			Err: &domain.ProbeError{
				Phase:    domain.PhasePing,
				SourceID: src.ID,
				Code:     domain.ErrCodeInvalid,
				Err:      errors.New("no url"),
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PingTimeout)
	defer cancel()

	start := time.Now()
	err := p.head(ctx, target)
	elapsed := time.Since(start)

	result := domain.PingResult{Source: src, Ping: elapsed}
	if err != nil {
		result.Err = newProbeError(domain.PhasePing, src, target, err)
		p.logger.Debug().Err(result.Err).Dur("elapsed", elapsed).Msg("ping failed")
	}
	return result
}

func (p *Prober) head(ctx context.Context, target string) error {
	req, err := newRequest(ctx, http.MethodHead, target)
	if err != nil {
		return err
	}
	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// Survivors keeps the results faster than threshold, fastest first. Equal
// pings keep their input order.
func Survivors(results []domain.PingResult, threshold time.Duration) []domain.PingResult {
	var kept []domain.PingResult
	for _, r := range results {
		if r.Ping < threshold {
			kept = append(kept, r)
		}
	}
	slices.SortStableFunc(kept, func(a, b domain.PingResult) int {
		switch {
		case a.Ping < b.Ping:
			return -1
		case a.Ping > b.Ping:
			return 1
		}
		return 0
	})
	return kept
}

// ProbeAll runs the full probe against every source. Sources whose playlist
// cannot be fetched are left out; the rest are returned in input order.
func (p *Prober) ProbeAll(ctx context.Context, sources []domain.CandidateSource, sequential bool) []domain.ProbeResult {
	slots := make([]*domain.ProbeResult, len(sources))

	if sequential {
		p.probeSequential(ctx, sources, slots)
	} else {
		p.probeBatches(ctx, sources, slots)
	}

	results := make([]domain.ProbeResult, 0, len(sources))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// probeBatches splits the sources in two halves and probes each half concurrently.
func (p *Prober) probeBatches(ctx context.Context, sources []domain.CandidateSource, slots []*domain.ProbeResult) {
	size := (len(sources) + 1) / 2
	if size == 0 {
		return
	}

	for start := 0; start < len(sources); start += size {
		if ctx.Err() != nil {
			return
		}
		end := min(start+size, len(sources))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				slots[i] = p.probeOne(gctx, sources[i])
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (p *Prober) probeSequential(ctx context.Context, sources []domain.CandidateSource, slots []*domain.ProbeResult) {
	for i, src := range sources {
		if i > 0 && p.cfg.SequentialDelay > 0 {
			timer := time.NewTimer(p.cfg.SequentialDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
		slots[i] = p.probeOne(ctx, src)
	}
}

func (p *Prober) probeOne(ctx context.Context, src domain.CandidateSource) *domain.ProbeResult {
	if err := p.takeSlot(ctx); err != nil {
		return nil
	}

	result, err := p.Probe(ctx, src)
	if err != nil {
		p.logger.Debug().Err(err).Str("source", src.ID).Msg("probe failed")
		return nil
	}
	return result
}

// takeSlot waits for the rate limiter unless ctx ends first. The limiter has no
// context support, so an abandoned wait finishes in the background.
func (p *Prober) takeSlot(ctx context.Context) error {
	taken := make(chan struct{})
	go func() {
		p.limiter.Take()
		close(taken)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-taken:
		return ctx.Err()
	}
}

// Probe fetches the source's playlist and measures what can be measured. Only
// a failed playlist fetch is an error; a segment that cannot be downloaded or
// decoded leaves the matching fields unknown.
func (p *Prober) Probe(ctx context.Context, src domain.CandidateSource) (*domain.ProbeResult, error) {
	target := src.ProbeURL()
	if target == "" {
		return nil, &domain.ProbeError{
			Phase:    domain.PhaseProbe,
			SourceID: src.ID,
			Code:     domain.ErrCodeInvalid,
			Err:      errors.New("no url"),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	body, err := FetchText(ctx, p.cfg.Client, target)
	elapsed := time.Since(start)
	if err != nil {
		return nil, newProbeError(domain.PhaseProbe, src, target, err)
	}

	result := &domain.ProbeResult{
		SourceID:   src.ID,
		URL:        target,
		PingMillis: float64(elapsed) / float64(time.Millisecond),
		Quality:    domain.QualityUnknown,
		Order:      src.Order,
	}

	log := p.logger.With().Str("source", src.ID).Logger()

	segmentURL, err := p.inspect(ctx, target, body, result)
	if err != nil {
		log.Debug().Err(err).Msg("playlist inspection incomplete")
	}
	if segmentURL == "" {
		return result, nil
	}

	if tp, err := p.measure(ctx, segmentURL); err != nil {
		log.Debug().Err(err).Str("segment", segmentURL).Msg("throughput unavailable")
	} else {
		result.ThroughputKBps = tp.KBps
		result.JitterKBps = tp.JitterKBps
	}

	if result.Quality == domain.QualityUnknown && p.cfg.Decoder != nil {
		if width, err := p.cfg.Decoder.Width(ctx, segmentURL); err != nil {
			log.Debug().Err(err).Msg("decode probe failed")
		} else {
			result.Width = width
			result.Quality = quality.FromWidth(width)
		}
	}

	return result, nil
}

// inspect reads tier information from the playlist and returns the first media
// segment to measure. Multivariant playlists are followed into their highest
// bandwidth variant.
func (p *Prober) inspect(ctx context.Context, target, body string, result *domain.ProbeResult) (string, error) {
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(body), false)
	if err != nil {
		return "", fmt.Errorf("decode playlist: %w", err)
	}

	mediaURL := target
	if listType == m3u8.MASTER {
		master := pl.(*m3u8.MasterPlaylist)

		width, variant := bestVariant(master)
		if width > 0 {
			result.Width = width
			result.Quality = quality.FromWidth(width)
		}
		if variant == nil {
			return "", errors.New("no variants")
		}

		mediaURL = resolveURL(target, variant.URI)
		body, err = FetchText(ctx, p.cfg.Client, mediaURL)
		if err != nil {
			return "", fmt.Errorf("fetch variant: %w", err)
		}
		pl, listType, err = m3u8.DecodeFrom(strings.NewReader(body), false)
		if err != nil {
			return "", fmt.Errorf("decode variant: %w", err)
		}
		if listType != m3u8.MEDIA {
			return "", errors.New("variant is not a media playlist")
		}
	}

	media, ok := pl.(*m3u8.MediaPlaylist)
	if !ok {
		return "", errors.New("unexpected playlist type")
	}

	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		if seg.URI != "" {
			return resolveURL(mediaURL, seg.URI), nil
		}
	}
	return "", errors.New("no segments")
}

// bestVariant returns the widest advertised resolution and the variant with
// the highest bandwidth.
func bestVariant(master *m3u8.MasterPlaylist) (int, *m3u8.Variant) {
	var (
		width int
		best  *m3u8.Variant
	)
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		if w := quality.ParseWidth(v.Resolution); w > width {
			width = w
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return width, best
}

// measure downloads the head of a segment with a ranged request.
func (p *Prober) measure(ctx context.Context, segmentURL string) (throughput, error) {
	req, err := newRequest(ctx, http.MethodGet, segmentURL)
	if err != nil {
		return throughput{}, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.cfg.MaxProbeBytes-1))

	requested := time.Now()
	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return throughput{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return throughput{}, &statusError{code: resp.StatusCode}
	}

	return sampleThroughput(io.LimitReader(resp.Body, p.cfg.MaxProbeBytes), p.cfg.SampleWindow, requested)
}
