package adfilter

import (
	"strings"

	"github.com/eleven-am/hlsselect/internal/playlist"
	"github.com/rs/zerolog"
)

// Stage is one text-to-text ad filtering pass. Stages must not fail: anything
// they cannot make sense of is returned unchanged.
type Stage interface {
	Name() string
	Apply(content string) string
}

// Pipeline runs its stages in order, feeding each the output of the previous one.
type Pipeline struct {
	stages []Stage
	logger zerolog.Logger
}

func NewPipeline(logger zerolog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: stages,
		logger: logger.With().Str("component", "adfilter").Logger(),
	}
}

// Default builds the continuity stage followed by the statistical stage.
func Default(logger zerolog.Logger, p Params) *Pipeline {
	return NewPipeline(logger, NewContinuity(p), NewStatistical(p))
}

func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Apply filters a media playlist. Empty input and multivariant playlists are
// returned as-is.
func (p *Pipeline) Apply(content string) string {
	if strings.TrimSpace(content) == "" || playlist.IsMaster(content) {
		return content
	}

	out := content
	for _, stage := range p.stages {
		out = p.run(stage, out)
	}
	return out
}

func (p *Pipeline) run(stage Stage, content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("stage", stage.Name()).
				Interface("panic", r).
				Msg("stage failed, passing playlist through")
			result = content
		}
	}()

	result = stage.Apply(content)

	if before, after := countSegments(content), countSegments(result); before != after {
		p.logger.Debug().
			Str("stage", stage.Name()).
			Int("before", before).
			Int("after", after).
			Msg("removed segments")
	}
	return result
}

func countSegments(content string) int {
	return strings.Count(content, playlist.TagExtInf+":")
}
