package playlist

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eleven-am/hlsselect/internal/domain"
)

// Real playlists front-load their global tags, so only the first lines are
// scanned for main headers.
const mainHeaderLines = 10

const (
	TagExtM3U         = "#EXTM3U"
	TagExtInf         = "#EXTINF"
	TagVersion        = "#EXT-X-VERSION"
	TagTargetDuration = "#EXT-X-TARGETDURATION"
	TagMediaSequence  = "#EXT-X-MEDIA-SEQUENCE"
	TagPlaylistType   = "#EXT-X-PLAYLIST-TYPE"
	TagEndList        = "#EXT-X-ENDLIST"
	TagDiscontinuity  = "#EXT-X-DISCONTINUITY"
	TagMap            = "#EXT-X-MAP"
	TagStreamInf      = "#EXT-X-STREAM-INF"
)

const tagKey = "#EXT-X-KEY"

// Tags that describe the next media segment rather than the playlist.
var segmentTags = []string{
	TagExtInf,
	TagMap,
	"#EXT-X-BYTERANGE",
	"#EXT-X-PROGRAM-DATE-TIME",
	tagKey,
	"#EXT-X-GAP",
	"#EXT-X-BITRATE",
}

var extinfPattern = regexp.MustCompile(`^#EXTINF:\s*([\d.]+)`)

// Parse splits raw playlist text into segments and headers. Malformed
// segments are skipped; an empty or segment-less input yields no segments.
func Parse(content string) ([]domain.Segment, domain.Headers) {
	lines := strings.Split(content, "\n")

	var (
		segments      []domain.Segment
		headers       domain.Headers
		discontinuity bool
		hasMap        bool
		spanStart     = -1
	)

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if i < mainHeaderLines && isMainHeader(line) {
			headers.Main = append(headers.Main, domain.HeaderLine{Line: i, Text: line})
			continue
		}

		switch {
		case IsDiscontinuity(line):
			discontinuity = true
			if spanStart == -1 {
				spanStart = i
			}

		case strings.HasPrefix(line, TagExtInf):
			duration, ok := parseDuration(line)
			if !ok || i+1 >= len(lines) || !isURI(lines[i+1]) {
				spanStart = -1
				continue
			}

			start := spanStart
			if start == -1 {
				start = i
			}

			segments = append(segments, domain.Segment{
				Index:            len(segments),
				Duration:         duration,
				URI:              strings.TrimSpace(lines[i+1]),
				HasDiscontinuity: discontinuity,
				HasMap:           hasMap,
				StartLine:        start,
				EndLine:          i + 1,
				Raw:              append([]string(nil), lines[start:i+2]...),
			})

			discontinuity = false
			hasMap = false
			spanStart = -1
			i++

		case isSegmentTag(line):
			if strings.HasPrefix(line, TagMap+":") {
				hasMap = true
			}
			if spanStart == -1 {
				spanStart = i
			}

		case strings.HasPrefix(line, "#"):
			headers.Other = append(headers.Other, domain.HeaderLine{Line: i, Text: line})
			// Cue and vendor tags travel with the segment that follows them.
			if spanStart == -1 && !IsCritical(line) {
				spanStart = i
			}
		}
	}

	return segments, headers
}

// IsDiscontinuity matches the bare discontinuity tag, not DISCONTINUITY-SEQUENCE.
func IsDiscontinuity(line string) bool {
	return strings.TrimSpace(line) == TagDiscontinuity
}

// IsMaster reports whether the text is a multivariant playlist.
func IsMaster(content string) bool {
	return strings.Contains(content, TagStreamInf)
}

// Segment structure tags are never main headers, even near the top. A key
// near the top covers every segment after it, so it stays a header.
func isMainHeader(line string) bool {
	if !strings.HasPrefix(line, "#EXT") || IsDiscontinuity(line) {
		return false
	}
	return strings.HasPrefix(line, tagKey) || !isSegmentTag(line)
}

func isSegmentTag(line string) bool {
	for _, tag := range segmentTags {
		if strings.HasPrefix(line, tag) {
			return true
		}
	}
	return false
}

func isURI(raw string) bool {
	line := strings.TrimSpace(raw)
	return line != "" && !strings.HasPrefix(line, "#")
}

// parseDuration accepts the longest numeric prefix, so "10.0.1" reads as 10.0.
func parseDuration(line string) (float64, bool) {
	m := extinfPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	s := m[1]
	for len(s) > 0 {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
		s = s[:len(s)-1]
	}
	return 0, false
}
