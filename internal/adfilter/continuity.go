package adfilter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/eleven-am/hlsselect/internal/playlist"
)

type layoutKind int

const (
	// Media names carry a counter that grows by one per segment.
	layoutSequential layoutKind = iota
	// Media names are identical or carry no counter; ads show up as a break in
	// an otherwise repeated EXTINF line.
	layoutRepeating
	// No usable naming pattern; discontinuity blocks are dropped wholesale.
	layoutBruteForce
)

var (
	tsNumberPattern  = regexp.MustCompile(`(\d+)\.ts`)
	mediaPathPattern = regexp.MustCompile(`^(.*\.(?:ts|jpg|png|jpeg))(?:$|[?#])`)
	digitPattern     = regexp.MustCompile(`\d`)
)

const (
	tagByteRange       = "#EXT-X-BYTERANGE"
	tagProgramDateTime = "#EXT-X-PROGRAM-DATE-TIME"
	tagPrefix          = "#EXT-X-"
)

type layout struct {
	kind        layoutKind
	firstExtinf string
	nameLen     int
	firstIndex  int
}

// detectLayout scans the media lines once to decide how segment names are built.
func detectLayout(lines []string) layout {
	l := layout{kind: layoutBruteForce, firstIndex: -1}

	extinfSeen := 0
	prev := -1
	for _, line := range lines {
		if strings.HasPrefix(line, playlist.TagExtInf) {
			switch extinfSeen {
			case 0:
				l.firstExtinf = line
			case 1:
				if line != l.firstExtinf {
					l.firstExtinf = ""
				}
			}
			extinfSeen++
		}

		pos := strings.Index(line, ".ts")
		if pos <= 0 {
			continue
		}
		if l.nameLen == 0 {
			l.nameLen = pos
		}

		n, ok := tsNumber(line)
		if !ok {
			l.kind = layoutRepeating
			continue
		}
		if l.firstIndex == -1 {
			l.firstIndex = n
			prev = n - 1
		}
		if n != prev+1 {
			l.kind = layoutBruteForce
			break
		}
		l.kind = layoutSequential
		prev = n
	}

	return l
}

func tsNumber(line string) (int, bool) {
	m := tsNumberPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func mediaPath(line string) (string, bool) {
	if strings.HasPrefix(line, "#") {
		return "", false
	}
	m := mediaPathPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// distanceTracker learns how far consecutive media paths usually are from each
// other and flags a path that moves further than anything seen so far.
type distanceTracker struct {
	last string
	max  int

	limit int
	// rollover forgives paths whose only change is a counter gaining a digit.
	rollover bool
}

func (d *distanceTracker) outlier(path string) bool {
	if d.last == "" {
		d.last = path
		return false
	}

	dist := levenshtein.ComputeDistance(path, d.last)
	if d.max > 0 && d.max < d.limit && dist > d.max {
		if !d.rollover || !counterRollover(d.last, path) {
			return true
		}
		d.last = path
		return false
	}

	d.max = max(d.max, dist)
	d.last = path
	return false
}

// counterRollover reports whether two paths differ only in their digits and
// the length added by a longer counter (seg9 to seg10).
func counterRollover(prev, next string) bool {
	a := digitPattern.ReplaceAllLiteralString(prev, "0")
	b := digitPattern.ReplaceAllLiteralString(next, "0")
	delta := len(a) - len(b)
	if delta < 0 {
		delta = -delta
	}
	return levenshtein.ComputeDistance(a, b) <= delta
}

// Continuity drops segments whose names break the pattern of the surrounding
// content, together with the discontinuity markers wrapping them.
type Continuity struct {
	params Params
}

func NewContinuity(p Params) *Continuity {
	return &Continuity{params: p}
}

func (c *Continuity) Name() string { return "continuity" }

func (c *Continuity) Apply(content string) string {
	if !strings.Contains(content, playlist.TagExtInf) {
		return content
	}

	lines := strings.Split(content, "\n")
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}

	out := c.filter(lines, trimmed, detectLayout(trimmed))
	result := strings.Join(out, "\n")

	// Never hand back a playlist with nothing left to play.
	if segments, _ := playlist.Parse(result); len(segments) == 0 {
		return content
	}
	return result
}

type continuityState struct {
	layout      layout
	nameLen     int
	prev        int
	repeats     int
	broken      bool
	markersOnly bool
}

func (c *Continuity) filter(lines, t []string, l layout) []string {
	out := make([]string, 0, len(lines))

	st := continuityState{
		layout:  l,
		nameLen: l.nameLen,
		prev:    l.firstIndex - 1,
	}
	if l.kind == layoutBruteForce {
		st.markersOnly = wrappedShare(t) > c.params.WrappedShareLimit
	}

	distances := distanceTracker{
		limit:    c.params.MaxLearnedDistance,
		rollover: c.params.RolloverTolerance,
	}

	for i := 0; i < len(lines); i++ {
		line := t[i]

		if path, ok := mediaPath(line); ok && distances.outlier(path) {
			end := nextBoundary(t, i)
			out = popSegmentTags(out)
			out = appendCritical(out, lines[i:end])
			i = end - 1
			continue
		}

		var skip int
		var drop bool
		switch l.kind {
		case layoutSequential:
			skip, drop = c.sequential(&st, t, i)
		case layoutRepeating:
			skip, drop = c.repeating(&st, t, i)
		default:
			skip, drop = c.bruteForce(&st, t, i)
		}

		if drop {
			out = appendCritical(out, lines[i+1:min(len(lines), i+skip+1)])
			i += skip
			continue
		}

		out = append(out, lines[i])
	}

	return out
}

// sequential returns how many lines after i to skip and whether line i itself
// is dropped.
func (c *Continuity) sequential(st *continuityState, t []string, i int) (int, bool) {
	line := t[i]

	if playlist.IsDiscontinuity(line) && i+2 < len(t) && t[i+1] != "" && t[i+2] != "" {
		if i > 0 && strings.HasPrefix(t[i-1], tagPrefix) {
			return 0, false
		}
		if c.breaksSequence(st, t[i+2], false) {
			return blockEnd(t, i, 2), true
		}
		return 0, false
	}

	if strings.HasPrefix(line, playlist.TagExtInf) && i+1 < len(t) && t[i+1] != "" {
		if c.breaksSequence(st, t[i+1], true) {
			return blockEnd(t, i, 1), true
		}
	}

	return 0, false
}

// breaksSequence checks a media line against the running name length and
// counter. The counter only advances on segments that are kept.
func (c *Continuity) breaksSequence(st *continuityState, uri string, advance bool) bool {
	pos := strings.Index(uri, ".ts")
	if pos <= 0 {
		return false
	}

	diff := pos - st.nameLen
	if diff < 0 {
		diff = -diff
	}
	if diff > c.params.NameLengthTolerance {
		return true
	}

	n, ok := tsNumber(uri)
	if ok && n != st.prev+1 {
		return true
	}

	st.nameLen = pos
	if ok && advance {
		st.prev = n
	}
	return false
}

func (c *Continuity) repeating(st *continuityState, t []string, i int) (int, bool) {
	line := t[i]
	bench := c.params.RepeatBenchmark

	if strings.HasPrefix(line, playlist.TagExtInf) {
		if line == st.layout.firstExtinf && st.repeats <= bench && !st.broken {
			st.repeats++
		} else {
			st.broken = true
		}
		if st.repeats > bench {
			st.broken = true
		}
	}

	if !playlist.IsDiscontinuity(line) {
		return 0, false
	}
	if i > 0 && strings.HasPrefix(t[i-1], playlist.TagPlaylistType) {
		return 0, false
	}
	if i+2 < len(t) && strings.HasPrefix(t[i+1], playlist.TagExtInf) && strings.Index(t[i+2], ".ts") > 0 {
		ad := st.broken && t[i+1] != st.layout.firstExtinf && st.repeats > bench
		if ad && i+3 < len(t) && playlist.IsDiscontinuity(t[i+3]) {
			return 3, true
		}
		return 0, true
	}
	return 0, false
}

func (c *Continuity) bruteForce(st *continuityState, t []string, i int) (int, bool) {
	if !playlist.IsDiscontinuity(t[i]) {
		return 0, false
	}
	if i > 0 && strings.HasPrefix(t[i-1], playlist.TagPlaylistType) {
		return 0, false
	}
	if !st.markersOnly {
		if end := closingDiscontinuity(t, i); end != -1 {
			return end - i, true
		}
	}
	return 0, true
}

// blockEnd returns the offset of the last line of a dropped block starting at
// i, swallowing a closing discontinuity directly after it.
func blockEnd(t []string, i, span int) int {
	if i+span+1 < len(t) && playlist.IsDiscontinuity(t[i+span+1]) {
		return span + 1
	}
	return span
}

func closingDiscontinuity(t []string, i int) int {
	for j := i + 1; j < len(t); j++ {
		if playlist.IsDiscontinuity(t[j]) {
			return j
		}
		if strings.HasPrefix(t[j], playlist.TagEndList) {
			return -1
		}
	}
	return -1
}

// wrappedShare is the fraction of segments that sit between a pair of
// discontinuity markers.
func wrappedShare(t []string) float64 {
	var total, wrapped int
	open := false
	for i, line := range t {
		switch {
		case strings.HasPrefix(line, playlist.TagExtInf):
			total++
			if open {
				wrapped++
			}
		case playlist.IsDiscontinuity(line):
			if i > 0 && strings.HasPrefix(t[i-1], playlist.TagPlaylistType) {
				continue
			}
			if open {
				open = false
			} else if closingDiscontinuity(t, i) != -1 {
				open = true
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(wrapped) / float64(total)
}

func nextBoundary(t []string, i int) int {
	for j := i; j < len(t); j++ {
		if playlist.IsDiscontinuity(t[j]) || strings.HasPrefix(t[j], playlist.TagEndList) {
			return j
		}
	}
	return len(t)
}

// popSegmentTags removes the tags already emitted for a segment that is now being skipped.
func popSegmentTags(out []string) []string {
	for len(out) > 0 {
		last := strings.TrimSpace(out[len(out)-1])
		if strings.HasPrefix(last, playlist.TagExtInf) ||
			strings.HasPrefix(last, tagByteRange) ||
			strings.HasPrefix(last, tagProgramDateTime) ||
			playlist.IsDiscontinuity(last) {
			out = out[:len(out)-1]
			continue
		}
		break
	}
	return out
}

func appendCritical(out, skipped []string) []string {
	for _, line := range skipped {
		if playlist.IsCritical(line) {
			out = append(out, line)
		}
	}
	return out
}
