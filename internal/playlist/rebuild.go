package playlist

import (
	"fmt"
	"math"
	"strings"

	"github.com/eleven-am/hlsselect/internal/domain"
)

// Lines starting with these tags survive a rebuild wherever they appear.
var criticalTags = []string{
	TagExtM3U,
	TagVersion,
	TagTargetDuration,
	TagMediaSequence,
	TagPlaylistType,
	TagEndList,
}

// Rebuild filters the original text down to the main headers, the spans of the
// kept segments and the critical structural tags, in their original order, then
// refreshes TARGETDURATION and MEDIA-SEQUENCE for the kept segments.
func Rebuild(content string, headers domain.Headers, kept []domain.Segment) string {
	lines := strings.Split(content, "\n")
	keep := make([]bool, len(lines))

	for _, h := range headers.Main {
		if h.Line < len(lines) {
			keep[h.Line] = true
		}
	}

	for _, seg := range kept {
		for i := seg.StartLine; i <= seg.EndLine && i < len(lines); i++ {
			keep[i] = true
		}
	}

	for i, line := range lines {
		if IsCritical(line) {
			keep[i] = true
		}
	}

	// Preserve a trailing newline.
	if last := len(lines) - 1; last > 0 && lines[last] == "" {
		keep[last] = true
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if keep[i] {
			out = append(out, line)
		}
	}

	out = updateHeaders(out, kept)

	return strings.Join(out, "\n")
}

func IsCritical(line string) bool {
	line = strings.TrimSpace(line)
	for _, tag := range criticalTags {
		if strings.HasPrefix(line, tag) {
			return true
		}
	}
	return false
}

func TargetDuration(segments []domain.Segment) int {
	var maxDuration float64
	for _, seg := range segments {
		if seg.Duration > maxDuration {
			maxDuration = seg.Duration
		}
	}
	return max(1, int(math.Ceil(maxDuration)))
}

func updateHeaders(lines []string, kept []domain.Segment) []string {
	target := fmt.Sprintf("%s:%d", TagTargetDuration, TargetDuration(kept))
	if i := indexOfTag(lines, TagTargetDuration); i != -1 {
		if len(kept) > 0 {
			lines[i] = withLineEnding(lines[i], target)
		}
	} else {
		lines = insertAfter(lines, headerAnchor(lines), target)
	}

	if len(kept) == 0 || kept[0].Index == 0 {
		return lines
	}

	sequence := fmt.Sprintf("%s:%d", TagMediaSequence, kept[0].Index)
	if i := indexOfTag(lines, TagMediaSequence); i != -1 {
		lines[i] = withLineEnding(lines[i], sequence)
		return lines
	}
	return insertAfter(lines, indexOfTag(lines, TagTargetDuration), sequence)
}

// headerAnchor returns the line TARGETDURATION is inserted after: VERSION,
// then EXTM3U, else -1 for the top of the file.
func headerAnchor(lines []string) int {
	if i := indexOfTag(lines, TagVersion); i != -1 {
		return i
	}
	return indexOfTag(lines, TagExtM3U)
}

func indexOfTag(lines []string, tag string) int {
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), tag) {
			return i
		}
	}
	return -1
}

func insertAfter(lines []string, idx int, line string) []string {
	pos := idx + 1
	if pos < len(lines) && pos > 0 {
		line = withLineEnding(lines[pos-1], line)
	}
	lines = append(lines, "")
	copy(lines[pos+1:], lines[pos:])
	lines[pos] = line
	return lines
}

func withLineEnding(original, replacement string) string {
	if strings.HasSuffix(original, "\r") {
		return replacement + "\r"
	}
	return replacement
}
