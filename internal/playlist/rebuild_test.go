package playlist

import (
	"strings"
	"testing"

	"github.com/eleven-am/hlsselect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keepIndices(segments []domain.Segment, indices ...int) []domain.Segment {
	var kept []domain.Segment
	for _, i := range indices {
		kept = append(kept, segments[i])
	}
	return kept
}

func TestRebuild_KeepsEverythingWhenNothingDropped(t *testing.T) {
	segments, headers := Parse(vodPlaylist)

	out := Rebuild(vodPlaylist, headers, segments)

	assert.Equal(t, vodPlaylist, out)
}

func TestRebuild_DropsSegmentSpanAndUpdatesHeaders(t *testing.T) {
	segments, headers := Parse(vodPlaylist)

	out := Rebuild(vodPlaylist, headers, keepIndices(segments, 1, 3))

	assert.NotContains(t, out, "seg0.ts")
	assert.NotContains(t, out, "ad0.ts")
	assert.NotContains(t, out, "#EXT-X-DISCONTINUITY")
	assert.Contains(t, out, "#EXT-X-MAP:URI=\"init.mp4\"")
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:10\n")
	assert.Contains(t, out, "#EXT-X-MEDIA-SEQUENCE:1\n")
	assert.True(t, strings.HasSuffix(out, "#EXT-X-ENDLIST\n"))

	reparsed, _ := Parse(out)
	require.Len(t, reparsed, 2)
	assert.Equal(t, "seg1.ts", reparsed[0].URI)
	assert.Equal(t, "seg2.ts", reparsed[1].URI)
}

func TestRebuild_PreservesOrder(t *testing.T) {
	segments, headers := Parse(vodPlaylist)

	out := Rebuild(vodPlaylist, headers, keepIndices(segments, 0, 1, 3))

	assert.Less(t, strings.Index(out, "seg0.ts"), strings.Index(out, "seg1.ts"))
	assert.Less(t, strings.Index(out, "seg1.ts"), strings.Index(out, "seg2.ts"))
	assert.Less(t, strings.Index(out, "seg2.ts"), strings.Index(out, "#EXT-X-ENDLIST"))
}

func TestRebuild_InsertsMissingTags(t *testing.T) {
	content := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXTINF:4.2,",
		"a.ts",
		"#EXTINF:6.5,",
		"b.ts",
	}, "\n")
	segments, headers := Parse(content)

	out := Rebuild(content, headers, keepIndices(segments, 1))

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "#EXT-X-VERSION:3", lines[1])
	assert.Equal(t, "#EXT-X-TARGETDURATION:7", lines[2])
	assert.Equal(t, "#EXT-X-MEDIA-SEQUENCE:1", lines[3])
	assert.Equal(t, "b.ts", lines[5])
}

func TestRebuild_CriticalTagsSurviveOutsideHeaderWindow(t *testing.T) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for i := 0; i < 6; i++ {
		b.WriteString("#EXTINF:5,\n")
		b.WriteString("s.ts\n")
	}
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n#EXT-X-ENDLIST")
	content := b.String()

	_, headers := Parse(content)
	out := Rebuild(content, headers, nil)

	assert.Contains(t, out, "#EXT-X-PLAYLIST-TYPE:VOD")
	assert.Contains(t, out, "#EXT-X-ENDLIST")
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:1")
	assert.NotContains(t, out, "s.ts")

	segments, _ := Parse(out)
	assert.Empty(t, segments)
}

func TestRebuild_KeepsCRLFOnRewrittenTags(t *testing.T) {
	content := "#EXTM3U\r\n#EXT-X-TARGETDURATION:20\r\n#EXTINF:4,\r\na.ts\r\n#EXTINF:5,\r\nb.ts\r\n"
	segments, headers := Parse(content)

	out := Rebuild(content, headers, keepIndices(segments, 0))

	assert.Contains(t, out, "#EXT-X-TARGETDURATION:4\r\n")
}

func TestRebuild_DropsProgramDateTimeWithItsSegment(t *testing.T) {
	content := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-PROGRAM-DATE-TIME:2024-01-01T00:00:00Z",
		"#EXTINF:2.0,",
		"ad.ts",
		"#EXT-X-PROGRAM-DATE-TIME:2024-01-01T00:00:02Z",
		"#EXTINF:10.0,",
		"c1.ts",
		"#EXT-X-ENDLIST",
		"",
	}, "\n")
	segments, headers := Parse(content)
	require.Len(t, segments, 2)
	assert.Equal(t, 3, segments[0].StartLine)

	out := Rebuild(content, headers, keepIndices(segments, 1))

	assert.Equal(t, 1, strings.Count(out, "#EXT-X-PROGRAM-DATE-TIME"))
	assert.Contains(t, out, "#EXT-X-PROGRAM-DATE-TIME:2024-01-01T00:00:02Z\n#EXTINF:10.0,\nc1.ts")
	assert.NotContains(t, out, "ad.ts")
}

func TestRebuild_CueTagsFollowTheirSegment(t *testing.T) {
	content := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXTINF:10.0,",
		"s0.ts",
		"#EXTINF:10.0,",
		"s1.ts",
		"#EXTINF:10.0,",
		"s2.ts",
		"#EXT-X-CUE-OUT:10",
		"#EXTINF:10.0,",
		"ad.ts",
		"#EXT-X-CUE-IN",
		"#EXTINF:10.0,",
		"s3.ts",
		"#EXT-X-ENDLIST",
	}, "\n")
	segments, headers := Parse(content)
	require.Len(t, segments, 5)
	assert.Equal(t, 10, segments[3].StartLine)
	assert.Equal(t, 13, segments[4].StartLine)

	out := Rebuild(content, headers, keepIndices(segments, 0, 1, 2, 4))

	assert.NotContains(t, out, "#EXT-X-CUE-OUT")
	assert.NotContains(t, out, "ad.ts")
	assert.Contains(t, out, "#EXT-X-CUE-IN\n#EXTINF:10.0,\ns3.ts")
}
