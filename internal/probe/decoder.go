package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// Decoder reads the coded picture size of a media segment. It is used when a
// playlist does not advertise a resolution.
type Decoder interface {
	Width(ctx context.Context, url string) (int, error)
}

var errNoVideoStream = errors.New("no video stream")

// FFProbe decodes segment headers with the ffprobe binary.
type FFProbe struct {
	Binary string
}

func NewFFProbe() *FFProbe {
	return &FFProbe{Binary: "ffprobe"}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

func (f *FFProbe) Width(ctx context.Context, url string) (int, error) {
	cmd := exec.CommandContext(ctx, f.Binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,codec_type,width,height",
		"-of", "json",
		url,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("run ffprobe: %w", err)
	}

	return parseWidth(output)
}

func parseWidth(output []byte) (int, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(output, &ff); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}

	for _, s := range ff.Streams {
		if s.CodecType == "video" && s.Width > 0 {
			return s.Width, nil
		}
	}
	return 0, errNoVideoStream
}
