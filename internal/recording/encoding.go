package recording

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Encoding pairs a video codec with its container. Recordings always find an
// encoding: the ladder runs from the preferred codec down to the one every
// ffmpeg build carries.
type Encoding struct {
	Name      string
	Codec     string
	Container string
}

// ContentType returns the MIME type for clips in this encoding.
func (e Encoding) ContentType() string {
	return "video/" + e.Container
}

var encodingLadder = []Encoding{
	{Name: "vp9", Codec: "libvpx-vp9", Container: "webm"},
	{Name: "vp8", Codec: "libvpx", Container: "webm"},
	{Name: "h264", Codec: "libx264", Container: "mp4"},
}

// SelectEncoding walks the ladder and returns the first encoding whose codec
// the supplied predicate accepts. When nothing matches, the last rung is
// returned so capture can still proceed.
func SelectEncoding(supported func(codec string) bool) Encoding {
	if supported != nil {
		for _, enc := range encodingLadder {
			if supported(enc.Codec) {
				return enc
			}
		}
	}
	return encodingLadder[len(encodingLadder)-1]
}

// EncoderSupport probes the ffmpeg binary once for its compiled-in encoders
// and returns a predicate over codec names.
func EncoderSupport(ctx context.Context, binary string) func(codec string) bool {
	var once sync.Once
	var listing string

	return func(codec string) bool {
		once.Do(func() {
			cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders")
			out := &bytes.Buffer{}
			cmd.Stdout = out
			if err := cmd.Run(); err != nil {
				return
			}
			listing = out.String()
		})
		return strings.Contains(listing, codec)
	}
}
