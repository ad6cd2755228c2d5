// Package media wraps the ffmpeg tooling used to encode and mux lesson videos,
// and renders placeholder slide images.
package media

import (
	"context"
	"io"
)

// EncodeOptions describes a raw RGB24 frame stream.
type EncodeOptions struct {
	Width  int
	Height int
	FPS    int
}

// FrameSize returns the byte size of one packed RGB24 frame.
func (o EncodeOptions) FrameSize() int {
	return o.Width * o.Height * 3
}

// Processor defines the video operations used by the assembler.
type Processor interface {
	// EncodeRawVideo reads packed RGB24 frames from frames until EOF and
	// encodes them as an H.264 video at output.
	EncodeRawVideo(ctx context.Context, opts EncodeOptions, frames io.Reader, output string) error

	// Mux combines a video file and an audio file into output, trimming to
	// the shorter stream. Failures are reported as *MuxError.
	Mux(ctx context.Context, videoPath, audioPath, output string) error
}

// ProbeResult describes a media container.
type ProbeResult struct {
	Duration float64
	HasVideo bool
	HasAudio bool
}

// Prober inspects media files.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}
