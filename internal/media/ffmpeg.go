package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the frame size is not positive and even.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive and even")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("invalid frame rate: must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor and Prober using the ffmpeg CLI.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// EncodeRawVideo encodes packed RGB24 frames read from frames into an H.264
// yuv420p video without audio.
func (p *FFmpegProcessor) EncodeRawVideo(ctx context.Context, opts EncodeOptions, frames io.Reader, output string) error {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width%2 != 0 || opts.Height%2 != 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFPS, opts.FPS)
	}

	fps := strconv.Itoa(opts.FPS)
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", fps,
		"-i", "pipe:0",
		"-an",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-r", fps,
		output,
	}

	return p.run(ctx, args, frames)
}

// Mux combines videoPath and audioPath into output. The video stream is
// copied, audio is encoded to AAC and the result is cut to the shorter stream.
func (p *FFmpegProcessor) Mux(ctx context.Context, videoPath, audioPath, output string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		output,
	}

	if err := p.runFFmpeg(ctx, args); err != nil {
		return &MuxError{Err: err}
	}
	return nil
}

// probeOutput is the subset of ffprobe's JSON output we read.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the container duration and which stream types it carries.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if d := strings.TrimSpace(out.Format.Duration); d != "" {
		duration, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration: %w", err)
		}
		result.Duration = duration
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			result.HasVideo = true
		case "audio":
			result.HasAudio = true
		}
	}

	return result, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	return p.run(ctx, args, nil)
}

func (p *FFmpegProcessor) run(ctx context.Context, args []string, stdin io.Reader) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	cmd.Stdin = stdin

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// MuxError reports a failed or timed-out audio/video mux.
type MuxError struct {
	Err error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("mux audio and video: %v", e.Err)
}

func (e *MuxError) Unwrap() error {
	return e.Err
}

var (
	_ Processor = (*FFmpegProcessor)(nil)
	_ Prober    = (*FFmpegProcessor)(nil)
)
