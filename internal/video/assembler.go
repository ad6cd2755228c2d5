package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/sync/errgroup"

	"github.com/maauso/lessonreel-api/internal/media"
)

// Defaults for the output video.
const (
	DefaultWidth      = 1920
	DefaultHeight     = 1080
	DefaultMuxTimeout = 180 * time.Second
)

var errEncoderStopped = errors.New("encoder stopped reading frames")

// Input is everything needed to build one video.
type Input struct {
	// Images holds one encoded still per slide, in slide order.
	Images [][]byte
	// Durations holds one on-screen time in seconds per slide.
	Durations []float64
	// AudioPath is the composite narration track; empty means no audio.
	AudioPath string
	// Output is where the finished video is written.
	Output string
}

// Result describes a finished video.
type Result struct {
	Path     string
	Frames   int
	Duration float64
	HasAudio bool
}

// Assembler renders slide stills into frames, encodes them and muxes in the
// narration track.
type Assembler struct {
	processor  media.Processor
	width      int
	height     int
	fps        int
	muxTimeout time.Duration
	temp       TempPather
	logger     *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithFrameSize sets the output resolution.
func WithFrameSize(width, height int) AssemblerOption {
	return func(a *Assembler) {
		if width > 0 && height > 0 {
			a.width, a.height = width, height
		}
	}
}

// WithFPS sets the output frame rate.
func WithFPS(fps int) AssemblerOption {
	return func(a *Assembler) {
		if fps > 0 {
			a.fps = fps
		}
	}
}

// WithMuxTimeout bounds the audio/video mux step.
func WithMuxTimeout(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.muxTimeout = d
		}
	}
}

// WithTempPaths sets where intermediate videos are written. The default is
// the system temp directory.
func WithTempPaths(t TempPather) AssemblerOption {
	return func(a *Assembler) {
		if t != nil {
			a.temp = t
		}
	}
}

// WithLogger sets the assembler's logger.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssembler creates an Assembler that encodes through processor.
func NewAssembler(processor media.Processor, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		processor:  processor,
		width:      DefaultWidth,
		height:     DefaultHeight,
		fps:        DefaultFPS,
		muxTimeout: DefaultMuxTimeout,
		temp:       dirTemp(os.TempDir()),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FPS returns the configured frame rate.
func (a *Assembler) FPS() int {
	return a.fps
}

// Assemble builds the video described by in. Unreadable images, a zero
// total duration or an encoder failure return *FatalAssemblyError and leave
// no file at in.Output. A failed or timed-out mux falls back to the silent
// video and is not an error. Intermediate files live in temp storage and
// in.Output only appears once it is complete.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Result, error) {
	if len(in.Images) == 0 {
		return nil, &FatalAssemblyError{Err: ErrNoFrames}
	}
	if len(in.Images) != len(in.Durations) {
		return nil, &FatalAssemblyError{
			Err: fmt.Errorf("%d images for %d durations", len(in.Images), len(in.Durations)),
		}
	}

	plan := Plan(in.Durations, a.fps)
	if plan.Total == 0 {
		return nil, &FatalAssemblyError{Err: ErrZeroDuration}
	}

	frames := make([][]byte, len(in.Images))
	for i, data := range in.Images {
		frame, err := a.renderFrame(data)
		if err != nil {
			return nil, &FatalAssemblyError{Slide: i + 1, Err: err}
		}
		frames[i] = frame
	}

	base := strings.TrimSuffix(filepath.Base(in.Output), filepath.Ext(in.Output))
	ext := filepath.Ext(in.Output)
	videoOnly := a.temp.TempPath(base + "_video" + ext)
	defer removeFiles(videoOnly)

	if err := a.encode(ctx, frames, plan, videoOnly); err != nil {
		return nil, &FatalAssemblyError{Err: fmt.Errorf("%w: %w", ErrEncodeFailed, err)}
	}

	result := &Result{
		Path:     in.Output,
		Frames:   plan.Total,
		Duration: float64(plan.Total) / float64(a.fps),
	}

	final := videoOnly
	if in.AudioPath != "" {
		muxed := a.temp.TempPath(base + "_muxed" + ext)
		defer removeFiles(muxed)

		if err := a.mux(ctx, videoOnly, in.AudioPath, muxed); err != nil {
			a.logger.Warn("mux failed, delivering video without audio",
				slog.String("output", in.Output),
				slog.String("error", err.Error()),
			)
		} else {
			final = muxed
			result.HasAudio = true
		}
	}

	if err := moveFile(final, in.Output); err != nil {
		return nil, &FatalAssemblyError{Err: fmt.Errorf("%w: %w", ErrSaveFailed, err)}
	}
	return result, nil
}

func (a *Assembler) mux(ctx context.Context, videoPath, audioPath, output string) error {
	muxCtx, cancel := context.WithTimeout(ctx, a.muxTimeout)
	defer cancel()

	err := a.processor.Mux(muxCtx, videoPath, audioPath, output)
	if err == nil {
		return nil
	}
	var muxErr *media.MuxError
	if !errors.As(err, &muxErr) {
		err = &media.MuxError{Err: err}
	}
	return err
}

// encode streams the frame plan as raw RGB24 into the processor.
func (a *Assembler) encode(ctx context.Context, frames [][]byte, plan FramePlan, output string) error {
	pr, pw := io.Pipe()

	var g errgroup.Group
	g.Go(func() error {
		err := writeFrames(ctx, pw, frames, plan)
		_ = pw.CloseWithError(err)
		return err
	})

	opts := media.EncodeOptions{Width: a.width, Height: a.height, FPS: a.fps}
	encErr := a.processor.EncodeRawVideo(ctx, opts, pr, output)
	_ = pr.CloseWithError(errEncoderStopped)
	writeErr := g.Wait()

	if encErr != nil {
		return encErr
	}
	if writeErr != nil {
		return fmt.Errorf("write frames: %w", writeErr)
	}
	return nil
}

func writeFrames(ctx context.Context, w io.Writer, frames [][]byte, plan FramePlan) error {
	for _, run := range plan.Runs {
		frame := frames[run.Slide-1]
		for range run.Count {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := w.Write(frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderFrame decodes an encoded still and letterboxes it into a packed
// RGB24 frame of the output size.
func (a *Assembler) renderFrame(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFrame, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, fitRect(src.Bounds(), a.width, a.height), src, src.Bounds(), draw.Over, nil)

	return toRGB24(dst), nil
}

// fitRect returns the largest rectangle with the aspect ratio of b that fits
// in w x h, centred.
func fitRect(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	if sw <= 0 || sh <= 0 {
		return image.Rect(0, 0, w, h)
	}

	fw, fh := w, sh*w/sw
	if fh > h {
		fw, fh = sw*h/sh, h
	}
	x := (w - fw) / 2
	y := (h - fh) / 2
	return image.Rect(x, y, x+fw, y+fh)
}

func toRGB24(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// moveFile puts src at dst. When a rename is not possible, src is copied to
// a hidden name next to dst and renamed, so dst is never partially written.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	partial := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".part")
	if err := copyFile(src, partial); err != nil {
		removeFiles(partial)
		return err
	}
	if err := os.Rename(partial, dst); err != nil {
		removeFiles(partial)
		return fmt.Errorf("rename video: %w", err)
	}
	removeFiles(src)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is a temp path from TempPath
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640) // #nosec G304 - dst is next to the output path
	if err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy video: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close video: %w", err)
	}
	return nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

// TempPather hands out unique paths for intermediate files.
type TempPather interface {
	TempPath(name string) string
}

// dirTemp places intermediate files in a directory.
type dirTemp string

func (d dirTemp) TempPath(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	return filepath.Join(string(d), base+"_"+uuid.NewString()[:8]+ext)
}
