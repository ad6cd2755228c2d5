// Package mediatest provides an in-memory media.Processor for tests.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"sync"
	"time"

	"github.com/maauso/lessonreel-api/internal/media"
)

// Processor records the frames it is asked to encode and writes small marker
// files instead of real video.
type Processor struct {
	// EncodeErr, when set, fails EncodeRawVideo without reading frames.
	EncodeErr error
	// MuxErr, when set, fails Mux.
	MuxErr error
	// MuxDelay makes Mux wait before succeeding, honouring ctx.
	MuxDelay time.Duration

	mu       sync.Mutex
	pixels   []color.RGBA
	opts     media.EncodeOptions
	muxCalls int
	written  []string
}

// EncodeRawVideo reads every frame and keeps its centre pixel.
func (p *Processor) EncodeRawVideo(ctx context.Context, opts media.EncodeOptions, frames io.Reader, output string) error {
	if p.EncodeErr != nil {
		return p.EncodeErr
	}

	size := opts.FrameSize()
	if size <= 0 {
		return media.ErrInvalidDimensions
	}
	centre := ((opts.Height/2)*opts.Width + opts.Width/2) * 3

	var pixels []color.RGBA
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.ReadFull(frames, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", len(pixels), err)
		}
		pixels = append(pixels, color.RGBA{R: buf[centre], G: buf[centre+1], B: buf[centre+2], A: 255})
	}

	p.mu.Lock()
	p.pixels = pixels
	p.opts = opts
	p.written = append(p.written, output)
	p.mu.Unlock()

	return os.WriteFile(output, []byte(fmt.Sprintf("video frames=%d fps=%d\n", len(pixels), opts.FPS)), 0600)
}

// Mux copies the video marker to output and appends the audio path.
func (p *Processor) Mux(ctx context.Context, videoPath, audioPath, output string) error {
	p.mu.Lock()
	p.muxCalls++
	p.written = append(p.written, output)
	p.mu.Unlock()

	if p.MuxDelay > 0 {
		select {
		case <-ctx.Done():
			return &media.MuxError{Err: ctx.Err()}
		case <-time.After(p.MuxDelay):
		}
	}
	if p.MuxErr != nil {
		return &media.MuxError{Err: p.MuxErr}
	}

	data, err := os.ReadFile(videoPath) // #nosec G304 - test helper
	if err != nil {
		return &media.MuxError{Err: err}
	}
	if _, err := os.Stat(audioPath); err != nil {
		return &media.MuxError{Err: err}
	}
	data = append(data, []byte("audio "+audioPath+"\n")...)
	if err := os.WriteFile(output, data, 0600); err != nil {
		return &media.MuxError{Err: err}
	}
	return nil
}

// Pixels returns the centre pixel of every encoded frame, in order.
func (p *Processor) Pixels() []color.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]color.RGBA(nil), p.pixels...)
}

// Options returns the options of the last encode.
func (p *Processor) Options() media.EncodeOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// MuxCalls returns how many times Mux was called.
func (p *Processor) MuxCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muxCalls
}

// Written returns the output paths of every encode and mux, in call order.
func (p *Processor) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// Nearest returns the index of the palette colour closest to c.
func Nearest(c color.RGBA, palette []color.RGBA) int {
	best, bestDist := -1, 1<<30
	for i, p := range palette {
		dr := int(c.R) - int(p.R)
		dg := int(c.G) - int(p.G)
		db := int(c.B) - int(p.B)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

var _ media.Processor = (*Processor)(nil)
