package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrLengthMismatch is returned when clips and durations differ in length.
var ErrLengthMismatch = errors.New("clips and durations length mismatch")

// chunkSamples bounds the size of each buffer handed to the WAV encoder.
const chunkSamples = 1 << 15

// Loader opens a previously stored temp file.
type Loader interface {
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)
}

// Track describes a composite narration file.
type Track struct {
	Path       string
	SampleRate int
	Samples    int
}

// Duration returns the track length in seconds.
func (t *Track) Duration() float64 {
	if t == nil || t.SampleRate <= 0 {
		return 0
	}
	return float64(t.Samples) / float64(t.SampleRate)
}

// Compositor concatenates per-slide clips into a single mono 16-bit WAV
// where slide i occupies exactly durations[i] seconds.
type Compositor struct {
	loader Loader
	logger *slog.Logger
}

// CompositorOption configures a Compositor.
type CompositorOption func(*Compositor)

// WithLogger sets the compositor's logger.
func WithLogger(l *slog.Logger) CompositorOption {
	return func(c *Compositor) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCompositor creates a Compositor reading clips through loader.
func NewCompositor(loader Loader, opts ...CompositorOption) *Compositor {
	c := &Compositor{
		loader: loader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose writes the composite track to dst. Clips shorter than their slide
// are padded with silence, missing clips become silence, and real audio is
// never cut. Slide boundaries are placed by rounding cumulative durations, so
// the track length is within one sample of sum(durations) at the common rate.
func (c *Compositor) Compose(ctx context.Context, clips []*Clip, durations []float64, dst string) (*Track, error) {
	if len(clips) != len(durations) {
		return nil, fmt.Errorf("%w: %d clips, %d durations", ErrLengthMismatch, len(clips), len(durations))
	}

	rate := CommonRate(clips)

	f, err := os.Create(dst) // #nosec G304 - dst is built by the pipeline
	if err != nil {
		return nil, fmt.Errorf("create track file: %w", err)
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	format := &goaudio.Format{NumChannels: 1, SampleRate: rate}

	written := 0
	var elapsed float64
	for i, d := range durations {
		elapsed += d
		boundary := int(math.Round(elapsed * float64(rate)))

		samples := c.clipSamples(ctx, i+1, clips[i], rate)
		if len(samples) > 0 {
			if err := enc.Write(&goaudio.IntBuffer{Format: format, Data: samples, SourceBitDepth: 16}); err != nil {
				return nil, c.abort(f, dst, fmt.Errorf("write slide %d audio: %w", i+1, err))
			}
			written += len(samples)
		}

		if pad := boundary - written; pad > 0 {
			if err := writeSilence(enc, format, pad); err != nil {
				return nil, c.abort(f, dst, fmt.Errorf("write slide %d silence: %w", i+1, err))
			}
			written += pad
		}
	}

	if written == 0 {
		// Emit the header even for an empty track.
		if err := enc.Write(&goaudio.IntBuffer{Format: format, SourceBitDepth: 16}); err != nil {
			return nil, c.abort(f, dst, fmt.Errorf("write header: %w", err))
		}
	}
	if err := enc.Close(); err != nil {
		return nil, c.abort(f, dst, fmt.Errorf("finalize track: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("close track file: %w", err)
	}

	return &Track{Path: dst, SampleRate: rate, Samples: written}, nil
}

// clipSamples loads and converts one clip. Any read failure yields no samples
// so the slide is filled with silence.
func (c *Compositor) clipSamples(ctx context.Context, slide int, clip *Clip, rate int) []int {
	if clip == nil {
		return nil
	}

	rc, err := c.loader.LoadTemp(ctx, clip.Path)
	if err != nil {
		c.logger.Warn("slide audio unreadable, using silence",
			slog.Int("slide", slide),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		c.logger.Warn("slide audio unreadable, using silence",
			slog.Int("slide", slide),
			slog.String("error", err.Error()),
		)
		return nil
	}

	return Resample(DecodePCM16(data), clip.SampleRate, rate)
}

func (c *Compositor) abort(f *os.File, dst string, err error) error {
	_ = f.Close()
	_ = os.Remove(dst)
	return err
}

func writeSilence(enc *wav.Encoder, format *goaudio.Format, n int) error {
	zeros := make([]int, min(n, chunkSamples))
	for n > 0 {
		k := min(n, len(zeros))
		if err := enc.Write(&goaudio.IntBuffer{Format: format, Data: zeros[:k], SourceBitDepth: 16}); err != nil {
			return err
		}
		n -= k
	}
	return nil
}
