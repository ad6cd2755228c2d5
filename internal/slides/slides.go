// Package slides produces the per-slide assets of a lesson video: one still
// image and one optional narration clip per planned slide.
//
// Neither producer fails. A slide whose image request fails gets a rendered
// placeholder, and a slide whose speech request fails has no audio.
package slides

import "log/slog"

type options struct {
	width       int
	height      int
	concurrency int
	logger      *slog.Logger
}

// Option configures a producer.
type Option func(*options)

// WithFrameSize sets the placeholder image size.
func WithFrameSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithConcurrency caps the number of image requests in flight. Zero or less
// means one request per slide.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger sets the producer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		width:  1920,
		height: 1080,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
