package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// Limits configures per-capability request rates in requests per second.
// A zero or negative rate leaves that capability unlimited.
type Limits struct {
	TextRPS   float64
	ImageRPS  float64
	SpeechRPS float64
}

// Compile-time check that RateLimited implements Gateway.
var _ Gateway = (*RateLimited)(nil)

// RateLimited throttles calls to an underlying Gateway.
type RateLimited struct {
	next   Gateway
	text   *rate.Limiter
	image  *rate.Limiter
	speech *rate.Limiter
}

// NewRateLimited wraps next with one token bucket per capability.
func NewRateLimited(next Gateway, limits Limits) *RateLimited {
	return &RateLimited{
		next:   next,
		text:   newLimiter(limits.TextRPS),
		image:  newLimiter(limits.ImageRPS),
		speech: newLimiter(limits.SpeechRPS),
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// GenerateText waits for a text token and delegates.
func (g *RateLimited) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := g.text.Wait(ctx); err != nil {
		return "", NewModelError("limiter", OpText, err)
	}
	return g.next.GenerateText(ctx, prompt)
}

// GenerateImage waits for an image token and delegates.
func (g *RateLimited) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := g.image.Wait(ctx); err != nil {
		return nil, NewModelError("limiter", OpImage, err)
	}
	return g.next.GenerateImage(ctx, prompt)
}

// GenerateSpeech waits for a speech token and delegates.
func (g *RateLimited) GenerateSpeech(ctx context.Context, text string) (Speech, error) {
	if err := g.speech.Wait(ctx); err != nil {
		return Speech{}, NewModelError("limiter", OpSpeech, err)
	}
	return g.next.GenerateSpeech(ctx, text)
}
