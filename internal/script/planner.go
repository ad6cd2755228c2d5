package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/lessonreel-api/internal/gateway"
)

// DefaultReferenceLimit is the number of reference characters included in the prompt.
const DefaultReferenceLimit = 1500

// Request is the input to Plan.
type Request struct {
	Instructions string
	Reference    string
}

// Planner turns instructions into a fixed-size Script using a text model.
type Planner struct {
	gen            gateway.TextGenerator
	slideCount     int
	referenceLimit int
	logger         *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithSlideCount sets the number of slides to plan.
func WithSlideCount(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.slideCount = n
		}
	}
}

// WithReferenceLimit sets how many characters of reference text reach the prompt.
func WithReferenceLimit(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.referenceLimit = n
		}
	}
}

// WithLogger sets the planner's logger.
func WithLogger(l *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPlanner creates a Planner backed by gen.
func NewPlanner(gen gateway.TextGenerator, opts ...PlannerOption) *Planner {
	p := &Planner{
		gen:            gen,
		slideCount:     DefaultSlideCount,
		referenceLimit: DefaultReferenceLimit,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SlideCount returns the number of slides every plan contains.
func (p *Planner) SlideCount() int {
	return p.slideCount
}

// Plan asks the model for a script once. It never fails: model errors and
// unparseable output produce the default script.
func (p *Planner) Plan(ctx context.Context, req Request) Outcome {
	n := p.slideCount

	text, err := p.gen.GenerateText(ctx, p.prompt(req))
	if err != nil {
		p.logger.Warn("script generation failed, using default script",
			slog.String("error", err.Error()),
		)
		return Fallback(Default(req.Instructions, n), err.Error())
	}

	title, slides, err := Parse(text)
	if err != nil {
		p.logger.Warn("script output rejected, using default script",
			slog.String("error", err.Error()),
		)
		return Fallback(Default(req.Instructions, n), err.Error())
	}

	if len(slides) != n {
		p.logger.Info("adjusting slide count",
			slog.Int("returned", len(slides)),
			slog.Int("expected", n),
		)
	}
	return Parsed(Normalize(title, slides, n, req.Instructions))
}

func (p *Planner) prompt(req Request) string {
	n := p.slideCount

	var reference string
	if ref := strings.TrimSpace(req.Reference); ref != "" {
		reference = "REFERENCE: " + truncateRunes(ref, p.referenceLimit) + "\n"
	}

	return fmt.Sprintf(`Create a professional %d-slide video script.

TOPIC: %s
%s
Return ONLY this JSON format:
{
    "title": "Video Title",
    "slides": [
        {
            "number": 1,
            "title": "Introduction",
            "points": "Key bullet points",
            "visual": "Description of what the slide image should show",
            "narration": "The exact words to speak for THIS slide only. Write 2-3 complete sentences."
        }
    ]
}

IMPORTANT:
- Each slide MUST have its own "narration" field
- Each narration should be 2-3 sentences (about 8-12 seconds when spoken)
- Make narrations flow naturally from one slide to the next
- First slide: Welcome and introduce topic
- Middle slides: Explain key concepts
- Last slide: Summarize and thank viewers

Create exactly %d slides.`, n, strings.TrimSpace(req.Instructions), reference, n)
}
