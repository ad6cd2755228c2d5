package slides

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/lessonreel-api/internal/gateway"
	"github.com/maauso/lessonreel-api/internal/media"
	"github.com/maauso/lessonreel-api/internal/progress"
	"github.com/maauso/lessonreel-api/internal/script"
)

// ImageProducer requests one image per slide, concurrently.
type ImageProducer struct {
	gen  gateway.ImageGenerator
	opts options
}

// NewImageProducer creates an ImageProducer backed by gen.
func NewImageProducer(gen gateway.ImageGenerator, opts ...Option) *ImageProducer {
	return &ImageProducer{gen: gen, opts: buildOptions(opts)}
}

// Produce returns one encoded image per slide, in slide order. Failed or
// empty responses are replaced by a placeholder showing the slide title.
func (p *ImageProducer) Produce(ctx context.Context, topic string, slides []script.Slide, rep progress.Reporter) [][]byte {
	n := len(slides)
	images := make([][]byte, n)

	limit := p.opts.concurrency
	if limit <= 0 {
		limit = n
	}

	var (
		mu      sync.Mutex
		started int
	)

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, slide := range slides {
		g.Go(func() error {
			mu.Lock()
			started++
			rep.Report(progress.Spread(20, 30, started-1, n), progress.StageImages,
				fmt.Sprintf("Creating image %d/%d...", started, n))
			mu.Unlock()

			images[i] = p.produceOne(ctx, topic, slide)
			return nil
		})
	}
	_ = g.Wait()

	return images
}

func (p *ImageProducer) produceOne(ctx context.Context, topic string, slide script.Slide) []byte {
	data, err := p.gen.GenerateImage(ctx, ImagePrompt(topic, slide))
	if err == nil && len(data) == 0 {
		err = gateway.ErrEmptyPayload
	}
	if err != nil {
		p.opts.logger.Warn("slide image failed, using placeholder",
			slog.Int("slide", slide.Index),
			slog.String("error", err.Error()),
		)
		return media.RenderPlaceholder(slide.Title, slide.Index, p.opts.width, p.opts.height)
	}
	return data
}

// ImagePrompt builds the image request for one slide.
func ImagePrompt(topic string, slide script.Slide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a professional educational presentation slide for a video about %s.\n", strings.TrimSpace(topic))
	fmt.Fprintf(&b, "Slide %d: %s\n", slide.Index, slide.Title)
	if slide.Points != "" {
		fmt.Fprintf(&b, "Key points: %s\n", slide.Points)
	}
	if slide.Visual != "" {
		fmt.Fprintf(&b, "Visual: %s\n", slide.Visual)
	}
	b.WriteString("Style: clean modern design, 16:9 widescreen layout, large readable title text, high contrast, no watermarks.")
	return b.String()
}
