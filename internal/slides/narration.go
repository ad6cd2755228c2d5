package slides

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/maauso/lessonreel-api/internal/audio"
	"github.com/maauso/lessonreel-api/internal/gateway"
	"github.com/maauso/lessonreel-api/internal/progress"
	"github.com/maauso/lessonreel-api/internal/script"
)

// minNarrationChars is the shortest narration sent to speech synthesis as is.
const minNarrationChars = 10

// TempSaver stores raw clip bytes in temporary storage.
type TempSaver interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)
}

// NarrationProducer synthesizes one narration clip per slide, one at a time.
type NarrationProducer struct {
	synth gateway.SpeechSynthesizer
	store TempSaver
	opts  options
}

// NewNarrationProducer creates a NarrationProducer that keeps clips in store.
func NewNarrationProducer(synth gateway.SpeechSynthesizer, store TempSaver, opts ...Option) *NarrationProducer {
	return &NarrationProducer{synth: synth, store: store, opts: buildOptions(opts)}
}

// Produce returns one clip per slide, in slide order. A nil entry means the
// slide has no audio. Progress is reported as each slide finishes, reaching
// 75 with the last one.
func (p *NarrationProducer) Produce(ctx context.Context, slides []script.Slide, rep progress.Reporter) []*audio.Clip {
	n := len(slides)
	clips := make([]*audio.Clip, n)

	for i, slide := range slides {
		clips[i] = p.produceOne(ctx, slide)
		rep.Report(progress.Spread(50, 25, i+1, n), progress.StageAudio,
			fmt.Sprintf("Recorded voice %d/%d", i+1, n))
	}
	return clips
}

func (p *NarrationProducer) produceOne(ctx context.Context, slide script.Slide) *audio.Clip {
	log := p.opts.logger.With(slog.Int("slide", slide.Index))

	speech, err := p.synth.GenerateSpeech(ctx, NarrationText(slide))
	if err != nil {
		log.Warn("speech synthesis failed, slide will be silent", slog.String("error", err.Error()))
		return nil
	}
	if len(speech.PCM) < audio.MinClipBytes {
		log.Warn("speech too short, slide will be silent", slog.Int("bytes", len(speech.PCM)))
		return nil
	}

	rate := speech.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}

	path, err := p.store.SaveTemp(ctx, fmt.Sprintf("slide_%02d_pcm", slide.Index), bytes.NewReader(speech.PCM))
	if err != nil {
		log.Warn("could not store speech, slide will be silent", slog.String("error", err.Error()))
		return nil
	}

	return &audio.Clip{Path: path, SampleRate: rate, Bytes: len(speech.PCM)}
}

// NarrationText returns the text to synthesize for a slide. Narration with
// fewer than ten non-blank characters is replaced by a short sentence naming
// the slide.
func NarrationText(slide script.Slide) string {
	text := strings.TrimSpace(slide.Narration)
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	if count < minNarrationChars {
		return fmt.Sprintf("This is slide %d about %s.", slide.Index, slide.Title)
	}
	return text
}
