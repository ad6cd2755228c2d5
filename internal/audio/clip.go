// Package audio builds the narration track of a lesson video from per-slide
// speech clips.
package audio

import "github.com/maauso/lessonreel-api/internal/gateway"

// BytesPerSample is the size of one mono 16-bit PCM sample.
const BytesPerSample = 2

// DefaultSampleRate is used when no slide has real audio.
const DefaultSampleRate = gateway.DefaultSampleRate

// MinClipBytes is the smallest PCM payload accepted as real narration.
// Anything shorter is treated as no audio.
const MinClipBytes = 100

// Clip is one slide's synthesized narration stored as raw PCM in temporary
// storage. A nil *Clip means the slide has no audio.
type Clip struct {
	Path       string
	SampleRate int
	Bytes      int
}

// Duration returns the measured length of the clip in seconds.
func (c *Clip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Bytes) / float64(c.SampleRate*BytesPerSample)
}

// CommonRate returns the sample rate of the first clip with audio, or
// DefaultSampleRate when there is none.
func CommonRate(clips []*Clip) int {
	for _, c := range clips {
		if c != nil && c.SampleRate > 0 {
			return c.SampleRate
		}
	}
	return DefaultSampleRate
}

// Paths returns the temp file paths of all clips with audio.
func Paths(clips []*Clip) []string {
	var paths []string
	for _, c := range clips {
		if c != nil && c.Path != "" {
			paths = append(paths, c.Path)
		}
	}
	return paths
}
