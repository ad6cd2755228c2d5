// Package timing decides how long each slide stays on screen.
package timing

import (
	"math"

	"github.com/maauso/lessonreel-api/internal/audio"
)

// DefaultMinSlideSeconds is the shortest time a slide is shown.
const DefaultMinSlideSeconds = 8.0

// SlideDuration is the resolved on-screen time of one slide. Index is 1-based.
type SlideDuration struct {
	Index   int
	Seconds float64
}

// Resolve returns one duration per clip: the clip's measured length, floored
// at minSeconds. Slides without audio get minSeconds.
func Resolve(clips []*audio.Clip, minSeconds float64) []SlideDuration {
	out := make([]SlideDuration, len(clips))
	for i, c := range clips {
		out[i] = SlideDuration{
			Index:   i + 1,
			Seconds: math.Max(c.Duration(), minSeconds),
		}
	}
	return out
}

// Seconds returns the durations as plain seconds, in slide order.
func Seconds(durations []SlideDuration) []float64 {
	out := make([]float64, len(durations))
	for i, d := range durations {
		out[i] = d.Seconds
	}
	return out
}

// Total returns the summed duration in seconds.
func Total(durations []SlideDuration) float64 {
	var sum float64
	for _, d := range durations {
		sum += d.Seconds
	}
	return sum
}

// TotalSeconds returns the summed duration truncated to whole seconds.
func TotalSeconds(durations []SlideDuration) int {
	return int(Total(durations))
}
