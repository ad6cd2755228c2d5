// Package video assembles slide stills and a narration track into the final
// lesson video.
package video

import "math"

// DefaultFPS is the output frame rate.
const DefaultFPS = 24

// FrameRun is a contiguous run of identical frames showing one slide.
// Slide is 1-based; Start is the index of the run's first frame.
type FrameRun struct {
	Slide int
	Start int
	Count int
}

// FramePlan maps every output frame to a slide.
type FramePlan struct {
	Runs  []FrameRun
	Total int
}

// Plan gives slide i round(durations[i]*fps) frames, in slide order.
func Plan(durations []float64, fps int) FramePlan {
	plan := FramePlan{Runs: make([]FrameRun, len(durations))}
	for i, d := range durations {
		count := int(math.Round(d * float64(fps)))
		if count < 0 {
			count = 0
		}
		plan.Runs[i] = FrameRun{Slide: i + 1, Start: plan.Total, Count: count}
		plan.Total += count
	}
	return plan
}

// SlideAt returns the 1-based slide shown at frame, or 0 if out of range.
func (p FramePlan) SlideAt(frame int) int {
	for _, r := range p.Runs {
		if frame >= r.Start && frame < r.Start+r.Count {
			return r.Slide
		}
	}
	return 0
}
