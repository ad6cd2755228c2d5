// Package progress carries (percent, stage, message) updates from pipeline
// steps to whoever is observing a job.
package progress

// Stage tags reported by the video pipeline.
const (
	StageInit     = "init"
	StageScript   = "script"
	StageImages   = "images"
	StageAudio    = "audio"
	StageVideo    = "video"
	StageUpload   = "upload"
	StageComplete = "complete"
	StageError    = "error"
)

// Reporter receives progress updates.
type Reporter interface {
	Report(percent int, stage, message string)
}

// Func adapts a plain function to Reporter.
type Func func(percent int, stage, message string)

// Report calls f.
func (f Func) Report(percent int, stage, message string) {
	f(percent, stage, message)
}

// Nop discards every update.
var Nop Reporter = Func(func(int, string, string) {})

// Spread maps item i of n onto [base, base+span), used for per-slide progress.
func Spread(base, span, i, n int) int {
	if n <= 0 {
		return base
	}
	return base + i*span/n
}
