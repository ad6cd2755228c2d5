package video

import (
	"errors"
	"fmt"
)

// Sentinel causes of a fatal assembly failure.
var (
	ErrZeroDuration    = errors.New("total video duration is zero")
	ErrUnreadableFrame = errors.New("image could not be decoded")
	ErrNoFrames        = errors.New("no slide images")
	ErrEncodeFailed    = errors.New("could not encode video")
	ErrSaveFailed      = errors.New("could not save video")
)

// reasons are the causes Reason reports by name, in match order.
var reasons = []error{ErrUnreadableFrame, ErrZeroDuration, ErrNoFrames, ErrEncodeFailed, ErrSaveFailed}

// FatalAssemblyError aborts the job: the video cannot be built. Slide is the
// 1-based slide at fault, or 0 when the failure is not slide specific.
type FatalAssemblyError struct {
	Slide int
	Err   error
}

func (e *FatalAssemblyError) Error() string {
	if e.Slide > 0 {
		return fmt.Sprintf("slide %d %v", e.Slide, e.Err)
	}
	return e.Err.Error()
}

func (e *FatalAssemblyError) Unwrap() error {
	return e.Err
}

// Reason is a one-line message naming the cause without encoder output,
// arguments or paths.
func (e *FatalAssemblyError) Reason() string {
	msg := "video could not be built"
	for _, cause := range reasons {
		if errors.Is(e.Err, cause) {
			msg = cause.Error()
			break
		}
	}
	if e.Slide > 0 {
		return fmt.Sprintf("slide %d %s", e.Slide, msg)
	}
	return msg
}
