// Package gateway defines the model-facing ports the video pipeline depends on:
// text generation, image generation and speech synthesis.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Operations reported in ModelError.
const (
	OpText   = "generate_text"
	OpImage  = "generate_image"
	OpSpeech = "generate_speech"
)

// DefaultSampleRate is the PCM rate assumed when a provider does not report one.
const DefaultSampleRate = 24000

var (
	// ErrModel is matched by every error returned from a gateway call.
	ErrModel = errors.New("model call failed")
	// ErrEmptyPayload is returned when a response carries no usable text, image or audio.
	ErrEmptyPayload = errors.New("response contained no payload")
)

// ModelError describes a failed generation call.
type ModelError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Is reports ErrModel as a match so callers can test any gateway failure uniformly.
func (e *ModelError) Is(target error) bool {
	return target == ErrModel
}

// NewModelError wraps err as a ModelError. A nil err yields nil.
func NewModelError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ModelError{Provider: provider, Op: op, Err: err}
}

// Speech is synthesized narration as signed 16-bit little-endian mono PCM.
type Speech struct {
	PCM        []byte
	SampleRate int
}

// TextGenerator produces text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces an encoded still image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// SpeechSynthesizer turns narration text into PCM audio.
type SpeechSynthesizer interface {
	GenerateSpeech(ctx context.Context, text string) (Speech, error)
}

// Gateway bundles the three capabilities a provider exposes.
type Gateway interface {
	TextGenerator
	ImageGenerator
	SpeechSynthesizer
}
