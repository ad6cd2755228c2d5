// Package script plans the slide-by-slide script of a narrated lesson video.
//
// Planning always yields exactly N slides: a model response that cannot be
// parsed is replaced by a deterministic default script, and the Outcome
// records which of the two happened.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultSlideCount is the number of slides planned when none is configured.
const DefaultSlideCount = 6

// Slide is one planned slide. Index is 1-based.
type Slide struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Points    string `json:"points"`
	Visual    string `json:"visual"`
	Narration string `json:"narration"`
}

// Script is an ordered, fixed-length sequence of slides.
type Script struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Outcome is the result of planning: either a parsed model script or the
// default script together with the reason the model output was rejected.
type Outcome struct {
	Script   Script
	Fallback bool
	Reason   string
}

// Parsed wraps a script built from model output.
func Parsed(s Script) Outcome {
	return Outcome{Script: s}
}

// Fallback wraps the default script and the reason it was used.
func Fallback(s Script, reason string) Outcome {
	return Outcome{Script: s, Fallback: true, Reason: reason}
}

// Sentinel reasons for rejecting model output.
var (
	ErrMalformed     = errors.New("malformed JSON")
	ErrMissingSlides = errors.New(`missing "slides" field`)
	ErrNoSlides      = errors.New("no slides")
)

// ParseError reports why model output could not be turned into a script.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse script: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rawScript mirrors the JSON the model is asked to return.
type rawScript struct {
	Title  string      `json:"title"`
	Slides *[]rawSlide `json:"slides"`
}

type rawSlide struct {
	Number    int      `json:"number"`
	Title     flexText `json:"title"`
	Points    flexText `json:"points"`
	Visual    flexText `json:"visual"`
	Narration flexText `json:"narration"`
}

// flexText accepts a JSON string, an array of strings or null.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings, got %s", string(data))
	}
	*f = flexText(strings.Join(list, "; "))
	return nil
}

// StripFences removes a surrounding ``` or ```json code fence, if any.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}

	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// Parse decodes model output into raw slides. It fails with *ParseError when
// the JSON is malformed or the slide list is missing or empty.
func Parse(text string) (title string, slides []Slide, err error) {
	var raw rawScript
	if err := json.Unmarshal([]byte(StripFences(text)), &raw); err != nil {
		return "", nil, &ParseError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if raw.Slides == nil {
		return "", nil, &ParseError{Err: ErrMissingSlides}
	}
	if len(*raw.Slides) == 0 {
		return "", nil, &ParseError{Err: ErrNoSlides}
	}

	slides = make([]Slide, 0, len(*raw.Slides))
	for i, rs := range *raw.Slides {
		slides = append(slides, Slide{
			Index:     i + 1,
			Title:     strings.TrimSpace(string(rs.Title)),
			Points:    strings.TrimSpace(string(rs.Points)),
			Visual:    strings.TrimSpace(string(rs.Visual)),
			Narration: strings.TrimSpace(string(rs.Narration)),
		})
	}
	return strings.TrimSpace(raw.Title), slides, nil
}

// Normalize fits parsed slides to exactly n entries: extra slides are
// dropped, missing positions and empty narrations come from the default
// script for topic, and empty titles become "Slide i".
func Normalize(title string, slides []Slide, n int, topic string) Script {
	defaults := Default(topic, n)
	if title == "" {
		title = defaults.Title
	}

	out := make([]Slide, n)
	for i := 0; i < n; i++ {
		if i >= len(slides) {
			out[i] = defaults.Slides[i]
			continue
		}
		s := slides[i]
		s.Index = i + 1
		if s.Title == "" {
			s.Title = fmt.Sprintf("Slide %d", i+1)
		}
		if s.Narration == "" {
			s.Narration = defaults.Slides[i].Narration
		}
		out[i] = s
	}
	return Script{Title: title, Slides: out}
}
