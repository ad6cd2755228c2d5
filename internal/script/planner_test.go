package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/lessonreel-api/internal/gateway"
)

type fakeText struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeText) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sixSlideJSON() string {
	var parts []string
	for i := 1; i <= 6; i++ {
		parts = append(parts, fmt.Sprintf(
			`{"number": %d, "title": "Part %d", "points": "p%d", "visual": "v%d", "narration": "Narration for slide %d of the lesson."}`,
			i, i, i, i, i))
	}
	return `{"title": "Photosynthesis", "slides": [` + strings.Join(parts, ",") + `]}`
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", ` {"a":1} `, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"inline json fence", "```json{\"a\":1}```", `{"a":1}`},
		{"text before fence", "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("valid script", func(t *testing.T) {
		title, slides, err := Parse(sixSlideJSON())
		require.NoError(t, err)
		assert.Equal(t, "Photosynthesis", title)
		require.Len(t, slides, 6)
		assert.Equal(t, 1, slides[0].Index)
		assert.Equal(t, "Part 3", slides[2].Title)
		assert.Equal(t, "v6", slides[5].Visual)
	})

	t.Run("points as list", func(t *testing.T) {
		_, slides, err := Parse(`{"slides":[{"title":"A","points":["light","water"],"narration":"Plants need light and water."}]}`)
		require.NoError(t, err)
		assert.Equal(t, "light; water", slides[0].Points)
	})

	errorCases := []struct {
		name string
		in   string
		want error
	}{
		{"garbage", "I'm sorry, I can't help with that.", ErrMalformed},
		{"truncated", `{"title":"x","slides":[{"title":"a"`, ErrMalformed},
		{"wrong field set", `{"title":"x","pages":[{"title":"a"}]}`, ErrMissingSlides},
		{"empty slides", `{"title":"x","slides":[]}`, ErrNoSlides},
		{"array at top level", `[{"title":"a"}]`, ErrMalformed},
		{"numeric narration", `{"slides":[{"title":"a","narration":42}]}`, ErrMalformed},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.in)
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDefault_AlwaysNSlidesWithNarration(t *testing.T) {
	for n := 1; n <= 12; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := Default("Photosynthesis", n)
			require.Len(t, s.Slides, n)
			for i, slide := range s.Slides {
				assert.Equal(t, i+1, slide.Index)
				assert.NotEmpty(t, strings.TrimSpace(slide.Narration))
				assert.NotEmpty(t, slide.Title)
			}
			assert.Equal(t, "Introduction", s.Slides[0].Title)
			if n > 1 {
				assert.Equal(t, "Conclusion", s.Slides[n-1].Title)
			}
		})
	}
}

func TestDefault_SixSlideTemplates(t *testing.T) {
	s := Default("Photosynthesis", 6)

	titles := make([]string, 0, 6)
	for _, slide := range s.Slides {
		titles = append(titles, slide.Title)
	}
	assert.Equal(t, []string{"Introduction", "Basics", "Key Concepts", "Examples", "Summary", "Conclusion"}, titles)
	assert.Equal(t, "Welcome to our educational video about Photosynthesis. Today we'll explore this fascinating topic together.", s.Slides[0].Narration)
	assert.Contains(t, s.Slides[5].Narration, "learned about Photosynthesis")
	assert.Equal(t, "Photosynthesis", s.Title)
}

func TestDefault_TitleTruncated(t *testing.T) {
	topic := strings.Repeat("é", 80)
	s := Default(topic, 3)
	assert.Equal(t, 50, len([]rune(s.Title)))
}

func TestNormalize(t *testing.T) {
	t.Run("pads short list from default script", func(t *testing.T) {
		slides := []Slide{{Title: "Only", Narration: "Just one slide of narration."}}
		s := Normalize("T", slides, 4, "Gravity")

		require.Len(t, s.Slides, 4)
		assert.Equal(t, "Only", s.Slides[0].Title)
		assert.Equal(t, 2, s.Slides[1].Index)
		assert.Contains(t, s.Slides[1].Narration, "Gravity")
		assert.Equal(t, "Conclusion", s.Slides[3].Title)
	})

	t.Run("truncates long list", func(t *testing.T) {
		slides := make([]Slide, 9)
		for i := range slides {
			slides[i] = Slide{Title: fmt.Sprintf("S%d", i+1), Narration: "Some narration text here."}
		}
		s := Normalize("T", slides, 6, "Gravity")
		require.Len(t, s.Slides, 6)
		assert.Equal(t, "S6", s.Slides[5].Title)
	})

	t.Run("fills empty title and narration", func(t *testing.T) {
		s := Normalize("", []Slide{{Index: 7}}, 1, "Gravity")
		assert.Equal(t, "Gravity", s.Title)
		assert.Equal(t, 1, s.Slides[0].Index)
		assert.Equal(t, "Slide 1", s.Slides[0].Title)
		assert.NotEmpty(t, s.Slides[0].Narration)
	})
}

func TestPlanner_Parsed(t *testing.T) {
	gen := &fakeText{response: "```json\n" + sixSlideJSON() + "\n```"}
	p := NewPlanner(gen, WithLogger(quietLogger()))

	out := p.Plan(context.Background(), Request{Instructions: "Photosynthesis"})

	assert.False(t, out.Fallback)
	assert.Empty(t, out.Reason)
	require.Len(t, out.Script.Slides, 6)
	assert.Equal(t, "Part 1", out.Script.Slides[0].Title)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "TOPIC: Photosynthesis")
	assert.Contains(t, gen.prompts[0], "Create exactly 6 slides.")
	assert.NotContains(t, gen.prompts[0], "REFERENCE:")
}

func TestPlanner_FallbackOnMalformedOutput(t *testing.T) {
	for _, n := range []int{1, 3, 6, 10} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			gen := &fakeText{response: "{not json"}
			p := NewPlanner(gen, WithSlideCount(n), WithLogger(quietLogger()))

			out := p.Plan(context.Background(), Request{Instructions: "Volcanoes"})

			assert.True(t, out.Fallback)
			assert.Contains(t, out.Reason, "malformed JSON")
			require.Len(t, out.Script.Slides, n)
			for _, s := range out.Script.Slides {
				assert.NotEmpty(t, s.Narration)
			}
			assert.Len(t, gen.prompts, 1, "no second model call")
		})
	}
}

func TestPlanner_FallbackOnModelError(t *testing.T) {
	gen := &fakeText{err: gateway.NewModelError("gemini", gateway.OpText, errors.New("quota"))}
	p := NewPlanner(gen, WithLogger(quietLogger()))

	out := p.Plan(context.Background(), Request{Instructions: "Volcanoes"})

	assert.True(t, out.Fallback)
	assert.Contains(t, out.Reason, "quota")
	assert.Len(t, out.Script.Slides, 6)
	assert.Len(t, gen.prompts, 1)
}

func TestPlanner_ReferenceTruncated(t *testing.T) {
	gen := &fakeText{response: sixSlideJSON()}
	p := NewPlanner(gen, WithReferenceLimit(20), WithLogger(quietLogger()))

	reference := strings.Repeat("a", 20) + "TRUNCATED-TAIL"
	p.Plan(context.Background(), Request{Instructions: "Letters", Reference: reference})

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "REFERENCE: "+strings.Repeat("a", 20)+"\n")
	assert.NotContains(t, gen.prompts[0], "TRUNCATED-TAIL")
}

func TestPlanner_SlideCount(t *testing.T) {
	assert.Equal(t, DefaultSlideCount, NewPlanner(&fakeText{}).SlideCount())
	assert.Equal(t, 4, NewPlanner(&fakeText{}, WithSlideCount(4)).SlideCount())
	assert.Equal(t, DefaultSlideCount, NewPlanner(&fakeText{}, WithSlideCount(0)).SlideCount())
}
