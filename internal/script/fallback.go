package script

import (
	"strings"
	"unicode/utf8"
)

const topicPlaceholder = "{topic}"

var defaultTitles = [...]string{
	"Introduction",
	"Basics",
	"Key Concepts",
	"Examples",
	"Summary",
	"Conclusion",
}

var defaultNarrations = [...]string{
	"Welcome to our educational video about {topic}. Today we'll explore this fascinating topic together.",
	"Let's start by understanding the basics of {topic}. This foundation is essential for deeper learning.",
	"Now let's dive into the key concepts. These are the core ideas you need to understand.",
	"Here are some practical examples that illustrate {topic} in action.",
	"Let's review the important points we've covered about {topic}.",
	"Thank you for watching! Remember to practice what you've learned about {topic}.",
}

// templateIndex pins the welcome and closing templates to the first and last
// slide and cycles the middle four in between.
func templateIndex(i, n int) int {
	last := len(defaultTitles) - 1
	switch {
	case i == 0:
		return 0
	case i == n-1:
		return last
	default:
		return 1 + (i-1)%(last-1)
	}
}

// Default builds the deterministic n-slide script used when model output is unusable.
func Default(topic string, n int) Script {
	topic = strings.TrimSpace(topic)
	if n < 1 {
		n = DefaultSlideCount
	}

	slides := make([]Slide, n)
	for i := range slides {
		t := templateIndex(i, n)
		slides[i] = Slide{
			Index:     i + 1,
			Title:     defaultTitles[t],
			Points:    "Key content points",
			Visual:    "Educational visual",
			Narration: strings.ReplaceAll(defaultNarrations[t], topicPlaceholder, topic),
		}
	}

	return Script{Title: truncateRunes(topic, 50), Slides: slides}
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
