// Package chunker splits a stream of incoming text into display-sized
// chunks as it arrives, rather than waiting for the whole message and
// splitting it in one pass. Callers push text as it streams in from a
// provider and read back any chunks that became ready; a final Flush
// drains whatever is left once the stream ends.
package chunker

import (
	"regexp"
	"strings"

	"github.com/dyzdyz010/agentrt/internal/config"
)

// BreakPreference selects the preferred point to break a chunk at.
type BreakPreference string

const (
	BreakParagraph BreakPreference = "paragraph"
	BreakNewline   BreakPreference = "newline"
	BreakSentence  BreakPreference = "sentence"
)

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]?\s`)

// Chunker accumulates pushed text and emits chunks once enough content has
// built up to break on a preferred boundary, never holding more than
// MaxChars before forcing a break.
type Chunker struct {
	minChars int
	maxChars int
	pref     BreakPreference

	buf strings.Builder
}

// New builds a Chunker from configuration, applying the documented
// defaults (200/800/"paragraph") for zero values.
func New(cfg config.ChunkerConfig) *Chunker {
	minChars := cfg.MinChars
	if minChars <= 0 {
		minChars = 200
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 800
	}
	pref := BreakPreference(cfg.BreakPreference)
	if pref == "" {
		pref = BreakParagraph
	}
	return &Chunker{minChars: minChars, maxChars: maxChars, pref: pref}
}

// Push appends text to the buffer and returns zero or more chunks that
// became ready as a result. Chunks are returned in emission order.
func (c *Chunker) Push(text string) []string {
	c.buf.WriteString(text)
	return c.drain()
}

// Flush returns the remaining buffered text as a final chunk, or "" if the
// buffer is empty. The Chunker is reset afterward.
func (c *Chunker) Flush() string {
	remaining := c.buf.String()
	c.buf.Reset()
	return remaining
}

func (c *Chunker) drain() []string {
	var chunks []string
	for {
		content := c.buf.String()
		if len(content) < c.minChars {
			return chunks
		}

		breakIdx := c.findBreak(content)
		if breakIdx <= 0 {
			return chunks
		}

		chunk := strings.TrimRight(content[:breakIdx], " \t\n")
		rest := content[breakIdx:]
		rest = strings.TrimLeft(rest, " \t\n")

		c.buf.Reset()
		c.buf.WriteString(rest)

		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if chunk == "" && rest == content {
			// no progress was made; avoid spinning forever
			return chunks
		}
	}
}

// findBreak locates a break point within content, degrading through the
// fallback chain paragraph -> newline -> sentence -> forced-at-max.
// Forward progress is never blocked: if content has reached maxChars and
// no preferred break exists, a forced break at maxChars is returned.
func (c *Chunker) findBreak(content string) int {
	window := content
	forceAt := -1
	if len(content) >= c.maxChars {
		window = content[:c.maxChars]
		forceAt = c.maxChars
	}

	switch c.pref {
	case BreakParagraph:
		if idx := firstIndexAfter(window, "\n\n", c.minChars); idx > 0 {
			return idx + 2
		}
		fallthrough
	case BreakNewline:
		if idx := firstIndexAfter(window, "\n", c.minChars); idx > 0 {
			return idx + 1
		}
		fallthrough
	case BreakSentence:
		if idx := firstSentenceEnd(window, c.minChars); idx > 0 {
			return idx
		}
	}

	if forceAt > 0 {
		return forceAt
	}
	return -1
}

// firstIndexAfter returns the first occurrence of sep in s that starts at
// or after minPos, or -1 if none qualifies. Picking the earliest qualifying
// boundary (rather than the latest) keeps chunks close to minChars instead
// of growing them to the edge of the buffered window.
func firstIndexAfter(s, sep string, minPos int) int {
	if minPos >= len(s) {
		return -1
	}
	idx := strings.Index(s[minPos:], sep)
	if idx < 0 {
		return -1
	}
	return minPos + idx
}

// firstSentenceEnd returns the index just past the first sentence-ending
// punctuation (plus trailing quote/paren and whitespace) at or after
// minPos, or -1 if none is found.
func firstSentenceEnd(s string, minPos int) int {
	for _, m := range sentenceEnd.FindAllStringIndex(s, -1) {
		if m[1] >= minPos {
			return m[1]
		}
	}
	return -1
}
