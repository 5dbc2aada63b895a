package chunker

import (
	"strings"
	"testing"

	"github.com/dyzdyz010/agentrt/internal/config"
)

func testConfig(minChars, maxChars int, pref string) config.ChunkerConfig {
	return config.ChunkerConfig{MinChars: minChars, MaxChars: maxChars, BreakPreference: pref}
}

func TestChunker_DefaultsApplied(t *testing.T) {
	c := New(config.ChunkerConfig{})
	if c.minChars != 200 || c.maxChars != 800 || c.pref != BreakParagraph {
		t.Fatalf("expected documented defaults, got min=%d max=%d pref=%s", c.minChars, c.maxChars, c.pref)
	}
}

func TestChunker_NoChunkBelowMin(t *testing.T) {
	c := New(testConfig(200, 800, "paragraph"))
	chunks := c.Push("short text")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks below min_chars, got %v", chunks)
	}
	if c.Flush() != "short text" {
		t.Fatalf("expected flush to return buffered text")
	}
}

func TestChunker_BreaksOnParagraph(t *testing.T) {
	c := New(testConfig(10, 1000, "paragraph"))
	para1 := strings.Repeat("a", 20)
	para2 := strings.Repeat("b", 20)
	chunks := c.Push(para1 + "\n\n" + para2)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk emitted at paragraph break, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != para1 {
		t.Fatalf("expected chunk to end at paragraph boundary, got %q", chunks[0])
	}
	if c.Flush() != para2 {
		t.Fatalf("expected remainder to be para2, got %q", c.Flush())
	}
}

func TestChunker_FallsBackToNewlineWhenNoParagraph(t *testing.T) {
	c := New(testConfig(10, 1000, "paragraph"))
	line1 := strings.Repeat("a", 20)
	line2 := strings.Repeat("b", 20)
	chunks := c.Push(line1 + "\n" + line2)
	if len(chunks) != 1 {
		t.Fatalf("expected fallback to newline break, got %d chunks: %v", len(chunks), chunks)
	}
	if chunks[0] != line1 {
		t.Fatalf("expected break at newline, got %q", chunks[0])
	}
}

func TestChunker_FallsBackToSentence(t *testing.T) {
	c := New(testConfig(10, 1000, "newline"))
	text := "This is sentence one. This is sentence two without a newline between them at all"
	chunks := c.Push(text)
	if len(chunks) != 1 {
		t.Fatalf("expected a sentence-boundary break, got %d: %v", len(chunks), chunks)
	}
	if !strings.HasSuffix(chunks[0], "one.") {
		t.Fatalf("expected break after first sentence, got %q", chunks[0])
	}
}

func TestChunker_ForcedBreakAtMaxChars(t *testing.T) {
	c := New(testConfig(10, 50, "paragraph"))
	text := strings.Repeat("x", 100)
	chunks := c.Push(text)
	if len(chunks) == 0 {
		t.Fatal("expected forced break when no break point exists")
	}
	if len(chunks[0]) > 50 {
		t.Fatalf("expected chunk bounded by max_chars, got length %d", len(chunks[0]))
	}
}

func TestChunker_PushAccumulatesAcrossCalls(t *testing.T) {
	c := New(testConfig(10, 1000, "paragraph"))
	c.Push("first part ")
	chunks := c.Push("second part\n\nthird part")
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk once paragraph boundary crosses min_chars, got %d: %v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "first part") || !strings.Contains(chunks[0], "second part") {
		t.Fatalf("expected accumulated content in chunk, got %q", chunks[0])
	}
}

func TestChunker_FlushEmptyBuffer(t *testing.T) {
	c := New(testConfig(10, 1000, "paragraph"))
	if got := c.Flush(); got != "" {
		t.Fatalf("expected empty flush, got %q", got)
	}
}

func TestChunker_MultipleChunksInOnePush(t *testing.T) {
	c := New(testConfig(10, 1000, "paragraph"))
	para := strings.Repeat("z", 20)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := c.Push(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks emitted, 1 remainder, got %d: %v", len(chunks), chunks)
	}
	if c.Flush() != para {
		t.Fatalf("expected final paragraph left in buffer")
	}
}
