package text

import (
	"strings"
	"testing"
)

func TestChunkBody_Empty(t *testing.T) {
	if got := ChunkBody("", 10); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestChunkBody_SingleParagraph(t *testing.T) {
	chunks := ChunkBody("a short paragraph", 10)
	if len(chunks) != 1 || chunks[0] != "a short paragraph" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestChunkBody_SplitsOnParagraphBoundaries(t *testing.T) {
	body := strings.Repeat("word ", 8) + "\n\n" + strings.Repeat("more ", 8)
	chunks := ChunkBody(body, 10)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
}

func TestChunkBody_LongParagraph(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("w ", 25))
	chunks := ChunkBody(body, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:2] {
		if n := len(strings.Fields(c)); n != 10 {
			t.Errorf("chunk %d: expected 10 words, got %d", i, n)
		}
	}
}
