package indexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/medrag/internal/models"
)

func letterWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = string(rune('a' + i%26))
	}
	return words
}

func TestChunker_SplitShortSection(t *testing.T) {
	c := NewChunker(500, 50)
	chunks := c.Split("Fever\nA temperature above 38C.", "symptoms")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.Section != "Fever" || ch.Text != "A temperature above 38C." {
		t.Errorf("unexpected chunk: section=%q text=%q", ch.Section, ch.Text)
	}
	if ch.Source != "symptoms" || ch.ChunkIndex != 0 {
		t.Errorf("unexpected chunk: source=%q index=%d", ch.Source, ch.ChunkIndex)
	}
	if ch.ID != ChunkID("symptoms", "Fever", 0) {
		t.Errorf("ID=%s, want deterministic id", ch.ID)
	}
}

func TestChunker_SplitSections(t *testing.T) {
	content := "Headache\nPain in the head.\n====================\nCough\nIrritation of the airway.\n====================\n\n"
	chunks := NewChunker(500, 50).Split(content, "kb")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Section != "Headache" || chunks[1].Section != "Cough" {
		t.Errorf("sections: %q, %q", chunks[0].Section, chunks[1].Section)
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != 0 {
			t.Errorf("chunk %d ChunkIndex=%d, want 0", i, ch.ChunkIndex)
		}
	}
}

func TestChunker_SplitWithoutDelimiterIsOneSection(t *testing.T) {
	chunks := NewChunker(500, 50).Split("Only line", "kb")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Section != "Only line" || chunks[0].Text != "Only line" {
		t.Errorf("single-line section: section=%q text=%q", chunks[0].Section, chunks[0].Text)
	}
}

func TestChunker_SplitEmpty(t *testing.T) {
	c := NewChunker(500, 50)
	if chunks := c.Split("   \n\t  ", "d"); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
	if chunks := c.Split("Title only\n   \n", "d"); chunks != nil {
		t.Errorf("section without body should be skipped, got %v", chunks)
	}
}

func TestChunker_IdempotentIDs(t *testing.T) {
	c := NewChunker(100, 5)
	body := strings.Join(letterWords(300), " ")
	content := "Rash\n" + body + SectionDelimiter + "Nausea\n" + body
	first := c.Split(content, "derm")
	second := c.Split(content, "derm")
	if len(first) != len(second) || len(first) < 4 {
		t.Fatalf("chunk counts: %d vs %d", len(first), len(second))
	}
	seen := make(map[string]bool)
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Text != second[i].Text {
			t.Errorf("chunk %d differs between runs", i)
		}
		if seen[first[i].ID] {
			t.Errorf("duplicate id %s", first[i].ID)
		}
		seen[first[i].ID] = true
	}
}

func TestChunker_SplitLongSection(t *testing.T) {
	words := letterWords(600)
	body := strings.Join(words, " ")
	if len(body) != 1199 {
		t.Fatalf("fixture length %d", len(body))
	}
	chunks := NewChunker(500, 50).Split("Fever\n"+body, "fever")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := [][2]int{{0, 250}, {200, 450}, {400, 600}}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d ChunkIndex=%d", i, ch.ChunkIndex)
		}
		if ch.Section != "Fever" {
			t.Errorf("chunk %d Section=%q", i, ch.Section)
		}
		expected := strings.Join(words[want[i][0]:want[i][1]], " ")
		if ch.Text != expected {
			t.Errorf("chunk %d text covers wrong words", i)
		}
		if len(ch.Text) > 500 {
			t.Errorf("chunk %d has %d chars", i, len(ch.Text))
		}
	}
}

func TestChunker_OverlapCarriesTrailingWords(t *testing.T) {
	const overlap = 10
	var words []string
	for i := 0; i < 400; i++ {
		words = append(words, "w"+strings.Repeat("x", i%5))
	}
	chunks := NewChunker(200, overlap).Split("Section\n"+strings.Join(words, " "), "src")
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 0; i < len(chunks)-1; i++ {
		prev := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		tail := prev[len(prev)-overlap:]
		for j := range tail {
			if next[j] != tail[j] {
				t.Fatalf("chunk %d does not start with the last %d words of chunk %d", i+1, overlap, i)
			}
		}
		if len(chunks[i].Text) > 200 {
			t.Errorf("chunk %d has %d chars", i, len(chunks[i].Text))
		}
	}
}

// assertOverlap checks that every chunk starts with the trailing overlap words
// of the chunk before it, or with all of them when the previous chunk is shorter.
func assertOverlap(t *testing.T, chunks []*models.Chunk, overlap int) {
	t.Helper()
	for i := 0; i < len(chunks)-1; i++ {
		prev := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		n := overlap
		if n > len(prev) {
			n = len(prev)
		}
		tail := prev[len(prev)-n:]
		if len(next) < len(tail) {
			t.Fatalf("chunk %d has %d words, want at least %d carried", i+1, len(next), len(tail))
		}
		for j := range tail {
			if next[j] != tail[j] {
				t.Fatalf("chunk %d does not start with the last %d words of chunk %d", i+1, n, i)
			}
		}
	}
}

func TestChunker_LongWordsKeepFullOverlap(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = strings.Repeat(string(rune('a'+i%26)), 9)
	}
	chunks := NewChunker(500, 50).Split("Long\n"+strings.Join(words, " "), "src")
	if len(chunks) < 2 || len(chunks) > len(words) {
		t.Fatalf("unexpected chunk count %d", len(chunks))
	}
	assertOverlap(t, chunks, 50)
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d ChunkIndex=%d", i, ch.ChunkIndex)
		}
		// New words are only added within chunkSize; carried words come on top.
		carried := 0
		if i > 0 {
			carried = 50 * 10
		}
		if len(ch.Text) > 500+carried {
			t.Errorf("chunk %d grew to %d chars", i, len(ch.Text))
		}
	}
	last := strings.Fields(chunks[len(chunks)-1].Text)
	if last[len(last)-1] != words[len(words)-1] {
		t.Errorf("last chunk ends with %q, want %q", last[len(last)-1], words[len(words)-1])
	}
}

func TestChunker_FewerWordsThanOverlap(t *testing.T) {
	a := strings.Repeat("a", 300)
	b := strings.Repeat("b", 300)
	c := strings.Repeat("c", 300)
	chunks := NewChunker(500, 50).Split("Huge\n"+a+" "+b+" "+c, "src")
	want := []string{a, a + " " + b, a + " " + b + " " + c}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, ch := range chunks {
		if ch.Text != want[i] {
			t.Errorf("chunk %d = %.20q..., want %.20q...", i, ch.Text, want[i])
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d ChunkIndex=%d", i, ch.ChunkIndex)
		}
	}
}

func TestChunker_ShortChunkCarriedWhole(t *testing.T) {
	words := make([]string, 46)
	for i := range words {
		words[i] = fmt.Sprintf("word%06d", i)
	}
	chunks := NewChunker(500, 50).Split("Notes\n"+strings.Join(words, " "), "src")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if got := len(strings.Fields(chunks[0].Text)); got != 45 {
		t.Fatalf("chunk 0 has %d words, want 45", got)
	}
	if chunks[1].Text != strings.Join(words, " ") {
		t.Errorf("chunk 1 should carry all of chunk 0 plus the last word, got %q", chunks[1].Text)
	}
	assertOverlap(t, chunks, 50)
}

func TestChunkID(t *testing.T) {
	if ChunkID("a", "b", 0) != ChunkID("a", "b", 0) {
		t.Error("id should be deterministic")
	}
	if ChunkID("a", "b", 0) == ChunkID("a", "b", 1) {
		t.Error("index should change the id")
	}
	if len(ChunkID("a", "b", 0)) != 32 {
		t.Error("id should be a hex md5")
	}
}
