package chunking

import (
	"strconv"
	"strings"
	"testing"
	"unicode"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

func TestSplitEmptyInputFails(t *testing.T) {
	s := NewSplitter(0, 0)
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := s.Split(text, domain.ChunkHint{})
		if !domain.IsKind(err, domain.ErrEmptyInput) {
			t.Fatalf("Split(%q) error = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestSplitNonEmptyAlwaysProducesChunks(t *testing.T) {
	s := NewSplitter(100, 20)
	inputs := []string{
		"x",
		"A single short sentence.",
		strings.Repeat("word ", 500),
		"Paragraph one.\n\nParagraph two.\n\nParagraph three.",
	}
	for _, text := range inputs {
		chunks, err := s.Split(text, domain.ChunkHint{})
		if err != nil {
			t.Fatalf("Split error = %v", err)
		}
		if len(chunks) == 0 {
			t.Fatalf("Split(%.20q...) produced zero chunks", text)
		}
	}
}

func TestQualityScoresWithinBounds(t *testing.T) {
	s := NewSplitter(80, 10)
	chunks, err := s.Split(strings.Repeat("Some sentences live here. Others do not! Is that fine? ", 30), domain.ChunkHint{})
	if err != nil {
		t.Fatalf("Split error = %v", err)
	}
	for _, c := range chunks {
		if c.Quality.Coherence < 0 || c.Quality.Coherence > 1 {
			t.Fatalf("coherence %v out of [0,1]", c.Quality.Coherence)
		}
		if c.Quality.Completeness < 0 || c.Quality.Completeness > 1 {
			t.Fatalf("completeness %v out of [0,1]", c.Quality.Completeness)
		}
		if c.TokenCount < 1 {
			t.Fatalf("token count %d < 1", c.TokenCount)
		}
	}
}

// Coverage: after stripping each chunk's overlap prefix, the concatenated
// chunks must contain every non-whitespace rune of the original.
func TestSplitCoversOriginalText(t *testing.T) {
	s := NewSplitter(120, 30)
	original := "First paragraph with several words in it.\n\n" +
		"Second paragraph, also with words. It has two sentences.\n\n" +
		"Third paragraph closes the document."

	chunks, err := s.Split(original, domain.ChunkHint{})
	if err != nil {
		t.Fatalf("Split error = %v", err)
	}

	var rebuilt strings.Builder
	for _, c := range chunks {
		overlap, _ := strconv.Atoi(c.Metadata["overlap_runes"])
		runes := []rune(c.Content)
		if overlap > len(runes) {
			overlap = len(runes)
		}
		rebuilt.WriteString(string(runes[overlap:]))
		rebuilt.WriteByte(' ')
	}

	if stripSpace(rebuilt.String()) != stripSpace(original) {
		t.Fatalf("rebuilt text does not cover original:\n got %q\nwant %q",
			stripSpace(rebuilt.String()), stripSpace(original))
	}
}

func TestAdjacentChunksOverlap(t *testing.T) {
	s := NewSplitter(60, 15)
	chunks, err := s.Split(strings.Repeat("Sentences repeat here endlessly. ", 20), domain.ChunkHint{})
	if err != nil {
		t.Fatalf("Split error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		overlap, _ := strconv.Atoi(chunks[i].Metadata["overlap_runes"])
		if overlap == 0 {
			t.Fatalf("chunk %d has no overlap prefix", i)
		}
	}
}

func TestChunkIndexesMonotonic(t *testing.T) {
	s := NewSplitter(50, 10)
	chunks, err := s.Split(strings.Repeat("More filler text for splitting. ", 30), domain.ChunkHint{})
	if err != nil {
		t.Fatalf("Split error = %v", err)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestForcedCutsClearSemanticBoundary(t *testing.T) {
	s := NewSplitter(40, 0)
	// One unbroken 400-rune "sentence" forces length cutoffs.
	chunks, err := s.Split(strings.Repeat("abcdefghij", 40), domain.ChunkHint{})
	if err != nil {
		t.Fatalf("Split error = %v", err)
	}
	forced := 0
	for _, c := range chunks {
		if !c.Quality.SemanticBoundary {
			forced++
		}
	}
	if forced == 0 {
		t.Fatalf("expected at least one forced cut, got none in %d chunks", len(chunks))
	}
}

func TestMarkdownSplitsOnHeadings(t *testing.T) {
	s := NewSplitter(500, 0)
	text := "# Intro\n\nSome intro text.\n\n# Usage\n\nUsage text here.\n\n# FAQ\n\nAnswers."
	chunks, err := s.Split(text, domain.ChunkHint{Filename: "README.md"})
	if err != nil {
		t.Fatalf("Split error = %v", err)
	}
	if chunks[0].Metadata["document_type"] != string(domain.DocTypeMarkdown) {
		t.Fatalf("document_type = %s, want markdown", chunks[0].Metadata["document_type"])
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
