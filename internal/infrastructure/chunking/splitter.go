// Package chunking splits extracted document text into retrievable units.
//
// The splitter picks a boundary strategy from the detected document type
// and scores every chunk for coherence and completeness. It never
// produces zero chunks for non-empty input.
package chunking

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

const (
	defaultChunkSize = 900
	defaultOverlap   = 150
)

// segment is a contiguous piece of the source text produced by a boundary
// strategy. semantic is false only for forced length cutoffs.
type segment struct {
	text     string
	semantic bool
}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split is a fresh deterministic split of the given text. It fails only
// for empty input.
func (s *Splitter) Split(text string, hint domain.ChunkHint) ([]domain.Chunk, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(normalized) == "" {
		return nil, domain.WrapError(domain.ErrEmptyInput, "split text", errors.New("extracted text is empty"))
	}

	docType := hint.DocumentType
	if docType == "" {
		docType = DetectDocumentType(hint.Filename, normalized)
	}

	segments := s.segment(normalized, docType)
	grouped := s.group(segments)

	chunks := make([]domain.Chunk, 0, len(grouped))
	prevTail := ""
	for i, g := range grouped {
		content := g.text
		overlapRunes := 0
		if i > 0 && s.Overlap > 0 && prevTail != "" {
			content = prevTail + "\n" + content
			overlapRunes = len([]rune(prevTail)) + 1
		}
		prevTail = tailRunes(g.text, s.Overlap)

		chunk := domain.Chunk{
			Index:      i,
			Content:    content,
			TokenCount: estimateTokens(content),
			Quality:    scoreQuality(g.text, g.semantic),
			Metadata: map[string]string{
				"document_type": string(docType),
				"overlap_runes": strconv.Itoa(overlapRunes),
			},
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// segment applies the type-appropriate boundary strategy.
func (s *Splitter) segment(text string, docType domain.DocumentType) []segment {
	var parts []string
	switch docType {
	case domain.DocTypeCode:
		parts = splitOnBlankLines(text)
	case domain.DocTypeMarkdown, domain.DocTypeManual:
		parts = splitOnHeadings(text)
	default:
		parts = splitOnParagraphs(text)
	}

	out := make([]segment, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if runeLen(part) <= s.ChunkSize {
			out = append(out, segment{text: part, semantic: true})
			continue
		}
		out = append(out, s.splitOversized(part)...)
	}
	if len(out) == 0 {
		out = append(out, segment{text: strings.TrimSpace(text), semantic: false})
	}
	return out
}

// splitOversized breaks a segment that exceeds the chunk size, preferring
// sentence boundaries and falling back to forced rune windows.
func (s *Splitter) splitOversized(text string) []segment {
	sentences := splitSentences(text)
	out := make([]segment, 0, len(sentences))
	var b strings.Builder

	flush := func(semantic bool) {
		if b.Len() == 0 {
			return
		}
		out = append(out, segment{text: strings.TrimSpace(b.String()), semantic: semantic})
		b.Reset()
	}

	for _, sentence := range sentences {
		if runeLen(sentence) > s.ChunkSize {
			flush(true)
			for _, window := range forceWindows(sentence, s.ChunkSize) {
				out = append(out, segment{text: window, semantic: false})
			}
			continue
		}
		if runeLen(b.String())+runeLen(sentence)+1 > s.ChunkSize {
			flush(true)
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	flush(true)
	return out
}

// group packs adjacent segments into chunks up to the chunk size. A
// segment never spans two chunks.
func (s *Splitter) group(segments []segment) []segment {
	out := make([]segment, 0, len(segments))
	var b strings.Builder
	semantic := true

	flush := func() {
		if b.Len() == 0 {
			return
		}
		out = append(out, segment{text: b.String(), semantic: semantic})
		b.Reset()
		semantic = true
	}

	for _, seg := range segments {
		if b.Len() > 0 && runeLen(b.String())+runeLen(seg.text)+2 > s.ChunkSize {
			flush()
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(seg.text)
		semantic = semantic && seg.semantic
	}
	flush()
	return out
}

var headingRe = regexp.MustCompile(`(?mi)^(#{1,6}\s+\S|step\s+\d+|chapter\s+\d+|section\s+\d+(\.\d+)*[.:)\s])`)

func splitOnHeadings(text string) []string {
	locs := headingRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return splitOnParagraphs(text)
	}
	var parts []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			parts = append(parts, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	parts = append(parts, text[prev:])
	return parts
}

func splitOnParagraphs(text string) []string {
	return regexp.MustCompile(`\n\s*\n`).Split(text, -1)
}

func splitOnBlankLines(text string) []string {
	return splitOnParagraphs(text)
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

func splitSentences(text string) []string {
	marked := sentenceEndRe.ReplaceAllString(text, "$1\x00")
	raw := strings.Split(marked, "\x00")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func forceWindows(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			out = append(out, window)
		}
	}
	return out
}

// scoreQuality approximates how well the chunk reads as a complete
// thought via sentence-boundary alignment at both ends.
func scoreQuality(text string, semantic bool) domain.ChunkQuality {
	startsClean := startsAtBoundary(text)
	endsClean := endsAtBoundary(text)

	coherence := 0.5
	if startsClean {
		coherence += 0.25
	}
	if endsClean {
		coherence += 0.25
	}

	completeness := 0.2
	switch {
	case startsClean && endsClean:
		completeness = 1.0
	case startsClean || endsClean:
		completeness = 0.6
	}

	return domain.ChunkQuality{
		Coherence:        clamp01(coherence),
		Completeness:     clamp01(completeness),
		SemanticBoundary: semantic,
	}
}

func startsAtBoundary(text string) bool {
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '#' || r == '-' || r == '*' || r == '`'
	}
	return false
}

func endsAtBoundary(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ':', '`', ')', '"':
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// estimateTokens approximates subword token counts at ~4 runes per token.
func estimateTokens(text string) int {
	n := runeLen(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
