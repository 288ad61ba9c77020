// Package simulated is a deterministic stand-in for the document
// extraction service, used in development and tests. The same input
// always yields the same elements, so pipelines are reproducible.
package simulated

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

const pageHeight = 792.0 // US letter at 72 dpi

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// ExtractElements derives typed elements from page text with simple
// layout heuristics. Confidence is seeded from the content hash so runs
// are stable without being constant.
func (x *Extractor) ExtractElements(_ context.Context, _ *domain.Document, text domain.ExtractedText) ([]domain.StructuralElement, error) {
	var elements []domain.StructuralElement
	for _, page := range text.Pages {
		elements = append(elements, extractPage(page)...)
	}
	return elements, nil
}

func extractPage(page domain.ExtractedPage) []domain.StructuralElement {
	blocks := splitBlocks(page.Text)
	if len(blocks) == 0 {
		return nil
	}

	elements := make([]domain.StructuralElement, 0, len(blocks))
	blockHeight := pageHeight / float64(len(blocks)+1)
	for i, block := range blocks {
		elementType := classifyBlock(block, i)
		top := float64(i) * blockHeight
		box := domain.BBox{36, top, 576, top + blockHeight}

		elements = append(elements, domain.StructuralElement{
			Content:    block,
			Type:       elementType,
			PageNumber: page.Number,
			BBox:       &box,
			Confidence: confidenceFor(block),
		})
	}
	return elements
}

func splitBlocks(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, block := range raw {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

func classifyBlock(block string, position int) string {
	lower := strings.ToLower(block)
	switch {
	case strings.HasPrefix(lower, "figure ") || strings.HasPrefix(lower, "fig. "):
		return "figure_caption"
	case strings.HasPrefix(block, "- ") || strings.HasPrefix(block, "* ") || strings.HasPrefix(block, "• "):
		return "list_item"
	case strings.Contains(block, "\t") || strings.Contains(block, " | "):
		return "table_text"
	case position == 0 && len(block) < 120 && !strings.Contains(block, "\n"):
		return "title"
	case len(block) < 60 && !strings.ContainsAny(block, ".!?"):
		return "header"
	default:
		return "paragraph"
	}
}

// confidenceFor maps a content hash onto [0.75, 1.0).
func confidenceFor(block string) float64 {
	sum := sha256.Sum256([]byte(block))
	n := binary.BigEndian.Uint32(sum[:4])
	return 0.75 + 0.25*float64(n)/float64(1<<32)
}
