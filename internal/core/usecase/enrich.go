package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

const defaultMinElementLength = 10

// Enricher tries the structural-extraction path and falls back to the
// plain chunk set on any failure. Callers never see the failure unless
// both paths fail; the plain set is the guaranteed path.
type Enricher struct {
	extractor        ports.StructureExtractor
	minElementLength int
	log              *slog.Logger
}

func NewEnricher(extractor ports.StructureExtractor, minElementLength int, log *slog.Logger) *Enricher {
	if minElementLength <= 0 {
		minElementLength = defaultMinElementLength
	}
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{
		extractor:        extractor,
		minElementLength: minElementLength,
		log:              log,
	}
}

// Enrich returns the enriched chunk set, or the plain set when the
// capability errs, times out, or yields nothing usable. The second return
// reports which path won.
func (e *Enricher) Enrich(ctx context.Context, doc *domain.Document, text domain.ExtractedText, plain []domain.Chunk) ([]domain.Chunk, bool) {
	enriched, err := e.tryStructural(ctx, doc, text)
	if err != nil {
		e.log.Warn("structural_extraction_fallback",
			"document_id", doc.ID,
			"error", err,
		)
		return plain, false
	}
	return enriched, true
}

// tryStructural is the enriched path: extract elements, map native types
// onto the fixed enumeration, drop empty/short elements, one chunk per
// retained element.
func (e *Enricher) tryStructural(ctx context.Context, doc *domain.Document, text domain.ExtractedText) ([]domain.Chunk, error) {
	if e.extractor == nil {
		return nil, domain.WrapError(domain.ErrCapability, "structural extraction",
			errNoExtractor)
	}

	elements, err := e.extractor.ExtractElements(ctx, doc, text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCapability, "structural extraction", err)
	}
	if len(elements) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyResult, "structural extraction",
			errZeroElements)
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(elements))
	for _, element := range elements {
		content := strings.TrimSpace(element.Content)
		if len(content) < e.minElementLength {
			continue
		}
		elementType := domain.MapElementType(element.Type)
		page := element.PageNumber

		chunk := domain.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			Index:       len(chunks),
			Content:     content,
			TokenCount:  estimateElementTokens(content),
			ElementType: &elementType,
			Confidence:  element.Confidence,
			Quality: domain.ChunkQuality{
				Coherence:        element.Confidence,
				Completeness:     1.0,
				SemanticBoundary: true,
			},
			CreatedAt: now,
		}
		if page > 0 {
			chunk.PageNumber = &page
		}
		if element.BBox != nil && element.BBox.Valid() {
			box := *element.BBox
			chunk.BBox = &box
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyResult, "structural extraction",
			errAllElementsFiltered)
	}
	return chunks, nil
}

var (
	errNoExtractor         = errors.New("no structure extractor configured")
	errZeroElements        = errors.New("capability returned zero elements")
	errAllElementsFiltered = errors.New("all elements below minimum length")
)

func estimateElementTokens(content string) int {
	n := len([]rune(content)) / 4
	if n < 1 {
		n = 1
	}
	return n
}
