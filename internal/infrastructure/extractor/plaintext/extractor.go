package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

// Extractor reads utf-8 text formats. They have no page concept, so the
// whole document becomes a single page numbered 1.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrValidation, "extract text",
			fmt.Errorf("not valid utf-8: %s", doc.Filename))
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.ExtractedText{}, nil
	}
	return domain.ExtractedText{
		Pages: []domain.ExtractedPage{{Number: 1, Text: text}},
	}, nil
}
