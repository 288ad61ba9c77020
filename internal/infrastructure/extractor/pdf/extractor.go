package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	ledpdf "github.com/ledongthuc/pdf"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

// Extractor pulls text out of PDF documents page by page, preserving
// page numbers for downstream chunk attribution.
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

	pdfReader, err := ledpdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrValidation, "parse pdf",
			fmt.Errorf("%s: %w", doc.Filename, err))
	}

	var out domain.ExtractedText
	total := pdfReader.NumPage()
	for number := 1; number <= total; number++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		page := pdfReader.Page(number)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out.Pages = append(out.Pages, domain.ExtractedPage{Number: number, Text: text})
	}
	return out, nil
}
