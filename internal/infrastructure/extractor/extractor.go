// Package extractor routes a stored document to the format-specific
// text extractor by extension, with MIME type as the fallback signal.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
	xlsx  ports.TextExtractor
}

func NewDispatcher(plain, pdf, xlsx ports.TextExtractor) *Dispatcher {
	return &Dispatcher{plain: plain, pdf: pdf, xlsx: xlsx}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	target := d.pick(doc)
	if target == nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrValidation, "extract text",
			fmt.Errorf("unsupported format: %s (%s)", doc.Filename, doc.MimeType))
	}
	return target.Extract(ctx, doc)
}

func (d *Dispatcher) pick(doc *domain.Document) ports.TextExtractor {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return d.pdf
	case ".xlsx", ".xlsm":
		return d.xlsx
	case ".txt", ".md", ".markdown", ".csv", ".log", ".json", ".yaml", ".yml",
		".go", ".py", ".js", ".ts", ".java", ".rs", ".c", ".h", ".sh":
		return d.plain
	}

	switch strings.ToLower(doc.MimeType) {
	case "application/pdf":
		return d.pdf
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return d.xlsx
	}
	if strings.HasPrefix(doc.MimeType, "text/") {
		return d.plain
	}
	return nil
}
