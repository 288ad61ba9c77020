package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

// Extractor renders each worksheet as a markdown table, one page per
// sheet, and collects embedded pictures for multimodal embedding.
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

	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrValidation, "parse xlsx",
			fmt.Errorf("%s: %w", doc.Filename, err))
	}
	defer workbook.Close()

	var out domain.ExtractedText
	for i, sheet := range workbook.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		pageNumber := i + 1

		text := renderSheet(workbook, sheet)
		if text != "" {
			out.Pages = append(out.Pages, domain.ExtractedPage{Number: pageNumber, Text: text})
		}

		pictures, err := workbook.GetPictures(sheet, "")
		if err == nil {
			for _, pic := range pictures {
				out.Images = append(out.Images, domain.PageImage{Page: pageNumber, Data: pic.File})
			}
		}
	}
	return out, nil
}

// renderSheet converts sheet rows into a markdown table headed by the
// sheet name, which keeps tabular context visible to the chunker.
func renderSheet(workbook *excelize.File, sheet string) string {
	rows, err := workbook.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("# " + sheet + "\n\n")
	b.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimSpace(b.String())
}
