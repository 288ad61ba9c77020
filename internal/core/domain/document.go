package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded        DocumentStatus = "uploaded"
	StatusProcessing      DocumentStatus = "processing"
	StatusTextExtracted   DocumentStatus = "text_extracted"
	StatusChunked         DocumentStatus = "chunked"
	StatusImagesExtracted DocumentStatus = "images_extracted"
	StatusADEProcessed    DocumentStatus = "ade_processed"
	StatusEmbedded        DocumentStatus = "embedded"
	StatusProcessed       DocumentStatus = "processed"
	StatusError           DocumentStatus = "error"
)

// DocumentType is the chunking strategy hint detected from filename and
// content, not the MIME type.
type DocumentType string

const (
	DocTypeCode      DocumentType = "code"
	DocTypeMarkdown  DocumentType = "markdown"
	DocTypeManual    DocumentType = "manual"
	DocTypeTechnical DocumentType = "technical"
	DocTypeAcademic  DocumentType = "academic"
	DocTypeGeneral   DocumentType = "general"
)

// Document is mutated only by pipeline stage transitions. Status is the
// durable source of truth for processing state; LastCompletedStage lets a
// reprocess resume instead of restarting from scratch.
type Document struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	Title              string         `json:"title"`
	Filename           string         `json:"filename"`
	MimeType           string         `json:"mime_type"`
	StoragePath        string         `json:"storage_path"`
	DocumentType       DocumentType   `json:"document_type,omitempty"`
	Status             DocumentStatus `json:"status"`
	Error              string         `json:"error,omitempty"`
	LastCompletedStage string         `json:"last_completed_stage,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ExtractedPage is one page of extracted text. Formats without a page
// concept produce a single page numbered 1.
type ExtractedPage struct {
	Number int
	Text   string
}

// PageImage is a raster extracted alongside text, kept for multimodal
// embedding of figure captions.
type PageImage struct {
	Page int
	Data []byte
}

type ExtractedText struct {
	Pages  []ExtractedPage
	Images []PageImage
}

func (e ExtractedText) Full() string {
	switch len(e.Pages) {
	case 0:
		return ""
	case 1:
		return e.Pages[0].Text
	}
	total := 0
	for _, p := range e.Pages {
		total += len(p.Text) + 1
	}
	buf := make([]byte, 0, total)
	for i, p := range e.Pages {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p.Text...)
	}
	return string(buf)
}

// ImageForPage returns the first extracted image on the given page.
func (e ExtractedText) ImageForPage(page int) ([]byte, bool) {
	for _, img := range e.Images {
		if img.Page == page {
			return img.Data, true
		}
	}
	return nil, false
}
