package ports

import (
	"context"
	"io"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/pipeline"
)

// DocumentIngestor is the inbound contract for document upload
// orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, userID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the ingestion pipeline for one document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentSearcher executes hybrid retrieval.
type DocumentSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

// DocumentManager is the inbound read/maintenance model for documents.
type DocumentManager interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Progress(ctx context.Context, id string) (pipeline.Progress, error)
	Delete(ctx context.Context, id string) error
	Reprocess(ctx context.Context, id string) error
}
