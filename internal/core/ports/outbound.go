package ports

import (
	"context"
	"io"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

// DocumentRepository persists and reads document state. The status column
// is the durable source of truth for pipeline progress.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage, lastStage string) error
	SetDocumentType(ctx context.Context, id string, docType domain.DocumentType) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries stage-transition events between the API and the
// processing workers.
type MessageQueue interface {
	PublishStageEvent(ctx context.Context, event domain.StageEvent) error
	SubscribeStageEvents(ctx context.Context, handler func(context.Context, domain.StageEvent) error) error
}

// TextExtractor extracts page-aware plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error)
}

// Chunker splits text into retrievable chunks with quality metrics.
type Chunker interface {
	Split(text string, hint domain.ChunkHint) ([]domain.Chunk, error)
}

// StructureExtractor is the ADE capability: typed, positioned elements
// from a document. Callers must treat any error or empty element set as a
// signal to fall back to plain chunking.
type StructureExtractor interface {
	ExtractElements(ctx context.Context, doc *domain.Document, text domain.ExtractedText) ([]domain.StructuralElement, error)
}

// EmbeddingProvider builds vectors for text, images, and caption+image
// pairs.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	EmbedMultimodal(ctx context.Context, caption string, image []byte) ([]float32, error)
	ModelID() string
}

// EmbeddingBatcher converts items into vectors in rate-limited batches.
// Output order always matches input order; failures are captured per slot
// so the caller can retry only the failed subset.
type EmbeddingBatcher interface {
	EmbedTextBatch(ctx context.Context, texts []string) []domain.EmbeddingResult
	EmbedMultimodalPair(ctx context.Context, caption string, image []byte) domain.EmbeddingResult
}

// Reranker is the secondary relevance capability. Scores are positional
// over the given results; a failure degrades the search, never fails it.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []domain.SearchResult) ([]float64, error)
}

// Cache is the shared TTL cache. Keys are namespaced
// "<prefix>:<stable-hash>"; entries are immutable for their lifetime.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// ChunkIndex stores chunks with their embeddings and serves similarity
// search. ReplaceDocumentChunks must be atomic per document: readers never
// observe a mixed old/new chunk set.
type ChunkIndex interface {
	ReplaceDocumentChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, queryVector []float32, limit int, threshold float64) ([]domain.Candidate, error)
}
