// Package postgres stores chunks and their embeddings in postgres with
// the pgvector extension. Replacing a document's chunk set happens in
// one transaction, so readers never see a mixed old/new set.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

const defaultDimensions = 768

type Store struct {
	db         *sql.DB
	dimensions int
}

func NewStore(db *sql.DB, dimensions int) *Store {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &Store{db: db, dimensions: dimensions}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_index INT NOT NULL,
	content TEXT NOT NULL,
	token_count INT NOT NULL DEFAULT 0,
	element_type TEXT,
	page_number INT,
	bbox JSONB,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	coherence DOUBLE PRECISION NOT NULL DEFAULT 0,
	completeness DOUBLE PRECISION NOT NULL DEFAULT 0,
	semantic_boundary BOOLEAN NOT NULL DEFAULT FALSE,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	embedding_type TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	dimensions INT NOT NULL,
	embedding vector(%d) NOT NULL,
	PRIMARY KEY (chunk_id, embedding_type)
);

CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_cosine
	ON chunk_embeddings USING hnsw (embedding vector_cosine_ops);
`, s.dimensions)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) ReplaceDocumentChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		if err := insertChunk(ctx, tx, chunk); err != nil {
			return err
		}
	}
	for _, embedding := range embeddings {
		if err := insertEmbedding(ctx, tx, embedding); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, chunk domain.Chunk) error {
	var elementType sql.NullString
	if chunk.ElementType != nil {
		elementType = sql.NullString{String: string(*chunk.ElementType), Valid: true}
	}
	var pageNumber sql.NullInt32
	if chunk.PageNumber != nil {
		pageNumber = sql.NullInt32{Int32: int32(*chunk.PageNumber), Valid: true}
	}
	var bboxJSON any
	if chunk.BBox != nil {
		raw, err := json.Marshal(chunk.BBox)
		if err != nil {
			return fmt.Errorf("marshal bbox: %w", err)
		}
		bboxJSON = raw
	}
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshal chunk metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO chunks (
	id, document_id, chunk_index, content, token_count, element_type, page_number, bbox,
	confidence, coherence, completeness, semantic_boundary, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, chunk.TokenCount,
		elementType, pageNumber, bboxJSON,
		chunk.Confidence, chunk.Quality.Coherence, chunk.Quality.Completeness,
		chunk.Quality.SemanticBoundary, metadataJSON, chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func insertEmbedding(ctx context.Context, tx *sql.Tx, embedding domain.Embedding) error {
	embeddingType := embedding.Type
	if embeddingType == "" {
		embeddingType = domain.EmbeddingText
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO chunk_embeddings (chunk_id, embedding_type, model, dimensions, embedding)
VALUES ($1,$2,$3,$4,$5)
`,
		embedding.ChunkID, string(embeddingType), embedding.Model, embedding.Dimensions,
		pgvector.NewVector(embedding.Vector),
	)
	if err != nil {
		return fmt.Errorf("insert embedding for chunk %s: %w", embedding.ChunkID, err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Search returns chunks ordered by cosine similarity to the query
// vector, at or above the threshold, joined with document context.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int, threshold float64) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count,
	c.element_type, c.page_number, c.bbox,
	c.confidence, c.coherence, c.completeness, c.semantic_boundary, c.metadata, c.created_at,
	d.title, d.document_type, d.created_at,
	1 - (e.embedding <=> $1) AS similarity
FROM chunk_embeddings e
JOIN chunks c ON c.id = e.chunk_id
JOIN documents d ON d.id = c.document_id
WHERE e.embedding_type = 'text'
	AND 1 - (e.embedding <=> $1) >= $2
ORDER BY e.embedding <=> $1
LIMIT $3
`, pgvector.NewVector(queryVector), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return candidates, nil
}

func scanCandidate(rows *sql.Rows) (domain.Candidate, error) {
	var c domain.Candidate
	var elementType sql.NullString
	var pageNumber sql.NullInt32
	var bboxRaw, metadataRaw []byte
	var documentType string

	err := rows.Scan(
		&c.Chunk.ID, &c.Chunk.DocumentID, &c.Chunk.Index, &c.Chunk.Content, &c.Chunk.TokenCount,
		&elementType, &pageNumber, &bboxRaw,
		&c.Chunk.Confidence, &c.Chunk.Quality.Coherence, &c.Chunk.Quality.Completeness,
		&c.Chunk.Quality.SemanticBoundary, &metadataRaw, &c.Chunk.CreatedAt,
		&c.DocumentTitle, &documentType, &c.DocumentDate,
		&c.Similarity,
	)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}

	if elementType.Valid {
		et := domain.ElementType(elementType.String)
		c.Chunk.ElementType = &et
	}
	if pageNumber.Valid {
		page := int(pageNumber.Int32)
		c.Chunk.PageNumber = &page
	}
	if len(bboxRaw) > 0 {
		var box domain.BBox
		if err := json.Unmarshal(bboxRaw, &box); err != nil {
			return domain.Candidate{}, fmt.Errorf("unmarshal bbox: %w", err)
		}
		c.Chunk.BBox = &box
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &c.Chunk.Metadata); err != nil {
			return domain.Candidate{}, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	c.DocumentType = domain.DocumentType(documentType)
	return c, nil
}
