// Package memorystore is an in-memory chunk index for development and
// tests. Search is a brute-force cosine scan.
package memorystore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

type docEntry struct {
	title   string
	docType domain.DocumentType
	date    time.Time
	chunks  []indexedChunk
}

type indexedChunk struct {
	chunk  domain.Chunk
	vector []float32
}

type Store struct {
	mu   sync.RWMutex
	docs map[string]*docEntry
}

func New() *Store {
	return &Store{docs: make(map[string]*docEntry)}
}

func (s *Store) ReplaceDocumentChunks(_ context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	vectors := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		// Text vectors drive retrieval; multimodal ones ride along on
		// the same chunk and are not separately searchable here.
		if e.Type == domain.EmbeddingText || e.Type == "" {
			vectors[e.ChunkID] = e.Vector
		}
	}

	entry := &docEntry{
		title:   doc.Title,
		docType: doc.DocumentType,
		date:    doc.CreatedAt,
		chunks:  make([]indexedChunk, 0, len(chunks)),
	}
	for _, chunk := range chunks {
		entry.chunks = append(entry.chunks, indexedChunk{
			chunk:  chunk,
			vector: vectors[chunk.ID],
		})
	}

	s.mu.Lock()
	s.docs[doc.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	delete(s.docs, documentID)
	s.mu.Unlock()
	return nil
}

func (s *Store) Search(_ context.Context, queryVector []float32, limit int, threshold float64) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []domain.Candidate
	for _, entry := range s.docs {
		for _, ic := range entry.chunks {
			if len(ic.vector) == 0 {
				continue
			}
			similarity := cosine(queryVector, ic.vector)
			if similarity < threshold {
				continue
			}
			candidates = append(candidates, domain.Candidate{
				Chunk:         ic.chunk,
				DocumentTitle: entry.title,
				DocumentType:  entry.docType,
				DocumentDate:  entry.date,
				Similarity:    similarity,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		if candidates[i].Chunk.DocumentID != candidates[j].Chunk.DocumentID {
			return candidates[i].Chunk.DocumentID < candidates[j].Chunk.DocumentID
		}
		return candidates[i].Chunk.Index < candidates[j].Chunk.Index
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
