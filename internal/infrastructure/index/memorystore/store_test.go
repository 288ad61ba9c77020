package memorystore

import (
	"context"
	"testing"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

func indexedDoc(t *testing.T, s *Store, docID string, vectors ...[]float32) {
	t.Helper()
	doc := &domain.Document{ID: docID, Title: "Doc " + docID}
	chunks := make([]domain.Chunk, len(vectors))
	embeddings := make([]domain.Embedding, len(vectors))
	for i, v := range vectors {
		chunkID := docID + "-c" + string(rune('0'+i))
		chunks[i] = domain.Chunk{ID: chunkID, DocumentID: docID, Index: i, Content: "content"}
		embeddings[i] = domain.Embedding{ChunkID: chunkID, Vector: v, Type: domain.EmbeddingText}
	}
	if err := s.ReplaceDocumentChunks(context.Background(), doc, chunks, embeddings); err != nil {
		t.Fatalf("ReplaceDocumentChunks: %v", err)
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	s := New()
	indexedDoc(t, s, "a", []float32{1, 0}, []float32{0, 1})

	candidates, err := s.Search(context.Background(), []float32{1, 0}, 10, 0.0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates", len(candidates))
	}
	if candidates[0].Chunk.ID != "a-c0" {
		t.Fatalf("best match = %s", candidates[0].Chunk.ID)
	}
	if candidates[0].Similarity < 0.99 {
		t.Errorf("identical vector similarity = %v", candidates[0].Similarity)
	}
}

func TestSearchThresholdFilters(t *testing.T) {
	s := New()
	indexedDoc(t, s, "a", []float32{1, 0}, []float32{0, 1})

	candidates, err := s.Search(context.Background(), []float32{1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("orthogonal vector should be filtered, got %d", len(candidates))
	}
}

func TestReplaceIsAtomicPerDocument(t *testing.T) {
	s := New()
	indexedDoc(t, s, "a", []float32{1, 0}, []float32{1, 0}, []float32{1, 0})
	indexedDoc(t, s, "a", []float32{1, 0})

	candidates, _ := s.Search(context.Background(), []float32{1, 0}, 10, 0.0)
	if len(candidates) != 1 {
		t.Fatalf("old chunks survived replace: %d candidates", len(candidates))
	}
}

func TestDeleteDocument(t *testing.T) {
	s := New()
	indexedDoc(t, s, "a", []float32{1, 0})
	indexedDoc(t, s, "b", []float32{1, 0})

	if err := s.DeleteDocument(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	candidates, _ := s.Search(context.Background(), []float32{1, 0}, 10, 0.0)
	if len(candidates) != 1 || candidates[0].Chunk.DocumentID != "b" {
		t.Fatalf("unexpected candidates after delete: %+v", candidates)
	}
}

func TestSearchLimit(t *testing.T) {
	s := New()
	indexedDoc(t, s, "a", []float32{1, 0}, []float32{1, 0}, []float32{1, 0})

	candidates, _ := s.Search(context.Background(), []float32{1, 0}, 2, 0.0)
	if len(candidates) != 2 {
		t.Fatalf("limit ignored: %d candidates", len(candidates))
	}
}
