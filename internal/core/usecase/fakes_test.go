package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	statuses []domain.DocumentStatus

	createErr error
	getErr    error
	updateErr error
}

func newFakeRepo(docs ...*domain.Document) *fakeRepo {
	r := &fakeRepo{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		copied := *d
		r.docs[d.ID] = &copied
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, doc *domain.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", errors.New("no such document"))
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage, lastStage string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	if doc, ok := r.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
		if lastStage != "" {
			doc.LastCompletedStage = lastStage
		}
	}
	return nil
}

func (r *fakeRepo) SetDocumentType(_ context.Context, id string, docType domain.DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.DocumentType = docType
	}
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

func (r *fakeRepo) lastStatus() domain.DocumentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

type fakeStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string][]byte)}
}

func (s *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = raw
	return nil
}

func (s *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeQueue struct {
	mu     sync.Mutex
	events []domain.StageEvent
	err    error
}

func (q *fakeQueue) PublishStageEvent(_ context.Context, event domain.StageEvent) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *fakeQueue) SubscribeStageEvents(context.Context, func(context.Context, domain.StageEvent) error) error {
	return nil
}

type fakeTextExtractor struct {
	text domain.ExtractedText
	err  error
}

func (e *fakeTextExtractor) Extract(context.Context, *domain.Document) (domain.ExtractedText, error) {
	return e.text, e.err
}

// fakeChunker splits on blank lines, one chunk per block.
type fakeChunker struct {
	err error
}

func (c *fakeChunker) Split(text string, _ domain.ChunkHint) ([]domain.Chunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	blocks := strings.Split(text, "\n\n")
	chunks := make([]domain.Chunk, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:      "chunk-" + block[:min(8, len(block))],
			Index:   len(chunks),
			Content: block,
			Metadata: map[string]string{
				"document_type": string(domain.DocTypeGeneral),
			},
			CreatedAt: time.Now().UTC(),
		})
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "split", domain.ErrEmptyInput)
	}
	return chunks, nil
}

type fakeStructure struct {
	elements []domain.StructuralElement
	err      error
	delay    time.Duration
}

func (s *fakeStructure) ExtractElements(ctx context.Context, _ *domain.Document, _ domain.ExtractedText) ([]domain.StructuralElement, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.elements, s.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedImage(context.Context, []byte) ([]float32, error) {
	return e.vector, e.err
}

func (e *fakeEmbedder) EmbedMultimodal(context.Context, string, []byte) ([]float32, error) {
	return e.vector, e.err
}

func (e *fakeEmbedder) ModelID() string { return "fake-embed-1" }

// fakeBatcher embeds every slot with a fixed vector. failOnce holds texts
// that fail on their first embedding attempt and succeed on the next.
type fakeBatcher struct {
	mu       sync.Mutex
	vector   []float32
	failOnce map[string]bool
	failText map[string]bool
	batches  int
}

func (b *fakeBatcher) EmbedTextBatch(_ context.Context, texts []string) []domain.EmbeddingResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches++
	out := make([]domain.EmbeddingResult, len(texts))
	for i, text := range texts {
		if b.failText[text] {
			out[i] = domain.EmbeddingResult{Err: domain.ErrCapability}
			continue
		}
		if b.failOnce[text] {
			b.failOnce[text] = false
			out[i] = domain.EmbeddingResult{Err: domain.ErrTemporary}
			continue
		}
		out[i] = domain.EmbeddingResult{Vector: b.vector, Model: "fake-embed-1", TokenCount: len(text) / 4}
	}
	return out
}

func (b *fakeBatcher) EmbedMultimodalPair(_ context.Context, caption string, _ []byte) domain.EmbeddingResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failText[caption] {
		return domain.EmbeddingResult{Err: domain.ErrCapability}
	}
	return domain.EmbeddingResult{Vector: b.vector, Model: "fake-embed-1"}
}

type fakeIndex struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	searchErr  error

	replaced   map[string]int
	deleted    []string
	chunks     []domain.Chunk
	embeddings []domain.Embedding
}

func newFakeIndex(candidates ...domain.Candidate) *fakeIndex {
	return &fakeIndex{candidates: candidates, replaced: make(map[string]int)}
}

func (x *fakeIndex) ReplaceDocumentChunks(_ context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.replaced[doc.ID]++
	x.chunks = chunks
	x.embeddings = embeddings
	return nil
}

func (x *fakeIndex) DeleteDocument(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.deleted = append(x.deleted, documentID)
	return nil
}

func (x *fakeIndex) Search(_ context.Context, _ []float32, limit int, threshold float64) ([]domain.Candidate, error) {
	if x.searchErr != nil {
		return nil, x.searchErr
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]domain.Candidate, 0, len(x.candidates))
	for _, c := range x.candidates {
		if c.Similarity >= threshold {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeReranker struct {
	scores []float64
	err    error
	calls  int
}

func (r *fakeReranker) Rerank(_ context.Context, _ string, results []domain.SearchResult) ([]float64, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.scores != nil {
		return r.scores, nil
	}
	out := make([]float64, len(results))
	for i := range results {
		out[i] = results[i].Score
	}
	return out, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	hits    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return raw, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix+":") {
			delete(c.entries, key)
		}
	}
	return nil
}
