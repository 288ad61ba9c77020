package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

const (
	// candidateMultiplier controls how many index hits are pulled before
	// facet filtering trims them down to the requested limit.
	candidateMultiplier = 4
	minCandidates       = 30

	defaultResultTTL     = 5 * time.Minute
	defaultQueryEmbedTTL = 30 * time.Minute

	// multiStepPageBoost rewards candidates sharing a page with the first
	// pass's leaders during multi-step refinement.
	multiStepPageBoost = 0.05
	multiStepLeaders   = 3
)

type SearchEngineOptions struct {
	ResultTTL     time.Duration
	QueryEmbedTTL time.Duration
}

// SearchEngine executes hybrid retrieval: cached query embedding, vector
// candidates, lexical blending, conjunctive facet filters, optional
// rerank, deterministic ordering, result caching.
type SearchEngine struct {
	embedder ports.EmbeddingProvider
	index    ports.ChunkIndex
	reranker ports.Reranker
	cache    ports.Cache
	opts     SearchEngineOptions
	observer SearchObserver
	log      *slog.Logger
}

// SearchObserver receives retrieval metrics. The API binds it to
// prometheus; tests leave it nil.
type SearchObserver interface {
	ObserveSearch(searchType string, duration time.Duration, resultCount int)
	CacheHit()
	CacheMiss()
	RerankFailed()
}

// SetObserver attaches search metrics. Must be called before Search.
func (e *SearchEngine) SetObserver(observer SearchObserver) {
	e.observer = observer
}

func NewSearchEngine(
	embedder ports.EmbeddingProvider,
	index ports.ChunkIndex,
	reranker ports.Reranker,
	cache ports.Cache,
	opts SearchEngineOptions,
	log *slog.Logger,
) *SearchEngine {
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = defaultResultTTL
	}
	if opts.QueryEmbedTTL <= 0 {
		opts.QueryEmbedTTL = defaultQueryEmbedTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &SearchEngine{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		cache:    cache,
		opts:     opts,
		log:      log,
	}
}

func (e *SearchEngine) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	start := time.Now()

	resultKey := cacheKey(cachePrefixSearch, req)
	if cached, ok := e.cachedResponse(ctx, resultKey); ok {
		if e.observer != nil {
			e.observer.CacheHit()
		}
		return cached, nil
	}
	if e.observer != nil {
		e.observer.CacheMiss()
	}

	queryVector, err := e.queryEmbedding(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	candidateLimit := req.Limit * candidateMultiplier
	if candidateLimit < minCandidates {
		candidateLimit = minCandidates
	}
	candidates, err := e.index.Search(ctx, queryVector, candidateLimit, req.Threshold)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	filtered, applied := applyFacets(candidates, req.Facets)
	results := e.score(req, filtered)

	if req.SearchType == domain.SearchMultiStep {
		results = refineByPage(results)
	}

	useRerank := *req.UseRerank || req.SearchType == domain.SearchContextAware
	if useRerank && e.reranker != nil && len(results) > 0 {
		e.applyRerank(ctx, req.Query, results)
	}

	sortResults(results)
	total := len(results)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	response := &domain.SearchResponse{
		Results:      results,
		TotalResults: total,
		SearchTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Facets: domain.FacetSummary{
			Applied:   applied,
			Available: facetNames,
		},
	}
	e.storeResponse(ctx, resultKey, response)
	if e.observer != nil {
		e.observer.ObserveSearch(string(req.SearchType), time.Since(start), len(results))
	}
	return response, nil
}

// queryEmbedding returns the query vector, cached by query-text hash.
func (e *SearchEngine) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := cacheKey(cachePrefixEmbedding, "query", query)
	if e.cache != nil {
		if raw, ok, err := e.cache.Get(ctx, key); err == nil && ok {
			var vector []float32
			if err := json.Unmarshal(raw, &vector); err == nil && len(vector) > 0 {
				return vector, nil
			}
		} else if err != nil {
			e.log.Warn("query_embedding_cache_read_failed", "error", err)
		}
	}

	vectors, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCapability, "embed query", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, domain.WrapError(domain.ErrCapability, "embed query",
			fmt.Errorf("expected 1 vector, got %d", len(vectors)))
	}

	if e.cache != nil {
		if raw, err := json.Marshal(vectors[0]); err == nil {
			if err := e.cache.Set(ctx, key, raw, e.opts.QueryEmbedTTL); err != nil {
				e.log.Warn("query_embedding_cache_write_failed", "error", err)
			}
		}
	}
	return vectors[0], nil
}

// score blends vector similarity with the lexical match per the search
// type. Vector-only requests keep raw similarity as the score.
func (e *SearchEngine) score(req domain.SearchRequest, candidates []domain.Candidate) []domain.SearchResult {
	queryTokens := toTokenSet(req.Query)
	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		result := domain.SearchResult{
			ChunkID:       c.Chunk.ID,
			DocumentID:    c.Chunk.DocumentID,
			DocumentTitle: c.DocumentTitle,
			ChunkIndex:    c.Chunk.Index,
			Content:       c.Chunk.Content,
			Similarity:    c.Similarity,
			ElementType:   c.Chunk.ElementType,
			PageNumber:    c.Chunk.PageNumber,
			BBox:          c.Chunk.BBox,
			Metadata:      c.Chunk.Metadata,
		}
		if req.SearchType == domain.SearchVector {
			result.Score = c.Similarity
		} else {
			result.TextScore = tokenOverlap(queryTokens, toTokenSet(c.Chunk.Content))
			result.Score = CombineScores(*req.VectorWeight, *req.TextWeight, c.Similarity, result.TextScore)
		}
		results = append(results, result)
	}
	return results
}

// CombineScores blends vector similarity and lexical score with the given
// weights. Weights are not required to sum to 1.
func CombineScores(vectorWeight, textWeight, similarity, textScore float64) float64 {
	return vectorWeight*similarity + textWeight*textScore
}

// refineByPage is the multi-step second pass: candidates sharing a page
// with the current leaders get a fixed boost before final ordering.
func refineByPage(results []domain.SearchResult) []domain.SearchResult {
	if len(results) <= multiStepLeaders {
		return results
	}
	ordered := make([]domain.SearchResult, len(results))
	copy(ordered, results)
	sortResults(ordered)

	hotPages := make(map[int]struct{}, multiStepLeaders)
	for _, r := range ordered[:multiStepLeaders] {
		if r.PageNumber != nil {
			hotPages[*r.PageNumber] = struct{}{}
		}
	}
	if len(hotPages) == 0 {
		return results
	}
	for i := range results {
		if results[i].PageNumber == nil {
			continue
		}
		if _, ok := hotPages[*results[i].PageNumber]; ok {
			results[i].Score += multiStepPageBoost
		}
	}
	return results
}

// applyRerank asks the secondary relevance capability for scores and
// attaches them in place. A capability failure degrades to the blended
// ordering instead of failing the query.
func (e *SearchEngine) applyRerank(ctx context.Context, query string, results []domain.SearchResult) {
	scores, err := e.reranker.Rerank(ctx, query, results)
	if err != nil {
		if e.observer != nil {
			e.observer.RerankFailed()
		}
		e.log.Warn("rerank_degraded", "error", err)
		return
	}
	if len(scores) != len(results) {
		if e.observer != nil {
			e.observer.RerankFailed()
		}
		e.log.Warn("rerank_degraded", "error",
			fmt.Errorf("score count %d != result count %d", len(scores), len(results)))
		return
	}
	for i := range results {
		score := scores[i]
		results[i].RerankScore = &score
	}
}

// sortResults orders deterministically: rerank score first when present,
// blended score next, then chunk ordinal ascending and document id
// ascending so identical inputs always reproduce the same ordering.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i], results[j]
		iScore, jScore := ri.Score, rj.Score
		if ri.RerankScore != nil && rj.RerankScore != nil {
			if *ri.RerankScore != *rj.RerankScore {
				return *ri.RerankScore > *rj.RerankScore
			}
		} else if ri.RerankScore != nil || rj.RerankScore != nil {
			return ri.RerankScore != nil
		}
		if iScore != jScore {
			return iScore > jScore
		}
		if ri.ChunkIndex != rj.ChunkIndex {
			return ri.ChunkIndex < rj.ChunkIndex
		}
		return ri.DocumentID < rj.DocumentID
	})
}

func (e *SearchEngine) cachedResponse(ctx context.Context, key string) (*domain.SearchResponse, bool) {
	if e.cache == nil {
		return nil, false
	}
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn("search_cache_read_failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var response domain.SearchResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		e.log.Warn("search_cache_decode_failed", "error", err)
		return nil, false
	}
	return &response, true
}

func (e *SearchEngine) storeResponse(ctx context.Context, key string, response *domain.SearchResponse) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.opts.ResultTTL); err != nil {
		e.log.Warn("search_cache_write_failed", "error", err)
	}
}
