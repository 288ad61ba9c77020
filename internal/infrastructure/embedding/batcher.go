// Package embedding converts chunk text into vectors in rate-limited
// batches so a slow or flaky provider never stalls the whole pipeline.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

const (
	defaultBatchSize   = 10
	defaultConcurrency = 2
	defaultRateLimit   = rate.Limit(4)

	// Multimodal calls carry image payloads and cost more on the
	// provider side, so each one consumes extra limiter tokens.
	multimodalTokenCost = 2

	embeddingCacheTTL = 24 * time.Hour
)

type BatcherOptions struct {
	BatchSize   int
	Concurrency int
	RateLimit   rate.Limit
	Burst       int
}

// Batcher groups texts into provider batches, caps the request rate, and
// reports per-slot outcomes in input order. A cache hit on the content
// hash skips the provider entirely for that slot.
type Batcher struct {
	provider ports.EmbeddingProvider
	cache    ports.Cache
	limiter  *rate.Limiter
	opts     BatcherOptions
	log      *slog.Logger
}

func NewBatcher(provider ports.EmbeddingProvider, cache ports.Cache, opts BatcherOptions, log *slog.Logger) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.BatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		provider: provider,
		cache:    cache,
		limiter:  rate.NewLimiter(opts.RateLimit, opts.Burst),
		opts:     opts,
		log:      log,
	}
}

// EmbedTextBatch embeds every text and returns one result per input slot,
// in input order. Failures are recorded per slot, never returned as a
// batch-level error, so the caller can retry only what failed.
func (b *Batcher) EmbedTextBatch(ctx context.Context, texts []string) []domain.EmbeddingResult {
	results := make([]domain.EmbeddingResult, len(texts))
	if len(texts) == 0 {
		return results
	}

	pending := b.fillFromCache(ctx, texts, results)
	if len(pending) == 0 {
		return results
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.opts.Concurrency)

	for start := 0; start < len(pending); start += b.opts.BatchSize {
		end := start + b.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		group.Go(func() error {
			batchTexts := make([]string, len(batch))
			for i, idx := range batch {
				batchTexts[i] = texts[idx]
			}

			if err := b.limiter.WaitN(groupCtx, len(batch)); err != nil {
				b.recordBatchError(&mu, results, batch, err)
				return nil
			}
			vectors, err := b.provider.EmbedTexts(groupCtx, batchTexts)
			if err != nil {
				b.recordBatchError(&mu, results, batch, err)
				return nil
			}
			if len(vectors) != len(batch) {
				b.recordBatchError(&mu, results, batch,
					domain.WrapError(domain.ErrCapability, "embed batch",
						errCountMismatch(len(vectors), len(batch))))
				return nil
			}

			mu.Lock()
			for i, idx := range batch {
				results[idx] = domain.EmbeddingResult{
					Vector:     vectors[i],
					TokenCount: estimateTokens(batchTexts[i]),
					Model:      b.provider.ModelID(),
				}
			}
			mu.Unlock()

			for i, idx := range batch {
				b.storeInCache(ctx, texts[idx], vectors[i])
			}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// EmbedMultimodalPair embeds one caption+image pair. Image payloads pay a
// higher limiter cost than plain text slots.
func (b *Batcher) EmbedMultimodalPair(ctx context.Context, caption string, image []byte) domain.EmbeddingResult {
	if err := b.limiter.WaitN(ctx, multimodalTokenCost); err != nil {
		return domain.EmbeddingResult{Err: err}
	}
	vector, err := b.provider.EmbedMultimodal(ctx, caption, image)
	if err != nil {
		return domain.EmbeddingResult{Err: err}
	}
	return domain.EmbeddingResult{
		Vector:     vector,
		TokenCount: estimateTokens(caption),
		Model:      b.provider.ModelID(),
	}
}

// fillFromCache resolves cache hits in place and returns the indexes that
// still need the provider.
func (b *Batcher) fillFromCache(ctx context.Context, texts []string, results []domain.EmbeddingResult) []int {
	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if b.cache == nil {
			pending = append(pending, i)
			continue
		}
		raw, ok, err := b.cache.Get(ctx, contentKey(text))
		if err != nil || !ok {
			pending = append(pending, i)
			continue
		}
		var vector []float32
		if err := json.Unmarshal(raw, &vector); err != nil || len(vector) == 0 {
			pending = append(pending, i)
			continue
		}
		results[i] = domain.EmbeddingResult{
			Vector:     vector,
			TokenCount: estimateTokens(text),
			Model:      b.provider.ModelID(),
		}
	}
	return pending
}

func (b *Batcher) storeInCache(ctx context.Context, text string, vector []float32) {
	if b.cache == nil {
		return
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := b.cache.Set(ctx, contentKey(text), raw, embeddingCacheTTL); err != nil {
		b.log.Warn("embedding_cache_write_failed", "error", err)
	}
}

func (b *Batcher) recordBatchError(mu *sync.Mutex, results []domain.EmbeddingResult, batch []int, err error) {
	b.log.Warn("embedding_batch_failed", "slots", len(batch), "error", err)
	mu.Lock()
	defer mu.Unlock()
	for _, idx := range batch {
		results[idx] = domain.EmbeddingResult{Err: err}
	}
}

// contentKey addresses embeddings by content hash, so re-chunked documents
// reuse vectors for unchanged text.
func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func estimateTokens(text string) int {
	n := len([]rune(text)) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func errCountMismatch(got, want int) error {
	return fmt.Errorf("got %d vectors for %d inputs", got, want)
}
