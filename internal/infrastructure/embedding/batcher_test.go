package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type stubProvider struct {
	mu      sync.Mutex
	calls   [][]string
	failOn  string
	vector  []float32
	mmErr   error
	mmCalls int
}

func (p *stubProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, texts)
	for _, t := range texts {
		if t == p.failOn {
			return nil, errors.New("provider rejected batch")
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = p.vector
	}
	return out, nil
}

func (p *stubProvider) EmbedImage(context.Context, []byte) ([]float32, error) {
	return p.vector, nil
}

func (p *stubProvider) EmbedMultimodal(context.Context, string, []byte) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mmCalls++
	if p.mmErr != nil {
		return nil, p.mmErr
	}
	return p.vector, nil
}

func (p *stubProvider) ModelID() string { return "stub-embed" }

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	return raw, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix+":") {
			delete(c.entries, key)
		}
	}
	return nil
}

func testOptions() BatcherOptions {
	return BatcherOptions{
		BatchSize:   3,
		Concurrency: 2,
		RateLimit:   rate.Inf,
	}
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "chunk content number " + string(rune('a'+i))
	}
	return out
}

func TestEmbedTextBatchPreservesOrder(t *testing.T) {
	provider := &stubProvider{vector: []float32{0.5, 0.5}}
	batcher := NewBatcher(provider, nil, testOptions(), nil)

	input := texts(7)
	results := batcher.EmbedTextBatch(context.Background(), input)
	if len(results) != 7 {
		t.Fatalf("got %d results, want 7", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("slot %d failed: %v", i, r.Err)
		}
		if len(r.Vector) != 2 {
			t.Errorf("slot %d vector length %d", i, len(r.Vector))
		}
		if r.Model != "stub-embed" {
			t.Errorf("slot %d model %q", i, r.Model)
		}
	}
	// 7 inputs at batch size 3 means 3 provider calls.
	if len(provider.calls) != 3 {
		t.Fatalf("provider calls = %d, want 3", len(provider.calls))
	}
}

func TestEmbedTextBatchRecordsPerSlotFailures(t *testing.T) {
	provider := &stubProvider{vector: []float32{1}, failOn: "poison"}
	batcher := NewBatcher(provider, nil, testOptions(), nil)

	input := []string{"fine one", "fine two", "fine three", "poison", "after poison"}
	results := batcher.EmbedTextBatch(context.Background(), input)

	// First batch of three succeeds; the second batch holds the poison
	// text and fails as a unit.
	for i := 0; i < 3; i++ {
		if results[i].Err != nil {
			t.Errorf("slot %d should succeed: %v", i, results[i].Err)
		}
	}
	for i := 3; i < 5; i++ {
		if results[i].Err == nil {
			t.Errorf("slot %d should carry the batch failure", i)
		}
	}
}

func TestEmbedTextBatchUsesCache(t *testing.T) {
	provider := &stubProvider{vector: []float32{0.25}}
	cache := newMapCache()
	batcher := NewBatcher(provider, cache, testOptions(), nil)

	input := texts(4)
	first := batcher.EmbedTextBatch(context.Background(), input)
	for i, r := range first {
		if r.Err != nil {
			t.Fatalf("slot %d: %v", i, r.Err)
		}
	}
	callsAfterFirst := len(provider.calls)

	second := batcher.EmbedTextBatch(context.Background(), input)
	for i, r := range second {
		if r.Err != nil {
			t.Fatalf("cached slot %d: %v", i, r.Err)
		}
		if len(r.Vector) != 1 {
			t.Errorf("cached slot %d vector length %d", i, len(r.Vector))
		}
	}
	if len(provider.calls) != callsAfterFirst {
		t.Fatalf("cached run hit the provider: %d calls, had %d", len(provider.calls), callsAfterFirst)
	}
}

func TestEmbedTextBatchEmptyInput(t *testing.T) {
	batcher := NewBatcher(&stubProvider{vector: []float32{1}}, nil, testOptions(), nil)
	if results := batcher.EmbedTextBatch(context.Background(), nil); len(results) != 0 {
		t.Fatalf("got %d results for empty input", len(results))
	}
}

func TestEmbedMultimodalPair(t *testing.T) {
	provider := &stubProvider{vector: []float32{0.1, 0.2}}
	batcher := NewBatcher(provider, nil, testOptions(), nil)

	result := batcher.EmbedMultimodalPair(context.Background(), "Figure 1: diagram", []byte{1, 2, 3})
	if result.Err != nil {
		t.Fatalf("EmbedMultimodalPair: %v", result.Err)
	}
	if len(result.Vector) != 2 {
		t.Errorf("vector length %d", len(result.Vector))
	}
	if provider.mmCalls != 1 {
		t.Errorf("multimodal calls = %d", provider.mmCalls)
	}
}

func TestEmbedMultimodalPairFailure(t *testing.T) {
	provider := &stubProvider{mmErr: errors.New("model missing")}
	batcher := NewBatcher(provider, nil, testOptions(), nil)

	result := batcher.EmbedMultimodalPair(context.Background(), "caption", []byte{1})
	if result.Err == nil {
		t.Fatal("expected failure to surface in the slot")
	}
}

func TestEmbedTextBatchDeduplicatesAcrossRuns(t *testing.T) {
	provider := &stubProvider{vector: []float32{1}}
	cache := newMapCache()
	batcher := NewBatcher(provider, cache, testOptions(), nil)

	batcher.EmbedTextBatch(context.Background(), []string{"shared text", "unique one"})
	provider.mu.Lock()
	callsBefore := len(provider.calls)
	provider.mu.Unlock()

	results := batcher.EmbedTextBatch(context.Background(), []string{"shared text", "unique two"})
	if results[0].Err != nil || results[1].Err != nil {
		t.Fatalf("unexpected errors: %v %v", results[0].Err, results[1].Err)
	}
	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.calls) != callsBefore+1 {
		t.Fatalf("expected one extra provider call for the miss, got %d total", len(provider.calls))
	}
	if len(provider.calls[len(provider.calls)-1]) != 1 {
		t.Fatal("cached text should not reach the provider")
	}
}
