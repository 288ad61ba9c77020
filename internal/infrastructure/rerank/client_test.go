package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

func results(contents ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(contents))
	for i, c := range contents {
		out[i] = domain.SearchResult{ChunkID: c, Content: c}
	}
	return out
}

func TestRerankReturnsPositionalScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "the query" || len(req.Documents) != 2 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": []float64{0.2, 0.9}})
	}))
	defer server.Close()

	client := New(server.URL, "cross-encoder-v1", time.Second)
	scores, err := client.Rerank(context.Background(), "the query", results("one", "two"))
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scores) != 2 || scores[1] != 0.9 {
		t.Fatalf("scores = %v", scores)
	}
}

func TestRerankRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"scores": []float64{0.5}})
	}))
	defer server.Close()

	client := New(server.URL, "", time.Second)
	if _, err := client.Rerank(context.Background(), "q", results("one", "two")); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestRerankSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "", time.Second)
	if _, err := client.Rerank(context.Background(), "q", results("one")); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestRerankEmptyResults(t *testing.T) {
	client := New("http://unused", "", time.Second)
	scores, err := client.Rerank(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("empty input should short-circuit: %v %v", scores, err)
	}
}
