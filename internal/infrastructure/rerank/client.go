// Package rerank is the client for the cross-encoder rerank service.
// Search degrades gracefully without it, so every error here is
// advisory.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank returns one relevance score per result, positionally.
func (c *Client) Rerank(ctx context.Context, query string, results []domain.SearchResult) ([]float64, error) {
	if len(results) == 0 {
		return nil, nil
	}

	request := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: make([]string, len(results)),
	}
	for i, r := range results {
		request.Documents[i] = r.Content
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return nil, fmt.Errorf("rerank status: %s", resp.Status)
		}
		return nil, fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
	}

	var response rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(response.Scores) != len(results) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(response.Scores), len(results))
	}
	return response.Scores, nil
}
