package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kosarev-dev/docpipe/internal/infrastructure/resilience"
)

// Client talks to an ollama instance for text and multimodal embeddings.
type Client struct {
	baseURL         string
	embedModel      string
	multimodalModel string
	httpClient      *http.Client
	executor        *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, embedModel, multimodalModel string) *Client {
	return NewWithOptions(baseURL, embedModel, multimodalModel, Options{})
}

func NewWithOptions(baseURL, embedModel, multimodalModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if multimodalModel == "" {
		multimodalModel = embedModel
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		embedModel:      embedModel,
		multimodalModel: multimodalModel,
		httpClient:      &http.Client{Timeout: timeout},
		executor:        options.ResilienceExecutor,
	}
}

func (c *Client) ModelID() string { return c.embedModel }

func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return c.embedWithImage(ctx, "", image, "embed_image")
}

func (c *Client) EmbedMultimodal(ctx context.Context, caption string, image []byte) ([]float32, error) {
	return c.embedWithImage(ctx, caption, image, "embed_multimodal")
}

func (c *Client) embedWithImage(ctx context.Context, caption string, image []byte, operation string) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%s: empty image payload", operation)
	}

	request := map[string]any{
		"model":  c.multimodalModel,
		"input":  caption,
		"images": []string{base64.StdEncoding.EncodeToString(image)},
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/api/embed", request, &response, operation); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%s: empty embedding result", operation)
	}
	return response.Embeddings[0], nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any, operation string) error {
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
