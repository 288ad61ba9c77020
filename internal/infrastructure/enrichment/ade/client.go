// Package ade is the HTTP client for the advanced document extraction
// service. Any failure here is recoverable: the caller falls back to
// plain chunking.
package ade

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
	"github.com/kosarev-dev/docpipe/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type parseRequest struct {
	DocumentID string      `json:"document_id"`
	Filename   string      `json:"filename"`
	MimeType   string      `json:"mime_type"`
	Pages      []parsePage `json:"pages"`
}

type parsePage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type parseResponse struct {
	Elements []parsedElement `json:"elements"`
}

type parsedElement struct {
	Text       string     `json:"text"`
	Type       string     `json:"type"`
	Page       int        `json:"page"`
	BBox       []float64  `json:"bbox,omitempty"`
	Confidence float64    `json:"confidence"`
}

func (c *Client) ExtractElements(ctx context.Context, doc *domain.Document, text domain.ExtractedText) ([]domain.StructuralElement, error) {
	request := parseRequest{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		MimeType:   doc.MimeType,
		Pages:      make([]parsePage, 0, len(text.Pages)),
	}
	for _, page := range text.Pages {
		request.Pages = append(request.Pages, parsePage{Number: page.Number, Text: page.Text})
	}

	var response parseResponse
	call := func(ctx context.Context) error {
		return c.post(ctx, "/v1/parse", request, &response)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ade.parse", call, classifyADEError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	elements := make([]domain.StructuralElement, 0, len(response.Elements))
	for _, e := range response.Elements {
		element := domain.StructuralElement{
			Content:    e.Text,
			Type:       e.Type,
			PageNumber: e.Page,
			Confidence: e.Confidence,
		}
		if len(e.BBox) == 4 {
			box := domain.BBox{e.BBox[0], e.BBox[1], e.BBox[2], e.BBox[3]}
			if box.Valid() {
				element.BBox = &box
			}
		}
		elements = append(elements, element)
	}
	return elements, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ade parse request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{code: resp.StatusCode, status: resp.Status, body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode parse response: %w", err)
	}
	return nil
}
