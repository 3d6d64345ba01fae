// Package openai implements the Embedder interface against any
// OpenAI-compatible /v1/embeddings endpoint (OpenAI itself, or local
// servers exposing the same shape).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.openai.com/v1/embeddings"

// Config holds provider settings. APIKey and Model are required;
// Endpoint defaults to the OpenAI embeddings URL.
type Config struct {
	APIKey     string
	Model      string
	Endpoint   string
	Dimensions int
	HTTPClient *http.Client
}

// Embedder calls an OpenAI-compatible embeddings API.
type Embedder struct {
	apiKey     string
	model      string
	endpoint   string
	dimensions int
	client     *http.Client
}

// New validates the configuration before any network call is made.
// Missing credentials or endpoint are configuration errors, reported
// immediately rather than on first use.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai embedder: model is not set")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "http") {
		return nil, fmt.Errorf("openai embedder: invalid endpoint %q", endpoint)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536 // text-embedding-3-small
	}
	return &Embedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   endpoint,
		dimensions: dims,
		client:     client,
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed requests a single embedding. A response with no usable vector is
// rejected as malformed rather than returned empty.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embeddings API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("embeddings API returned %d: %s", resp.StatusCode, string(detail))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings API returned no vector")
	}
	return parsed.Data[0].Embedding, nil
}

// Dimensions returns the configured embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
