// Package qdrant implements the VectorStore contract against Qdrant's
// HTTP API. It is a thin request/response wrapper; all chunking and
// filtering decisions live in the memory package.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shadota/st-qdrant-memory/memory"
)

// Config holds connection settings. URL is required; APIKey is optional
// (self-hosted instances often run without one).
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// Store talks to one Qdrant instance.
type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New validates the configuration before any network call is made.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant: URL is not set")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("qdrant: invalid URL %q: %w", cfg.URL, err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Store{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it
// does not already exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	status, _, err := s.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	status, detail, err := s.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("create collection %q: status %d: %s", name, status, detail)
	}
	log.Printf("[QDRANT] Created collection %q (dim=%d)", name, dimensions)
	return nil
}

// UpsertPoint stores one vector with its payload.
func (s *Store) UpsertPoint(ctx context.Context, collection, id string, vector []float32, payload memory.Payload) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":      id,
				"vector":  vector,
				"payload": payload,
			},
		},
	}
	status, detail, err := s.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert into %q: status %d: %s", collection, status, detail)
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		Score   float32        `json:"score"`
		Payload memory.Payload `json:"payload"`
	} `json:"result"`
}

// Search runs a similarity search. A non-zero BeforeTimestamp becomes a
// strict less-than range condition on the stored timestamp, evaluated
// server-side.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter *memory.SearchFilter) ([]memory.ScoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}
	if conditions := filterConditions(filter); len(conditions) > 0 {
		body["filter"] = map[string]any{"must": conditions}
	}

	status, detail, err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil // collection not created yet: nothing to recall
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %q: status %d: %s", collection, status, detail)
	}

	var parsed searchResponse
	if err := json.Unmarshal(detail, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]memory.ScoredPoint, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		out = append(out, memory.ScoredPoint{Score: r.Score, Payload: r.Payload})
	}
	return out, nil
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			ID      any            `json:"id"`
			Payload memory.Payload `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// Scroll returns points matching the filter without a query vector.
func (s *Store) Scroll(ctx context.Context, collection string, filter *memory.SearchFilter) ([]memory.Point, error) {
	body := map[string]any{
		"limit":        100,
		"with_payload": true,
	}
	if conditions := filterConditions(filter); len(conditions) > 0 {
		body["filter"] = map[string]any{"must": conditions}
	}

	status, detail, err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("scroll %q: status %d: %s", collection, status, detail)
	}

	var parsed scrollResponse
	if err := json.Unmarshal(detail, &parsed); err != nil {
		return nil, fmt.Errorf("decode scroll response: %w", err)
	}

	out := make([]memory.Point, 0, len(parsed.Result.Points))
	for _, p := range parsed.Result.Points {
		out = append(out, memory.Point{ID: fmt.Sprint(p.ID), Payload: p.Payload})
	}
	return out, nil
}

// DeleteCollection removes a collection and all its points.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	status, detail, err := s.do(ctx, http.MethodDelete, "/collections/"+name, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete collection %q: status %d: %s", name, status, detail)
	}
	log.Printf("[QDRANT] Deleted collection %q", name)
	return nil
}

func filterConditions(filter *memory.SearchFilter) []map[string]any {
	if filter == nil {
		return nil
	}
	var conditions []map[string]any
	if filter.BeforeTimestamp > 0 {
		conditions = append(conditions, map[string]any{
			"key":   "timestamp",
			"range": map[string]any{"lt": filter.BeforeTimestamp},
		})
	}
	if filter.MessageID != "" {
		conditions = append(conditions, map[string]any{
			"key":   "message_ids",
			"match": map[string]any{"value": filter.MessageID},
		})
	}
	return conditions
}

// do issues one request and returns the status code and raw body.
func (s *Store) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call qdrant: %w", err)
	}
	defer resp.Body.Close()

	detail, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, detail, nil
}
