// Package chromem implements the VectorStore contract on chromem-go, an
// embedded pure-Go vector database. It serves local development and
// tests; production setups point at Qdrant instead.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Shadota/st-qdrant-memory/memory"
)

// Store wraps a chromem DB. Because chromem cannot scan points without a
// query vector, the store keeps a payload mirror per collection to serve
// Scroll (existence checks during backfill).
type Store struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	points      map[string]map[string]memory.Payload // collection -> id -> payload
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		points:      make(map[string]map[string]memory.Payload),
	}
}

// EnsureCollection creates the collection if it does not exist yet. The
// dimension argument is unused: chromem infers it from the first vector.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	s.mu.RLock()
	_, exists := s.collections[name]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[name]; exists {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	s.collections[name] = col
	s.points[name] = make(map[string]memory.Payload)
	return nil
}

// UpsertPoint stores one vector with its payload.
func (s *Store) UpsertPoint(ctx context.Context, collection, id string, vector []float32, payload memory.Payload) error {
	s.mu.Lock()
	col, ok := s.collections[collection]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   payload.Text,
		Embedding: vector,
		Metadata: map[string]string{
			"speakers":      strings.Join(payload.Speakers, ","),
			"message_ids":   strings.Join(payload.MessageIDs, ","),
			"message_count": strconv.Itoa(payload.MessageCount),
			"timestamp":     strconv.FormatInt(payload.Timestamp, 10),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.mu.Lock()
	s.points[collection][id] = payload
	s.mu.Unlock()
	return nil
}

// Search queries by embedding, then applies the score threshold and the
// strict less-than timestamp filter client-side.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter *memory.SearchFilter) ([]memory.ScoredPoint, error) {
	s.mu.RLock()
	col, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, nil // nothing stored yet, nothing to recall
	}

	// chromem rejects nResults above the collection size.
	n := limit
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	var out []memory.ScoredPoint
	for _, r := range results {
		if r.Similarity < scoreThreshold {
			continue
		}
		payload := payloadFromResult(r)
		if filter != nil && filter.BeforeTimestamp > 0 && payload.Timestamp >= filter.BeforeTimestamp {
			continue
		}
		out = append(out, memory.ScoredPoint{Score: r.Similarity, Payload: payload})
	}

	log.Printf("[CHROMEM] Search in %q: %d/%d results kept", collection, len(out), len(results))
	return out, nil
}

// Scroll returns stored points matching the filter, served from the
// payload mirror.
func (s *Store) Scroll(ctx context.Context, collection string, filter *memory.SearchFilter) ([]memory.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mirror, ok := s.points[collection]
	if !ok {
		return nil, nil
	}

	var out []memory.Point
	for id, payload := range mirror {
		if filter != nil {
			if filter.BeforeTimestamp > 0 && payload.Timestamp >= filter.BeforeTimestamp {
				continue
			}
			if filter.MessageID != "" && !containsID(payload.MessageIDs, filter.MessageID) {
				continue
			}
		}
		out = append(out, memory.Point{ID: id, Payload: payload})
	}
	return out, nil
}

// DeleteCollection removes a collection and its mirror.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection %q: %w", name, err)
	}
	delete(s.collections, name)
	delete(s.points, name)
	return nil
}

func payloadFromResult(r chromem.Result) memory.Payload {
	count, _ := strconv.Atoi(r.Metadata["message_count"])
	ts, _ := strconv.ParseInt(r.Metadata["timestamp"], 10, 64)
	return memory.Payload{
		Text:         r.Content,
		Speakers:     splitNonEmpty(r.Metadata["speakers"]),
		MessageIDs:   splitNonEmpty(r.Metadata["message_ids"]),
		MessageCount: count,
		Timestamp:    ts,
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
