// Package cache decorates any Embedder with a ristretto in-process
// cache. Recall queries and length-upgraded chunks frequently embed the
// same text twice; the cache turns the repeat into a map lookup instead
// of a network call.
package cache

import (
	"context"
	"log"

	"github.com/dgraph-io/ristretto"

	"github.com/Shadota/st-qdrant-memory/memory"
)

// Embedder wraps an inner embedder with a text-keyed vector cache.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner. maxCostBytes bounds the cache by the summed byte size
// of cached vectors; <= 0 defaults to 32 MiB.
func New(inner memory.Embedder, maxCostBytes int64) (*Embedder, error) {
	if maxCostBytes <= 0 {
		maxCostBytes = 32 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text if present, otherwise embeds
// through the inner provider and caches the result. Inner failures are
// never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if !e.cache.Set(text, vec, int64(len(vec)*4)) {
		log.Printf("[MEMORY] Embedding cache rejected entry (%d chars)", len(text))
	}
	return vec, nil
}

// Dimensions returns the inner embedder's size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Test helper.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
