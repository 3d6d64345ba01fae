package memory

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Engine owns all mutable memory state: the delayed release queue, the
// chunk buffer, and the active finalization session. The host feeds it
// message events; it feeds the vector store finished chunks.
//
// A single mutex stands in for the host's event loop: every state
// transition happens under it, and persistence I/O is dispatched on
// separate goroutines after buffer state has already been reset.
type Engine struct {
	mu       sync.Mutex
	cfg      *Config
	store    VectorStore
	embedder Embedder
	source   TranscriptSource

	queue   releaseQueue
	buffer  *chunkBuffer
	session *finalizeSession

	wg     sync.WaitGroup
	closed bool
}

// NewEngine creates an engine. A nil config means DefaultConfig.
func NewEngine(store VectorStore, embedder Embedder, source TranscriptSource, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		source:   source,
		queue:    releaseQueue{delay: cfg.MessageDelay},
	}
	e.buffer = newChunkBuffer(&e.mu, cfg, e.dispatchChunk)
	return e
}

// ObserveMessage stages one transcript message for chunking. Safe to
// call repeatedly for the same message ID: only strictly longer text
// replaces what is already staged.
func (e *Engine) ObserveMessage(msg Message) {
	if !e.cfg.Enabled || msg.IsSystem || msg.Text == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.queue.observe(BufferedMessage{
		MessageID:  msg.ID,
		Text:       msg.Text,
		Speaker:    msg.Speaker,
		IsUser:     msg.IsUser,
		ObservedAt: NormalizeTimestamp(msg.SendDate),
	}, e.buffer)
}

// Flush forces the in-progress chunk out immediately.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer.flush()
}

// Reset discards all staged state: pending queue, buffer contents, the
// outstanding flush timer, and any active finalization session. Nothing
// is persisted.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.queue.reset()
	e.buffer.reset()
	if e.session != nil {
		close(e.session.stop)
		e.session = nil
	}
}

// Close resets the engine and waits for in-flight persistence to settle.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.resetLocked()
	e.mu.Unlock()
	e.wg.Wait()
}

// dispatchChunk is the buffer's flush sink. The buffer has already been
// cleared by the time it runs, so persistence failures cannot be retried
// against the original contents; that chunk's text is simply lost.
// Called with the engine lock held; the I/O happens off-lock.
func (e *Engine) dispatchChunk(chunk Chunk) {
	if e.closed {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.persistChunk(context.Background(), chunk)
	}()
}

// persistChunk embeds a chunk once and fans the upsert out to every chat
// participant's collection. The flush counts as successful when at least
// one participant write succeeds; individual failures are logged.
func (e *Engine) persistChunk(ctx context.Context, chunk Chunk) bool {
	participants := e.source.Participants()
	if len(participants) == 0 {
		log.Printf("[MEMORY] No participants; chunk of %d messages dropped", chunk.MessageCount)
		return false
	}

	vector, err := e.embedder.Embed(ctx, chunk.Text)
	if err != nil || len(vector) == 0 {
		log.Printf("[MEMORY] Embedding failed, chunk of %d messages dropped: %v", chunk.MessageCount, err)
		return false
	}

	payload := chunk.Payload()
	results := make(chan error, len(participants))
	for _, name := range participants {
		go func(name string) {
			results <- e.upsertFor(ctx, name, vector, payload)
		}(name)
	}

	succeeded := 0
	for range participants {
		if err := <-results; err != nil {
			log.Printf("[MEMORY] Persist failed for one participant: %v", err)
		} else {
			succeeded++
		}
	}

	if succeeded == 0 {
		log.Printf("[MEMORY] Chunk of %d messages lost: all %d participant writes failed", chunk.MessageCount, len(participants))
		return false
	}
	log.Printf("[MEMORY] Stored chunk (%d messages, %d chars) for %d/%d participants",
		chunk.MessageCount, len(chunk.Text), succeeded, len(participants))
	return true
}

func (e *Engine) upsertFor(ctx context.Context, participant string, vector []float32, payload Payload) error {
	collection := CollectionName(participant)
	if err := e.store.EnsureCollection(ctx, collection, e.embedder.Dimensions()); err != nil {
		return err
	}
	return e.store.UpsertPoint(ctx, collection, uuid.New().String(), vector, payload)
}

// Purge deletes every participant's memory collection.
func (e *Engine) Purge(ctx context.Context) error {
	var firstErr error
	for _, name := range e.source.Participants() {
		if err := e.store.DeleteCollection(ctx, CollectionName(name)); err != nil {
			log.Printf("[MEMORY] Purge failed for %q: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// CollectionName maps a participant name to its vector store collection.
func CollectionName(participant string) string {
	var sb strings.Builder
	sb.WriteString("memory_")
	for _, r := range strings.ToLower(participant) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// IndexHistory runs the deterministic batch path over the entire live
// transcript: assemble chunks with the same size thresholds as live
// buffering, skip chunks whose leading message is already stored, and
// persist the rest synchronously.
func (e *Engine) IndexHistory(ctx context.Context) (int, error) {
	if !e.cfg.Enabled {
		return 0, nil
	}

	msgs := snapshotTranscript(e.source)
	chunks := AssembleHistory(msgs, e.cfg)
	if len(chunks) == 0 {
		return 0, nil
	}

	stored := 0
	for _, chunk := range chunks {
		exists, err := e.chunkExists(ctx, chunk)
		if err != nil {
			log.Printf("[MEMORY] Existence check failed, indexing anyway: %v", err)
		}
		if exists {
			continue
		}
		if e.persistChunk(ctx, chunk) {
			stored++
		}
	}
	log.Printf("[MEMORY] Backfill indexed %d/%d chunks", stored, len(chunks))
	return stored, nil
}

// chunkExists reports whether the chunk's leading message has already
// been indexed for any participant.
func (e *Engine) chunkExists(ctx context.Context, chunk Chunk) (bool, error) {
	if len(chunk.MessageIDs) == 0 {
		return false, nil
	}
	filter := &SearchFilter{MessageID: chunk.MessageIDs[0]}
	var firstErr error
	for _, name := range e.source.Participants() {
		points, err := e.store.Scroll(ctx, CollectionName(name), filter)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(points) > 0 {
			return true, nil
		}
	}
	return false, firstErr
}

func snapshotTranscript(source TranscriptSource) []Message {
	msgs := make([]Message, 0, source.Len())
	for i := 0; i < source.Len(); i++ {
		if m, ok := source.At(i); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}
