package memory

import "context"

// Message is one entry of the host application's live transcript.
// SendDate is whatever the host recorded (epoch seconds, epoch millis,
// a time.Time, or a human-formatted string) and is only ever read
// through NormalizeTimestamp.
type Message struct {
	ID       string
	Text     string
	Speaker  string
	IsUser   bool
	IsSystem bool
	SendDate any
}

// TranscriptSource exposes the host application's live ordered message
// sequence and the participants of the current chat. Implementations are
// expected to be cheap to poll; the finalization detector reads from it
// every poll tick.
type TranscriptSource interface {
	// Len returns the current transcript length.
	Len() int

	// At returns the message at index i (0 = oldest), or false if the
	// index is out of range (the transcript may shrink on chat switch).
	At(i int) (Message, bool)

	// Participants returns the characters taking part in the current
	// chat. Each participant gets its own copy of every persisted chunk.
	Participants() []string
}

// Embedder converts text to vector embeddings.
// Implementations live under memory/embedder: openai (HTTP), mock
// (testing), cache (ristretto decorator around either).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Payload is the stored form of a chunk, sent to the vector store
// alongside its embedding and returned by searches.
type Payload struct {
	Text         string   `json:"text"`
	Speakers     []string `json:"speakers"`
	MessageIDs   []string `json:"message_ids"`
	MessageCount int      `json:"message_count"`
	Timestamp    int64    `json:"timestamp"` // epoch ms
}

// SearchFilter restricts which stored points a search or scroll may
// return. The zero value matches everything.
type SearchFilter struct {
	// BeforeTimestamp, when non-zero, excludes every point whose stored
	// timestamp is at or after this epoch-ms instant (strict less-than).
	BeforeTimestamp int64

	// MessageID, when non-empty, matches only points whose payload
	// contains this message id. Used for existence checks.
	MessageID string
}

// ScoredPoint is one search result.
type ScoredPoint struct {
	Score   float32
	Payload Payload
}

// Point is one stored point as returned by Scroll.
type Point struct {
	ID      string
	Payload Payload
}

// VectorStore is the storage backend contract. Implementations live
// under memory/store: qdrant (HTTP) and chromem (embedded, local/dev).
type VectorStore interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dimensions int) error

	// UpsertPoint stores one vector with its payload.
	UpsertPoint(ctx context.Context, collection, id string, vector []float32, payload Payload) error

	// Search returns up to limit points ordered by similarity (highest
	// first), honoring the score threshold and filter.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter *SearchFilter) ([]ScoredPoint, error)

	// Scroll returns points matching the filter without a query vector.
	Scroll(ctx context.Context, collection string, filter *SearchFilter) ([]Point, error)

	// DeleteCollection removes a collection and all its points.
	DeleteCollection(ctx context.Context, name string) error
}
