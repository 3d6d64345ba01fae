package memory

import "time"

// Config holds Engine tuning. A nil Config passed to NewEngine means
// DefaultConfig.
type Config struct {
	// Enabled toggles the memory system on/off.
	Enabled bool

	// MessageDelay is how many subsequent messages must arrive before a
	// just-observed message is released to the chunk buffer. The lag
	// gives late edits a window to be captured.
	MessageDelay int

	// ChunkMinSize is the accumulated size at which the buffer arms the
	// short (SoftTimeout) flush timer.
	ChunkMinSize int

	// ChunkMaxSize is the accumulated size at which the buffer flushes
	// immediately, before the insert call returns.
	ChunkMaxSize int

	// SoftTimeout is the flush delay once ChunkMinSize is reached.
	SoftTimeout time.Duration

	// ChunkTimeout is the idle flush delay below ChunkMinSize.
	ChunkTimeout time.Duration

	// FlushAfterAssistant forces a flush when a streaming assistant
	// message finalizes and the buffer already holds at least two
	// messages.
	FlushAfterAssistant bool

	// StreamPollInterval is how often the finalization detector re-reads
	// a streaming assistant message.
	StreamPollInterval time.Duration

	// StreamStableFor is how long the text must stay unchanged before
	// the message counts as finished.
	StreamStableFor time.Duration

	// StreamMaxWait force-finalizes a session that never stabilizes.
	StreamMaxWait time.Duration

	// RetainRecentMessages is how many trailing transcript messages are
	// protected from recall: memories at or after the timestamp of the
	// message RetainRecentMessages from the end are excluded. 0 disables
	// the exclusion.
	RetainRecentMessages int

	// QueryMessageCount is how many trailing messages form the recall
	// query text.
	QueryMessageCount int

	// RetrieveLimit caps how many memories one recall may inject.
	RetrieveLimit int

	// ScoreThreshold is the minimum similarity for recall [0.0-1.0].
	ScoreThreshold float32

	// MemoryPosition is where the synthetic memory message is inserted:
	// this many messages from the end of the transcript.
	MemoryPosition int

	// MinMessageLength drops short messages from batch indexing.
	MinMessageLength int

	// IndexUserMessages / IndexAssistantMessages select which roles the
	// batch indexer considers.
	IndexUserMessages      bool
	IndexAssistantMessages bool
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		MessageDelay:           2,
		ChunkMinSize:           1200,
		ChunkMaxSize:           1500,
		SoftTimeout:            5 * time.Second,
		ChunkTimeout:           30 * time.Second,
		FlushAfterAssistant:    false,
		StreamPollInterval:     250 * time.Millisecond,
		StreamStableFor:        1200 * time.Millisecond,
		StreamMaxWait:          300 * time.Second,
		RetainRecentMessages:   5,
		QueryMessageCount:      3,
		RetrieveLimit:          5,
		ScoreThreshold:         0.5,
		MemoryPosition:         2,
		MinMessageLength:       10,
		IndexUserMessages:      true,
		IndexAssistantMessages: true,
	}
}
