package bridge

import (
	"sync"

	"github.com/Shadota/st-qdrant-memory/memory"
)

// Transcript is a thread-safe mirror of the host application's chat,
// kept current by bridge events. It implements memory.TranscriptSource;
// the engine's finalization detector polls it between events.
type Transcript struct {
	mu           sync.RWMutex
	msgs         []memory.Message
	participants []string
}

// NewTranscript returns an empty mirror.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Len returns the current transcript length.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// At returns the message at index i, or false if out of range.
func (t *Transcript) At(i int) (memory.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.msgs) {
		return memory.Message{}, false
	}
	return t.msgs[i], true
}

// Participants returns the characters of the current chat.
func (t *Transcript) Participants() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.participants))
	copy(out, t.participants)
	return out
}

// set writes the message at index i, extending the transcript as needed.
func (t *Transcript) set(i int, msg memory.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.msgs) <= i {
		t.msgs = append(t.msgs, memory.Message{})
	}
	t.msgs[i] = msg
}

// reset replaces the transcript wholesale (chat switch).
func (t *Transcript) reset(msgs []memory.Message, participants []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = msgs
	t.participants = participants
}

// setParticipants replaces the participant list.
func (t *Transcript) setParticipants(participants []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.participants = participants
}
