package memory

import (
	"sort"
	"strings"
)

// BufferedMessage is one transcript message staged for chunking. It stays
// mutable until its chunk flushes: a later observation of the same ID
// with strictly longer text replaces the earlier one, shorter or equal
// observations are discarded.
type BufferedMessage struct {
	MessageID  string
	Text       string
	Speaker    string
	IsUser     bool
	ObservedAt int64 // epoch ms
}

// sizeOf is the accounting used by both the live buffer and the batch
// assembler: text plus speaker label plus 4 for the ": " separator and
// line break.
func sizeOf(m BufferedMessage) int {
	return len(m.Text) + len(m.Speaker) + 4
}

// Chunk is a bounded, date-labeled block of speaker-attributed text,
// persisted as one embedding unit. Immutable once built.
type Chunk struct {
	Text         string
	Speakers     []string
	MessageIDs   []string
	MessageCount int
	Timestamp    int64 // epoch ms
}

// Payload converts the chunk to its stored form.
func (c Chunk) Payload() Payload {
	return Payload{
		Text:         c.Text,
		Speakers:     c.Speakers,
		MessageIDs:   c.MessageIDs,
		MessageCount: c.MessageCount,
		Timestamp:    c.Timestamp,
	}
}

// buildChunk renders staged messages into a Chunk. The text is one
// "speaker: text" line per message, newline-joined and trimmed, prefixed
// with the date derived from timestamp. The caller picks the timestamp:
// flush time on the live path, oldest member on the batch path.
func buildChunk(msgs []BufferedMessage, timestamp int64) Chunk {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(FormatDate(timestamp))
	sb.WriteString("] ")

	var lines []string
	speakers := make(map[string]struct{})
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Speaker+": "+m.Text)
		speakers[m.Speaker] = struct{}{}
		ids = append(ids, m.MessageID)
	}
	sb.WriteString(strings.TrimSpace(strings.Join(lines, "\n")))

	names := make([]string, 0, len(speakers))
	for name := range speakers {
		names = append(names, name)
	}
	sort.Strings(names)

	return Chunk{
		Text:         sb.String(),
		Speakers:     names,
		MessageIDs:   ids,
		MessageCount: len(msgs),
		Timestamp:    timestamp,
	}
}
