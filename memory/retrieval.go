package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// retentionCutoff computes the epoch-ms boundary below which stored
// memories may be recalled. The last retain messages of the transcript
// are protected: the cutoff is the normalized timestamp of the message
// retain positions from the end. Zero means no exclusion: when retain
// is 0, the transcript is short, or the boundary message carries no
// timestamp at all.
func retentionCutoff(source TranscriptSource, retain int) int64 {
	l := source.Len()
	if retain <= 0 || l <= retain {
		return 0
	}
	msg, ok := source.At(l - retain)
	if !ok || msg.SendDate == nil {
		return 0
	}
	return NormalizeTimestamp(msg.SendDate)
}

// Recall embeds the query, applies the temporal filter, and searches
// every participant's collection, returning merged results ordered by
// score (highest first) and capped at RetrieveLimit.
func (e *Engine) Recall(ctx context.Context, query string) ([]ScoredPoint, error) {
	if !e.cfg.Enabled || query == "" {
		return nil, nil
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}

	filter := &SearchFilter{
		BeforeTimestamp: retentionCutoff(e.source, e.cfg.RetainRecentMessages),
	}

	var merged []ScoredPoint
	for _, name := range e.source.Participants() {
		points, err := e.store.Search(ctx, CollectionName(name), vector, e.cfg.RetrieveLimit, e.cfg.ScoreThreshold, filter)
		if err != nil {
			log.Printf("[MEMORY] Search failed for %q: %v", name, err)
			continue
		}
		merged = append(merged, points...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > e.cfg.RetrieveLimit {
		merged = merged[:e.cfg.RetrieveLimit]
	}

	log.Printf("[MEMORY] Recalled %d memories (cutoff=%d)", len(merged), filter.BeforeTimestamp)
	return merged, nil
}

// InjectMemories is the pre-generation hook. It builds a recall query
// from the trailing transcript window, retrieves eligible memories, and
// inserts one synthetic system-authored message MemoryPosition messages
// from the end of the transcript, mutating it in place. A transcript too
// short to query, or an empty recall, leaves it untouched.
func (e *Engine) InjectMemories(ctx context.Context, transcript *[]Message) error {
	if !e.cfg.Enabled || transcript == nil || len(*transcript) == 0 {
		return nil
	}

	query := recallQuery(*transcript, e.cfg.QueryMessageCount)
	if query == "" {
		return nil
	}

	memories, err := e.Recall(ctx, query)
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		return nil
	}

	entry := Message{
		ID:       "memory-injection",
		Text:     formatMemories(memories),
		Speaker:  "System",
		IsSystem: true,
		SendDate: time.Now().UnixMilli(),
	}

	pos := len(*transcript) - e.cfg.MemoryPosition
	if pos < 0 {
		pos = 0
	}
	if pos > len(*transcript) {
		pos = len(*transcript)
	}

	msgs := *transcript
	msgs = append(msgs, Message{})
	copy(msgs[pos+1:], msgs[pos:])
	msgs[pos] = entry
	*transcript = msgs
	return nil
}

// recallQuery joins the text of the trailing non-system messages.
func recallQuery(transcript []Message, count int) string {
	if count <= 0 {
		count = 1
	}
	var parts []string
	for i := len(transcript) - 1; i >= 0 && len(parts) < count; i-- {
		if transcript[i].IsSystem || transcript[i].Text == "" {
			continue
		}
		parts = append(parts, transcript[i].Text)
	}
	// Collected newest-first; restore transcript order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "\n")
}

// formatMemories renders recalled chunks for prompt injection.
func formatMemories(memories []ScoredPoint) string {
	var sb strings.Builder
	sb.WriteString("Relevant memories from earlier in this conversation:\n")
	for i, m := range memories {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, m.Payload.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}
