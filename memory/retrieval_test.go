package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func transcriptOfTen() *fakeSource {
	source := &fakeSource{parts: []string{"Sage"}}
	for i := 0; i < 10; i++ {
		source.append(Message{
			ID:       fmt.Sprintf("m%d", i),
			Text:     fmt.Sprintf("message number %d with some content", i),
			Speaker:  "You",
			IsUser:   true,
			SendDate: int64(1_700_000_000_000 + i*60_000),
		})
	}
	return source
}

func TestRetentionCutoff(t *testing.T) {
	source := transcriptOfTen()

	// 10 messages, retain 5: boundary is index 5.
	want := int64(1_700_000_000_000 + 5*60_000)
	if got := retentionCutoff(source, 5); got != want {
		t.Errorf("cutoff = %d, want %d", got, want)
	}

	if got := retentionCutoff(source, 0); got != 0 {
		t.Errorf("retain 0 must disable exclusion, got %d", got)
	}
	if got := retentionCutoff(source, 10); got != 0 {
		t.Errorf("transcript shorter than retain must disable exclusion, got %d", got)
	}
	if got := retentionCutoff(source, 15); got != 0 {
		t.Errorf("transcript shorter than retain must disable exclusion, got %d", got)
	}
}

func TestRetentionCutoff_MissingTimestamp(t *testing.T) {
	source := transcriptOfTen()
	source.mu.Lock()
	source.msgs[5].SendDate = nil
	source.mu.Unlock()

	if got := retentionCutoff(source, 5); got != 0 {
		t.Errorf("boundary message without a timestamp must disable exclusion, got %d", got)
	}
}

func TestRecall_PassesStrictCutoffFilter(t *testing.T) {
	store := newFakeStore()
	source := transcriptOfTen()
	cfg := DefaultConfig()
	cfg.RetainRecentMessages = 5
	e := testEngine(cfg, store, source)
	defer e.Close()

	if _, err := e.Recall(context.Background(), "what happened earlier"); err != nil {
		t.Fatalf("recall: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.lastFilter == nil {
		t.Fatal("search was called without a filter")
	}
	want := int64(1_700_000_000_000 + 5*60_000)
	if store.lastFilter.BeforeTimestamp != want {
		t.Errorf("filter cutoff = %d, want %d", store.lastFilter.BeforeTimestamp, want)
	}
}

func TestRecall_CapsMergedResults(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 8; i++ {
		store.searchResults = append(store.searchResults, ScoredPoint{
			Score:   float32(i) / 10,
			Payload: Payload{Text: fmt.Sprintf("memory %d", i)},
		})
	}
	source := transcriptOfTen()
	cfg := DefaultConfig()
	cfg.RetrieveLimit = 3
	e := testEngine(cfg, store, source)
	defer e.Close()

	got, err := e.Recall(context.Background(), "query")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("recall returned %d results, want 3", len(got))
	}
	// Highest scores first.
	if got[0].Score < got[1].Score || got[1].Score < got[2].Score {
		t.Errorf("results not ordered by score: %v", got)
	}
}

func TestInjectMemories_InsertsSyntheticEntry(t *testing.T) {
	store := newFakeStore()
	store.searchResults = []ScoredPoint{
		{Score: 0.9, Payload: Payload{Text: "[2024-01-01] You: we talked about whales"}},
	}
	source := transcriptOfTen()
	cfg := DefaultConfig()
	cfg.MemoryPosition = 2
	e := testEngine(cfg, store, source)
	defer e.Close()

	transcript := snapshotTranscript(source)
	if err := e.InjectMemories(context.Background(), &transcript); err != nil {
		t.Fatalf("inject: %v", err)
	}

	if len(transcript) != 11 {
		t.Fatalf("transcript length = %d, want 11", len(transcript))
	}
	entry := transcript[len(transcript)-3] // inserted 2 from the original end
	if !entry.IsSystem {
		t.Error("injected entry must be system-authored")
	}
	if !strings.Contains(entry.Text, "we talked about whales") {
		t.Errorf("injected entry missing memory text: %q", entry.Text)
	}
	// The two most recent live messages stay after the injection.
	if transcript[len(transcript)-1].ID != "m9" || transcript[len(transcript)-2].ID != "m8" {
		t.Error("injection displaced the trailing live messages")
	}
}

func TestInjectMemories_NoResultsLeavesTranscriptAlone(t *testing.T) {
	store := newFakeStore()
	source := transcriptOfTen()
	e := testEngine(nil, store, source)
	defer e.Close()

	transcript := snapshotTranscript(source)
	if err := e.InjectMemories(context.Background(), &transcript); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(transcript) != 10 {
		t.Errorf("empty recall must not mutate the transcript, length = %d", len(transcript))
	}
}

func TestRecallQuery_TrailingWindowInOrder(t *testing.T) {
	transcript := []Message{
		{Text: "one", IsUser: true},
		{Text: "sys note", IsSystem: true},
		{Text: "two"},
		{Text: "three", IsUser: true},
	}
	got := recallQuery(transcript, 2)
	if got != "two\nthree" {
		t.Errorf("recallQuery = %q, want %q", got, "two\nthree")
	}

	got = recallQuery(transcript, 10)
	if got != "one\ntwo\nthree" {
		t.Errorf("recallQuery = %q, want %q (system entries skipped)", got, "one\ntwo\nthree")
	}
}
