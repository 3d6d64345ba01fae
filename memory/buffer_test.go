package memory

import (
	"strings"
	"testing"
	"time"
)

func TestChunkBuffer_MaxSizeFlushIsSynchronous(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkMaxSize = 50
	cfg.ChunkMinSize = 40
	buf, flushed := testBuffer(cfg)

	buf.insert(bm("m1", strings.Repeat("a", 60)))

	// The flush must complete before insert returns: no timer involved.
	if len(*flushed) != 1 {
		t.Fatalf("expected synchronous flush, got %d flushes", len(*flushed))
	}
	if buf.count() != 0 || buf.size != 0 {
		t.Errorf("buffer not reset after flush: count=%d size=%d", buf.count(), buf.size)
	}
	if buf.timer != nil {
		t.Error("no timer should be outstanding after a max-size flush")
	}
}

func TestChunkBuffer_EmptyFlushIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	buf, flushed := testBuffer(cfg)

	buf.flush()
	if len(*flushed) != 0 {
		t.Fatal("flushing an empty buffer produced a chunk")
	}
	if buf.timer != nil || buf.gen != 0 {
		t.Error("empty flush must leave timer state untouched")
	}

	// Flush a real chunk, then flush again on the now-empty buffer.
	buf.insert(bm("m1", "hello there, world"))
	buf.flush()
	if len(*flushed) != 1 {
		t.Fatalf("expected one flush, got %d", len(*flushed))
	}
	gen := buf.gen
	buf.flush()
	if len(*flushed) != 1 || buf.gen != gen {
		t.Error("second flush on an empty buffer must be a no-op")
	}
}

func TestChunkBuffer_MinSizeArmsShortTimer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkMinSize = 20
	cfg.ChunkMaxSize = 10_000
	cfg.SoftTimeout = 30 * time.Millisecond
	cfg.ChunkTimeout = 10 * time.Second
	buf, flushed := testBuffer(cfg)

	buf.mu.Lock()
	buf.insert(bm("m1", strings.Repeat("a", 30)))
	if len(*flushed) != 0 {
		buf.mu.Unlock()
		t.Fatal("min-size threshold must not flush synchronously")
	}
	buf.mu.Unlock()

	time.Sleep(150 * time.Millisecond)

	buf.mu.Lock()
	defer buf.mu.Unlock()
	if len(*flushed) != 1 {
		t.Fatalf("soft timer should have flushed, got %d flushes", len(*flushed))
	}
}

func TestChunkBuffer_IdleTimerFlushes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkMinSize = 10_000
	cfg.ChunkMaxSize = 20_000
	cfg.ChunkTimeout = 30 * time.Millisecond
	buf, flushed := testBuffer(cfg)

	buf.mu.Lock()
	buf.insert(bm("m1", "short message"))
	buf.mu.Unlock()

	time.Sleep(150 * time.Millisecond)

	buf.mu.Lock()
	defer buf.mu.Unlock()
	if len(*flushed) != 1 {
		t.Fatalf("idle timer should have flushed, got %d flushes", len(*flushed))
	}
	if (*flushed)[0].MessageCount != 1 {
		t.Errorf("flushed chunk has %d messages, want 1", (*flushed)[0].MessageCount)
	}
}

func TestChunkBuffer_InsertionReplacesTimer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkMinSize = 10_000
	cfg.ChunkMaxSize = 20_000
	cfg.ChunkTimeout = 60 * time.Millisecond
	buf, flushed := testBuffer(cfg)

	buf.mu.Lock()
	buf.insert(bm("m1", "first message"))
	buf.mu.Unlock()

	time.Sleep(30 * time.Millisecond)

	buf.mu.Lock()
	buf.insert(bm("m2", "second message"))
	buf.mu.Unlock()

	// The first timer would have fired by now if it hadn't been replaced.
	time.Sleep(40 * time.Millisecond)
	buf.mu.Lock()
	if len(*flushed) != 0 {
		buf.mu.Unlock()
		t.Fatal("replaced timer fired anyway")
	}
	buf.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if len(*flushed) != 1 {
		t.Fatalf("expected exactly one flush with both messages, got %d", len(*flushed))
	}
	if (*flushed)[0].MessageCount != 2 {
		t.Errorf("chunk has %d messages, want 2", (*flushed)[0].MessageCount)
	}
}

func TestChunkBuffer_UpgradeAdjustsSize(t *testing.T) {
	cfg := DefaultConfig()
	buf, _ := testBuffer(cfg)

	m := bm("m1", "short")
	buf.insert(m)
	want := sizeOf(m)
	if buf.size != want {
		t.Fatalf("size accounting = %d, want %d", buf.size, want)
	}

	longer := bm("m1", "a much longer replacement text")
	buf.upgrade(longer)
	if buf.size != sizeOf(longer) {
		t.Errorf("upgraded size = %d, want %d", buf.size, sizeOf(longer))
	}

	buf.upgrade(bm("m1", "tiny"))
	if buf.msgs[0].Text != longer.Text {
		t.Error("shorter upgrade must be discarded")
	}
}

func TestBuildChunk_Rendering(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	msgs := []BufferedMessage{
		{MessageID: "m1", Text: "hello", Speaker: "Bob"},
		{MessageID: "m2", Text: "hi yourself", Speaker: "Alice"},
		{MessageID: "m3", Text: "how are you", Speaker: "Bob"},
	}

	chunk := buildChunk(msgs, ts)

	want := "[2024-05-01] Bob: hello\nAlice: hi yourself\nBob: how are you"
	if chunk.Text != want {
		t.Errorf("chunk text:\n got %q\nwant %q", chunk.Text, want)
	}
	if len(chunk.Speakers) != 2 || chunk.Speakers[0] != "Alice" || chunk.Speakers[1] != "Bob" {
		t.Errorf("speakers = %v, want [Alice Bob]", chunk.Speakers)
	}
	if len(chunk.MessageIDs) != 3 || chunk.MessageIDs[0] != "m1" || chunk.MessageIDs[2] != "m3" {
		t.Errorf("message ids = %v", chunk.MessageIDs)
	}
	if chunk.MessageCount != 3 || chunk.Timestamp != ts {
		t.Errorf("count=%d ts=%d", chunk.MessageCount, chunk.Timestamp)
	}
}
