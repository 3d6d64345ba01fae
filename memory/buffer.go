package memory

import (
	"sync"
	"time"
)

// chunkBuffer accumulates released messages into the in-progress chunk.
// Insertion triggers, in priority order:
//
//  1. size >= ChunkMaxSize: flush immediately, before insert returns
//  2. size >= ChunkMinSize: (re)arm the short SoftTimeout timer
//  3. otherwise: (re)arm the long ChunkTimeout idle timer
//
// Only one timer is ever outstanding; every insertion replaces it. The
// timer generation counter keeps a stale callback from flushing a newer
// buffer generation.
//
// Methods other than timerFlush are called with mu already held. onFlush
// receives the built chunk after buffer state has been reset, so the
// persistence it dispatches can never see stale messages.
type chunkBuffer struct {
	mu  *sync.Mutex
	cfg *Config

	msgs []BufferedMessage
	size int

	timer *time.Timer
	gen   uint64

	onFlush func(Chunk)
}

func newChunkBuffer(mu *sync.Mutex, cfg *Config, onFlush func(Chunk)) *chunkBuffer {
	return &chunkBuffer{mu: mu, cfg: cfg, onFlush: onFlush}
}

func (b *chunkBuffer) insert(m BufferedMessage) {
	b.msgs = append(b.msgs, m)
	b.size += sizeOf(m)

	switch {
	case b.size >= b.cfg.ChunkMaxSize:
		b.flush()
	case b.size >= b.cfg.ChunkMinSize:
		b.armTimer(b.cfg.SoftTimeout)
	default:
		b.armTimer(b.cfg.ChunkTimeout)
	}
}

// upgrade applies monotonic-length-wins to a message already in the
// buffer. Shorter or equal text is discarded silently.
func (b *chunkBuffer) upgrade(m BufferedMessage) {
	for i := range b.msgs {
		if b.msgs[i].MessageID != m.MessageID {
			continue
		}
		if len(m.Text) > len(b.msgs[i].Text) {
			b.size += len(m.Text) - len(b.msgs[i].Text)
			b.msgs[i].Text = m.Text
			b.msgs[i].ObservedAt = m.ObservedAt
		}
		return
	}
}

func (b *chunkBuffer) contains(id string) bool {
	for _, m := range b.msgs {
		if m.MessageID == id {
			return true
		}
	}
	return false
}

func (b *chunkBuffer) count() int {
	return len(b.msgs)
}

// flush renders the buffer into a Chunk stamped with the flush time,
// resets buffer and timer state, then hands the chunk to onFlush.
// Flushing an empty buffer is a no-op.
func (b *chunkBuffer) flush() {
	if len(b.msgs) == 0 {
		return
	}

	chunk := buildChunk(b.msgs, time.Now().UnixMilli())
	b.msgs = nil
	b.size = 0
	b.cancelTimer()

	b.onFlush(chunk)
}

func (b *chunkBuffer) armTimer(d time.Duration) {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(d, func() { b.timerFlush(gen) })
}

// timerFlush is the only entry point that takes the lock itself; it runs
// on the timer goroutine.
func (b *chunkBuffer) timerFlush(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return // replaced or cancelled since it was armed
	}
	b.flush()
}

func (b *chunkBuffer) cancelTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

func (b *chunkBuffer) reset() {
	b.msgs = nil
	b.size = 0
	b.cancelTimer()
}
