package memory

import (
	"fmt"
	"log"
	"time"
)

// Finalization reasons, checked in this order on every poll tick.
const (
	finalizeSwapped = "swapped"  // assistant slot superseded by a user message
	finalizeStable  = "stable"   // text unchanged for StreamStableFor
	finalizeMaxWait = "max wait" // StreamMaxWait elapsed, text still changing
)

// finalizeSession tracks one in-flight assistant message whose text is
// still being incrementally revealed. At most one session is active per
// engine; starting a new one discards the old one without finalizing it.
type finalizeSession struct {
	messageID  string
	index      int
	speaker    string
	startedAt  time.Time
	lastText   string
	lastChange time.Time
	stop       chan struct{}
	done       chan struct{}
}

// WatchAssistant starts a finalization session for the streaming
// assistant message at the given transcript index. The message is polled
// until its text stabilizes, the assistant slot is superseded, or the max
// wait elapses; the settled text is then submitted to the release queue.
//
// Starting a session while another is active drops the active one
// without finalizing it; its text is lost. This mirrors the host
// behavior on rapid consecutive assistant turns; a warning is logged so
// the loss is visible.
func (e *Engine) WatchAssistant(index int) error {
	if !e.cfg.Enabled {
		return nil
	}

	msg, ok := e.source.At(index)
	if !ok {
		return fmt.Errorf("no message at index %d", index)
	}
	if msg.IsUser || msg.IsSystem {
		return fmt.Errorf("message at index %d is not an assistant message", index)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine closed")
	}
	if prev := e.session; prev != nil {
		log.Printf("[MEMORY] Superseding active finalization session for %s; its text is dropped", prev.messageID)
		close(prev.stop)
	}

	now := time.Now()
	s := &finalizeSession{
		messageID:  msg.ID,
		index:      index,
		speaker:    msg.Speaker,
		startedAt:  now,
		lastText:   msg.Text,
		lastChange: now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	e.session = s
	e.mu.Unlock()

	e.wg.Add(1)
	go e.pollSession(s)
	return nil
}

// WatchedIndex returns the transcript index of the active finalization
// session, or -1 when none is active.
func (e *Engine) WatchedIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return -1
	}
	return e.session.index
}

func (e *Engine) pollSession(s *finalizeSession) {
	defer e.wg.Done()
	defer close(s.done)

	ticker := time.NewTicker(e.cfg.StreamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if e.pollTick(s) {
				return
			}
		}
	}
}

// pollTick reads the tracked message once and applies the transition
// rules. Returns true when the session has ended.
func (e *Engine) pollTick(s *finalizeSession) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != s {
		return true // superseded between tick and lock
	}

	msg, ok := e.source.At(s.index)
	if !ok {
		// Tracked message vanished (chat switch, deletion). Nothing left
		// to finalize.
		log.Printf("[MEMORY] Streaming message %s disappeared; session abandoned", s.messageID)
		e.session = nil
		return true
	}

	now := time.Now()
	if msg.Text != s.lastText {
		s.lastText = msg.Text
		s.lastChange = now
	}

	if last, ok := e.source.At(e.source.Len() - 1); ok && last.IsUser {
		e.finalizeLocked(s, finalizeSwapped)
		return true
	}
	if now.Sub(s.lastChange) >= e.cfg.StreamStableFor {
		e.finalizeLocked(s, finalizeStable)
		return true
	}
	if now.Sub(s.startedAt) >= e.cfg.StreamMaxWait {
		e.finalizeLocked(s, finalizeMaxWait)
		return true
	}
	return false
}

// finalizeLocked submits the session's settled text to the release queue
// and, when configured, forces a flush after assistant turns. Caller
// holds the engine lock.
func (e *Engine) finalizeLocked(s *finalizeSession, reason string) {
	e.session = nil
	log.Printf("[MEMORY] Finalized streaming message %s (%s, %d chars)", s.messageID, reason, len(s.lastText))

	e.queue.observe(BufferedMessage{
		MessageID:  s.messageID,
		Text:       s.lastText,
		Speaker:    s.speaker,
		IsUser:     false,
		ObservedAt: time.Now().UnixMilli(),
	}, e.buffer)

	if e.cfg.FlushAfterAssistant && e.buffer.count() >= 2 {
		e.buffer.flush()
	}
}
