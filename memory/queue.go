package memory

// releaseQueue holds freshly observed messages for MessageDelay
// subsequent turns before they are released to the chunk buffer. The lag
// lets a message that is still being edited or streamed pick up its
// final text before being locked into a chunk.
//
// Invariant: a message ID lives in at most one of {pending, buffer}.
// All methods are called with the engine lock held.
type releaseQueue struct {
	delay   int
	pending []BufferedMessage
}

// observe stages a message. A pending entry with the same ID is replaced
// only when the new text is strictly longer (monotonic-length-wins); an
// entry already released to the buffer receives the same length-upgrade
// rule there. After staging, every pending entry beyond the delay window
// is released oldest-first.
func (q *releaseQueue) observe(m BufferedMessage, buf *chunkBuffer) {
	if i := q.index(m.MessageID); i >= 0 {
		if len(m.Text) > len(q.pending[i].Text) {
			q.pending[i] = m
		}
	} else if buf.contains(m.MessageID) {
		buf.upgrade(m)
	} else {
		q.pending = append(q.pending, m)
	}
	q.release(buf)
}

// release feeds the oldest pending entries to the buffer until at most
// delay entries remain.
func (q *releaseQueue) release(buf *chunkBuffer) {
	for len(q.pending) > q.delay {
		head := q.pending[0]
		q.pending = q.pending[1:]
		buf.insert(head)
	}
}

func (q *releaseQueue) index(id string) int {
	for i, m := range q.pending {
		if m.MessageID == id {
			return i
		}
	}
	return -1
}

func (q *releaseQueue) reset() {
	q.pending = nil
}
