package memory

// AssembleHistory applies the live chunking thresholds to an entire
// historical transcript at once, deterministically and without timers. System
// messages, messages below MinMessageLength, and role-excluded messages
// are skipped. A working chunk flushes before appending a message that
// would push it over ChunkMaxSize, or right after a message that brings
// it to ChunkMinSize with at least three members; any remainder flushes
// at the end.
//
// Unlike the live path, each chunk is stamped with the oldest normalized
// timestamp among its members, so backfilled memories date from when
// they were said, not when they were indexed.
func AssembleHistory(msgs []Message, cfg *Config) []Chunk {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var chunks []Chunk
	var current []BufferedMessage
	size := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(current, oldestTimestamp(current)))
		current = nil
		size = 0
	}

	for _, msg := range msgs {
		if msg.IsSystem || len(msg.Text) < cfg.MinMessageLength {
			continue
		}
		if msg.IsUser && !cfg.IndexUserMessages {
			continue
		}
		if !msg.IsUser && !cfg.IndexAssistantMessages {
			continue
		}

		bm := BufferedMessage{
			MessageID:  msg.ID,
			Text:       msg.Text,
			Speaker:    msg.Speaker,
			IsUser:     msg.IsUser,
			ObservedAt: NormalizeTimestamp(msg.SendDate),
		}

		if len(current) > 0 && size+sizeOf(bm) > cfg.ChunkMaxSize {
			flush()
		}

		current = append(current, bm)
		size += sizeOf(bm)

		if size >= cfg.ChunkMinSize && len(current) >= 3 {
			flush()
		}
	}

	flush()
	return chunks
}

func oldestTimestamp(msgs []BufferedMessage) int64 {
	oldest := msgs[0].ObservedAt
	for _, m := range msgs[1:] {
		if m.ObservedAt < oldest {
			oldest = m.ObservedAt
		}
	}
	return oldest
}
