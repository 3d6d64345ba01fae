// Package memory implements long-term conversational memory for a chat
// application: it buffers the live transcript, assembles it into bounded
// text chunks, and hands finished chunks to an embedding provider and a
// vector store for later semantic recall.
//
// The interesting parts are the decisions about time, not the I/O:
//   - Delayed release queue: a just-observed message waits a configurable
//     number of turns before it is locked into a chunk, so late edits and
//     still-streaming text are captured.
//   - Chunk buffer: size and inactivity thresholds decide when the
//     in-progress chunk is done (max-size flushes synchronously, min-size
//     arms a short timer, anything else arms the idle timer).
//   - Streaming finalization: an assistant message whose text is still
//     being revealed is polled until it stabilizes before being buffered.
//   - Retrieval temporal filter: recall excludes memories at or after the
//     timestamp of the Nth-most-recent message, so retrieved text never
//     duplicates what is already in the context window.
//
// Architecture:
//   - Engine: owns all mutable state (queue, buffer, finalization session)
//   - Embedder: text-to-vector conversion (openai HTTP, mock for tests)
//   - VectorStore: storage backend (qdrant over HTTP, chromem embedded)
//   - TranscriptSource: the host application's live message sequence
//
// All collaborator failures degrade to "memory did nothing this turn";
// nothing in this package is fatal to the host process.
package memory
