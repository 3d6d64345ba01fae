// Package bridge connects the memory engine to a host chat application
// over a websocket event stream. The host pushes message lifecycle
// events; the bridge mirrors the transcript and translates events into
// engine calls. This keeps the engine itself free of any transport.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shadota/st-qdrant-memory/memory"
)

// Event types the host may send.
const (
	EventMessageAdded      = "message_added"      // a message appeared or changed
	EventGenerationStarted = "generation_started" // assistant reply began streaming
	EventChatChanged       = "chat_changed"       // user switched chats
)

// Event is one host notification.
type Event struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	Message      *WireMessage `json:"message,omitempty"`
	Participants []string     `json:"participants,omitempty"`
}

// WireMessage is the host's message shape. SendDate is deliberately
// untyped: hosts send epoch seconds, epoch millis, or formatted strings,
// and the engine's timestamp normalizer sorts it out.
type WireMessage struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Name     string          `json:"name"`
	IsUser   bool            `json:"is_user"`
	IsSystem bool            `json:"is_system"`
	SendDate json.RawMessage `json:"send_date,omitempty"`
}

// Bridge owns the websocket connection and the transcript mirror.
type Bridge struct {
	url        string
	engine     *memory.Engine
	transcript *Transcript
}

// New creates a bridge. The transcript must be the same one the engine
// was constructed with.
func New(url string, engine *memory.Engine, transcript *Transcript) *Bridge {
	return &Bridge{url: url, engine: engine, transcript: transcript}
}

// Run dials the host and processes events until the connection drops or
// the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial host %q: %w", b.url, err)
	}
	defer conn.Close()
	log.Printf("[BRIDGE] Connected to %s", b.url)

	// Unblock ReadJSON on cancellation.
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now())
		conn.Close()
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		b.Handle(event)
	}
}

// Handle applies one event to the mirror and the engine. Exported so
// hosts embedding the engine in-process can feed events directly.
func (b *Bridge) Handle(event Event) {
	switch event.Type {
	case EventMessageAdded:
		if event.Message == nil {
			return
		}
		msg := toMessage(event.Message)
		b.transcript.set(event.Index, msg)
		if len(event.Participants) > 0 {
			b.transcript.setParticipants(event.Participants)
		}
		// Streaming assistant messages reach the engine through the
		// finalization detector, not here.
		if b.watchingIndex(event.Index) {
			return
		}
		b.engine.ObserveMessage(msg)

	case EventGenerationStarted:
		if event.Message != nil {
			b.transcript.set(event.Index, toMessage(event.Message))
		}
		if err := b.engine.WatchAssistant(event.Index); err != nil {
			log.Printf("[BRIDGE] Cannot watch assistant message at %d: %v", event.Index, err)
		}

	case EventChatChanged:
		msgs := make([]memory.Message, 0, 16)
		b.transcript.reset(msgs, event.Participants)
		b.engine.Reset()
		log.Printf("[BRIDGE] Chat changed; engine state reset")

	default:
		log.Printf("[BRIDGE] Ignoring unknown event type %q", event.Type)
	}
}

// watchingIndex reports whether the engine is currently finalizing the
// message at this index.
func (b *Bridge) watchingIndex(index int) bool {
	return b.engine.WatchedIndex() == index
}

func toMessage(w *WireMessage) memory.Message {
	return memory.Message{
		ID:       w.ID,
		Text:     w.Text,
		Speaker:  w.Name,
		IsUser:   w.IsUser,
		IsSystem: w.IsSystem,
		SendDate: decodeSendDate(w.SendDate),
	}
}

// decodeSendDate unwraps the raw JSON value into the shapes the
// timestamp normalizer understands.
func decodeSendDate(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return nil
}
