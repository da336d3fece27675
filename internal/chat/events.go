// Package chat implements the per-connection streaming protocol: a state
// machine that accepts one user message at a time, retrieves grounding
// context, and streams a generated answer token by token while tolerating
// transport drops within a grace window.
package chat

import "github.com/specwise/specchat/internal/domain"

// EventType identifies an outbound protocol event.
type EventType string

const (
	// EventToken carries one generated fragment with its sequence number.
	EventToken EventType = "token"
	// EventFinal terminates a turn. Its content is the full concatenated
	// answer, so a client that missed intermediate tokens can reconstruct
	// state from this event alone.
	EventFinal EventType = "final"
	// EventError reports a turn or protocol failure.
	EventError EventType = "error"
	// EventContext surfaces the retrieved chunks as a side channel when the
	// client asked for them.
	EventContext EventType = "context"
)

// Event is one outbound frame. Token and final events carry strictly
// increasing sequence numbers starting at 0 per turn; the final event's
// sequence is greater than every token's.
type Event struct {
	Type     EventType      `json:"type"`
	Content  string         `json:"content,omitempty"`
	Sequence int            `json:"sequence"`
	Error    string         `json:"error,omitempty"`
	Chunks   []ContextChunk `json:"chunks,omitempty"`
}

// ContextChunk is the client-facing projection of a retrieved chunk.
type ContextChunk struct {
	ChunkID string  `json:"chunk_id"`
	Kind    string  `json:"kind"`
	Text    string  `json:"text"`
	Score   float32 `json:"score"`
}

// InboundMessage is one frame received from the client.
type InboundMessage struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
	ShowContext    bool   `json:"show_context"`
}

const (
	// InboundTypeMessage starts a turn.
	InboundTypeMessage = "message"
	// InboundTypeClose ends the session explicitly.
	InboundTypeClose = "close"
)

func contextChunks(results []domain.ScoredChunk) []ContextChunk {
	out := make([]ContextChunk, len(results))
	for i, r := range results {
		out[i] = ContextChunk{
			ChunkID: r.Chunk.ID,
			Kind:    string(r.Chunk.Kind),
			Text:    r.Chunk.Text,
			Score:   r.Score,
		}
	}
	return out
}
