package domain

import "time"

// Sender identifies who authored a conversation turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// DefaultHistoryWindow bounds how many prior turns accompany a new question.
const DefaultHistoryWindow = 10

// ConversationTurn is one message in a subscriber's transcript.
type ConversationTurn struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
	// Welcome marks the greeting shown before the first exchange. It is
	// displayed but never sent upstream.
	Welcome bool `json:"welcome,omitempty"`
}

// HistoryMessage is a prior turn in the form the answering service accepts.
type HistoryMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// HistoryWindow returns at most n of the most recent turns as history
// messages, oldest first, skipping welcome turns and empty text.
func HistoryWindow(turns []ConversationTurn, n int) []HistoryMessage {
	if n <= 0 {
		return nil
	}
	out := make([]HistoryMessage, 0, min(n, len(turns)))
	for i := len(turns) - 1; i >= 0 && len(out) < n; i-- {
		t := turns[i]
		if t.Welcome || t.Text == "" {
			continue
		}
		out = append(out, HistoryMessage{Role: string(t.Sender), Content: t.Text})
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Transcript is a subscriber's persisted conversation.
type Transcript struct {
	Turns     []ConversationTurn `json:"turns"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Append adds turns and trims the transcript to at most limit turns.
func (t *Transcript) Append(limit int, turns ...ConversationTurn) {
	t.Turns = append(t.Turns, turns...)
	if limit > 0 && len(t.Turns) > limit {
		t.Turns = t.Turns[len(t.Turns)-limit:]
	}
}
