// Package transcript holds the conversation data model and its on-disk store.
package transcript

import (
	"slices"

	"github.com/mwiater/ollachat/internal/providers"
)

// Roles a Message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Images holds local file paths and
// is only set on some user turns.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Transcript is an ordered sequence of turns. Role alternation is not
// enforced: consecutive user turns appear after a failed completion.
type Transcript []Message

// Append returns t with msg added at the end.
func (t Transcript) Append(msg Message) Transcript {
	return append(t, msg)
}

// Clone returns a deep copy, so later appends never alias t's backing array.
func (t Transcript) Clone() Transcript {
	out := make(Transcript, len(t))
	for i, msg := range t {
		out[i] = Message{Role: msg.Role, Content: msg.Content, Images: slices.Clone(msg.Images)}
	}
	return out
}

// LastAssistant returns the most recent assistant turn.
func (t Transcript) LastAssistant() (Message, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == RoleAssistant {
			return t[i], true
		}
	}
	return Message{}, false
}

// ChatMessages converts the transcript to the provider's message form.
func (t Transcript) ChatMessages() []providers.ChatMessage {
	out := make([]providers.ChatMessage, len(t))
	for i, msg := range t {
		out[i] = providers.ChatMessage{Role: msg.Role, Content: msg.Content, Images: slices.Clone(msg.Images)}
	}
	return out
}
