// Package providers defines the contract between the chat session and a
// model inference server. The session only ever sees model names and a lazy
// sequence of text fragments; transport details stay in the implementations.
package providers

import (
	"context"
	"iter"
)

// ChatMessage represents a single message in a chat conversation.
// Images holds local file paths; providers encode them as the wire format requires.
type ChatMessage struct {
	Role    string
	Content string
	Images  []string
}

// StreamRequest encapsulates all the information needed to initiate a chat stream.
type StreamRequest struct {
	Model   string
	History []ChatMessage
}

// ChatProvider is the interface that all model providers must implement.
type ChatProvider interface {
	// ListModels returns the names of the models installed on the server.
	ListModels(ctx context.Context) ([]string, error)
	// Stream sends the conversation and yields the reply one fragment at a
	// time, in arrival order. A non-nil error is always the last value
	// yielded. The sequence is single-use.
	Stream(ctx context.Context, req StreamRequest) iter.Seq2[string, error]
	// Close cleans up any resources used by the provider.
	Close() error
}
