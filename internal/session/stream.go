package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/providers"
	"github.com/mwiater/ollachat/internal/transcript"
)

// SendTurn appends msg to the transcript, streams the model's reply to the
// console and appends it as one assistant turn. When the stream fails the
// user turn stays but no partial reply is kept and nothing is saved.
// A bound transcript is saved after every completed exchange.
func (s *Session) SendTurn(ctx context.Context, msg transcript.Message) error {
	s.Transcript = s.Transcript.Clone().Append(msg)

	req := providers.StreamRequest{Model: s.Model, History: s.Transcript.ChatMessages()}
	var reply strings.Builder
	c := s.deps.Console
	c.AssistantLabel()
	for fragment, err := range s.deps.Provider.Stream(ctx, req) {
		if err != nil {
			c.EndStream()
			return fmt.Errorf("%w: %w", ErrInference, err)
		}
		c.Fragment(fragment)
		reply.WriteString(fragment)
	}
	c.EndStream()

	s.Transcript = s.Transcript.Append(transcript.Message{Role: transcript.RoleAssistant, Content: reply.String()})
	return s.autoSave()
}

func (s *Session) autoSave() error {
	if s.BoundName == "" {
		return nil
	}
	if err := s.deps.Store.Save(s.BoundName, s.Transcript, s.Model); err != nil {
		return fmt.Errorf("auto-save %q: %w", s.BoundName, err)
	}
	logging.LogEvent("chat %q auto-saved (%d messages)", s.BoundName, len(s.Transcript))
	return nil
}
