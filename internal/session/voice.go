package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwiater/ollachat/internal/command"
	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/speech"
)

// handleVoice listens until an utterance is recognized, then runs it as if
// it had been typed. The stop phrase ends listening without a chat turn.
func (s *Session) handleVoice(ctx context.Context, _ command.Command) error {
	if s.deps.Listener == nil {
		return errors.New("voice input is not configured")
	}
	text, err := s.listen(ctx)
	if err != nil {
		if errors.Is(err, speech.ErrStopped) {
			s.deps.Console.Info("Voice input stopped")
			return nil
		}
		return err
	}
	s.deps.Console.Success("You said: %s", text)
	cmd := command.Parse(text)
	if cmd.Kind == command.Voice {
		return nil
	}
	if s.dispatch(ctx, cmd) {
		return errExit
	}
	return nil
}

func (s *Session) listen(ctx context.Context) (string, error) {
	s.deps.Console.Info("Listening... (Say '%s' to end)", s.deps.StopPhrase)
	failures := 0
	for {
		text, err := s.deps.Listener.Listen(ctx)
		if err == nil {
			if speech.IsStopPhrase(text, s.deps.StopPhrase) {
				return "", speech.ErrStopped
			}
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		failures++
		logging.LogEvent("voice input failed (%d/%d): %v", failures, maxVoiceFailures, err)
		switch {
		case errors.Is(err, speech.ErrUnknownSpeech):
			s.deps.Console.Error("Could not understand audio")
		default:
			s.deps.Console.Error("Could not request results; %v", err)
		}
		if failures >= maxVoiceFailures {
			return "", fmt.Errorf("voice input gave up after %d attempts: %w", failures, err)
		}
	}
}
