package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mwiater/ollachat/internal/command"
	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/transcript"
	"github.com/mwiater/ollachat/internal/ui"
	"github.com/mwiater/ollachat/internal/util"
)

func (s *Session) handleChat(ctx context.Context, cmd command.Command) error {
	return s.SendTurn(ctx, transcript.Message{Role: transcript.RoleUser, Content: cmd.Arg})
}

func (s *Session) handleUnrecognized(_ context.Context, _ command.Command) error {
	return command.ErrUnrecognized
}

func (s *Session) handleHelp(_ context.Context, _ command.Command) error {
	s.deps.Console.Help(command.Grammar())
	return nil
}

func requireArg(cmd command.Command, usage string) (string, error) {
	arg := strings.TrimSpace(cmd.Arg)
	if arg == "" {
		return "", fmt.Errorf("%w: usage %s", ErrMissingArgument, usage)
	}
	return arg, nil
}

func (s *Session) handleSave(_ context.Context, cmd command.Command) error {
	name, err := requireArg(cmd, "/save <name>")
	if err != nil {
		return err
	}
	if name != s.BoundName && s.deps.Store.Exists(name) {
		s.deps.Console.Warn("Overwriting existing chat '%s'", name)
	}
	if err := s.deps.Store.Save(name, s.Transcript, s.Model); err != nil {
		return err
	}
	s.BoundName = name
	logging.LogEvent("chat saved as %q", name)
	s.deps.Console.Success("Chat saved as '%s'\nThis chat will be saved automatically after every interaction.", name)
	return nil
}

func (s *Session) handleLoad(_ context.Context, cmd command.Command) error {
	name, err := requireArg(cmd, "/load <name>")
	if err != nil {
		return err
	}
	loaded, err := s.deps.Store.Load(name)
	if err != nil {
		return err
	}
	s.Transcript = loaded
	s.BoundName = name
	logging.LogEvent("chat %q loaded with %d messages", name, len(loaded))
	s.deps.Console.Success("Loaded chat '%s'", name)
	s.deps.Console.Transcript(loaded)
	for _, path := range missingImages(loaded) {
		s.deps.Console.Warn("Attached image %s no longer exists and will not be sent", path)
	}
	return nil
}

func missingImages(t transcript.Transcript) []string {
	var missing []string
	for _, msg := range t {
		for _, path := range msg.Images {
			if _, err := os.Stat(path); err != nil {
				missing = append(missing, path)
			}
		}
	}
	return missing
}

func (s *Session) handleList(_ context.Context, _ command.Command) error {
	names, err := s.deps.Store.List()
	if err != nil {
		return err
	}
	s.deps.Console.Chats(names)
	return nil
}

func (s *Session) handleDelete(_ context.Context, cmd command.Command) error {
	name, err := requireArg(cmd, "/delete <name>")
	if err != nil {
		return err
	}
	if err := s.deps.Store.Delete(name); err != nil {
		return err
	}
	if name == s.BoundName {
		s.BoundName = ""
	}
	logging.LogEvent("chat %q deleted", name)
	s.deps.Console.Success("Deleted chat: %s", name)
	return nil
}

// handleNew always ends with an empty, unbound transcript. An unnamed,
// non-empty conversation is offered for saving first.
func (s *Session) handleNew(_ context.Context, _ command.Command) error {
	var saveErr error
	if s.BoundName == "" && len(s.Transcript) > 0 {
		saveErr = s.offerSave()
	}
	s.Transcript = transcript.Transcript{}
	s.BoundName = ""
	s.deps.Console.Success("Started a new conversation")
	return saveErr
}

func (s *Session) offerSave() error {
	ok, err := ui.Confirm(s.deps.Prompter, "Do you want to save chat?")
	if err != nil {
		s.deps.Console.Warn("Chat not saved: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	name, err := s.deps.Prompter.Prompt("Chat name > ")
	if err != nil {
		s.deps.Console.Warn("Chat not saved: %v", err)
		return nil
	}
	name = strings.TrimSpace(name)
	if err := s.deps.Store.Save(name, s.Transcript, s.Model); err != nil {
		return err
	}
	s.deps.Console.Success("Chat saved as '%s'", name)
	return nil
}

func (s *Session) handleChangeModel(ctx context.Context, cmd command.Command) error {
	name := strings.TrimSpace(cmd.Arg)
	if name == "" {
		s.deps.Console.Info("Currently using %s. Installed models:", s.Model)
		s.deps.Console.Models(s.deps.Registry.Available())
		return nil
	}
	next, err := s.deps.Registry.ChangeModel(ctx, name)
	if err != nil {
		return err
	}
	s.Model = next
	logging.LogEvent("model changed to %q", next)
	s.deps.Console.Success("Now using %s.", next)
	return nil
}

func (s *Session) handleFile(ctx context.Context, cmd command.Command) error {
	path, err := requireArg(cmd, "/file <path>")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("file not found or unreadable: %w", err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: %s", ErrNotText, path)
	}
	instruction, err := s.deps.Prompter.Prompt("Your prompt > ")
	if err != nil {
		return fmt.Errorf("no prompt given: %w", err)
	}
	return s.SendTurn(ctx, transcript.Message{
		Role:    transcript.RoleUser,
		Content: composeFileMessage(filepath.Base(path), instruction, string(data)),
	})
}

func composeFileMessage(name, instruction, content string) string {
	return fmt.Sprintf("Given to you is a file called %q. This is what the user wants you to do or to answer: %q.\nAnd this is the file content:\n%s",
		name, strings.TrimSpace(instruction), content)
}

func (s *Session) handleImage(ctx context.Context, cmd command.Command) error {
	path, err := requireArg(cmd, "/image <path>")
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("image file not found: %w", err)
	}
	prompt, err := s.deps.Prompter.Prompt("Your prompt > ")
	if err != nil {
		return fmt.Errorf("no prompt given: %w", err)
	}
	return s.SendTurn(ctx, transcript.Message{
		Role:    transcript.RoleUser,
		Content: prompt,
		Images:  []string{path},
	})
}

func (s *Session) handleWrite(_ context.Context, cmd command.Command) error {
	path, err := requireArg(cmd, "/write <path>")
	if err != nil {
		return err
	}
	last, ok := s.Transcript.LastAssistant()
	if !ok {
		return ErrNoAssistantTurn
	}
	if filepath.Ext(path) == "" {
		path += ".txt"
	}
	if err := util.WriteFile(path, []byte(last.Content)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logging.LogEvent("last answer written to %s", path)
	s.deps.Console.Success("Last answer written to %s", path)
	return nil
}
