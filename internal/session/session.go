// Package session runs the interactive chat loop: it owns the live
// transcript, the bound chat name and the current model, and dispatches
// every input line to a command handler.
package session

import (
	"context"
	"errors"
	"io"

	"github.com/mwiater/ollachat/internal/command"
	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/models"
	"github.com/mwiater/ollachat/internal/providers"
	"github.com/mwiater/ollachat/internal/speech"
	"github.com/mwiater/ollachat/internal/transcript"
	"github.com/mwiater/ollachat/internal/ui"
)

var (
	// ErrNoAssistantTurn is returned by /write before any reply exists.
	ErrNoAssistantTurn = errors.New("no assistant answer to write yet")
	// ErrInference wraps failures of the completion stream.
	ErrInference = errors.New("error while trying to use model")
	// ErrMissingArgument is returned when a command needs an argument it did not get.
	ErrMissingArgument = errors.New("missing argument")
	// ErrNotText is returned by /file for content that is not UTF-8 text.
	ErrNotText = errors.New("file is not a text file")

	errExit = errors.New("exit")
)

const maxVoiceFailures = 3

// Deps are the collaborators a Session talks to.
type Deps struct {
	Provider   providers.ChatProvider
	Registry   *models.Registry
	Store      *transcript.Store
	Listener   speech.Listener
	Prompter   ui.Prompter
	Console    *ui.Console
	StopPhrase string
}

type handler func(ctx context.Context, cmd command.Command) error

// Session is the state of one interactive conversation. A non-empty
// BoundName always refers to a transcript that exists in the store.
type Session struct {
	Model      string
	BoundName  string
	Transcript transcript.Transcript

	deps     Deps
	handlers map[command.Kind]handler
}

// New returns a Session talking to model with an empty transcript.
func New(model string, deps Deps) *Session {
	s := &Session{Model: model, Transcript: transcript.Transcript{}, deps: deps}
	s.handlers = map[command.Kind]handler{
		command.Empty:        func(context.Context, command.Command) error { return nil },
		command.Chat:         s.handleChat,
		command.Unrecognized: s.handleUnrecognized,
		command.Help:         s.handleHelp,
		command.Save:         s.handleSave,
		command.Load:         s.handleLoad,
		command.List:         s.handleList,
		command.Delete:       s.handleDelete,
		command.New:          s.handleNew,
		command.ChangeModel:  s.handleChangeModel,
		command.File:         s.handleFile,
		command.Write:        s.handleWrite,
		command.Image:        s.handleImage,
		command.Voice:        s.handleVoice,
		command.Exit:         func(context.Context, command.Command) error { return errExit },
	}
	return s
}

// Run reads and executes commands until /exit or end of input.
func (s *Session) Run(ctx context.Context) error {
	logging.LogEvent("session started with model %q", s.Model)
	for {
		line, err := s.deps.Prompter.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				logging.LogEvent("input closed; ending session")
				return nil
			}
			return err
		}
		if exit := s.Execute(ctx, line); exit {
			logging.LogEvent("session ended by /exit")
			return nil
		}
	}
}

// Execute runs one input line and reports whether the session should end.
// Errors are reported on the console, never returned.
func (s *Session) Execute(ctx context.Context, line string) bool {
	return s.dispatch(ctx, command.Parse(line))
}

func (s *Session) dispatch(ctx context.Context, cmd command.Command) bool {
	h, ok := s.handlers[cmd.Kind]
	if !ok {
		h = s.handleUnrecognized
	}
	err := h(ctx, cmd)
	if errors.Is(err, errExit) {
		return true
	}
	if err != nil {
		s.report(cmd, err)
	}
	return false
}

func (s *Session) report(cmd command.Command, err error) {
	logging.LogEvent("%s %q failed: %v", cmd.Kind, cmd.Raw, err)
	c := s.deps.Console
	switch {
	case errors.Is(err, command.ErrUnrecognized):
		c.Error("Command not found: %s. Type /? for help.", cmd.Arg)
	case errors.Is(err, transcript.ErrNotFound):
		c.Error("Chat not found. Type /list to list all your chats.")
	case errors.Is(err, transcript.ErrCorrupt):
		c.Error("Error loading chat: %v", err)
	case errors.Is(err, models.ErrUnknownModel):
		c.Error("Model is not installed or existing. Choose one of your installed ones:")
		c.Models(s.deps.Registry.Available())
	default:
		c.Error("Error: %v", err)
	}
}
