package ollachat

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/models"
	"github.com/mwiater/ollachat/internal/providers/ollama"
	"github.com/mwiater/ollachat/internal/session"
	"github.com/mwiater/ollachat/internal/speech"
	"github.com/mwiater/ollachat/internal/transcript"
	"github.com/mwiater/ollachat/internal/ui"
)

// runChat resolves the model and runs the interactive session until /exit
// or end of input.
func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, paths := GetConfig(), currentPaths
	out := cmd.OutOrStdout()

	provider := ollama.New(cfg)
	defer provider.Close()

	registry := models.NewRegistry(provider, paths.DefaultModelFile)
	if err := registry.Load(ctx); err != nil {
		logging.LogEvent("startup failed: %v", err)
		return err
	}

	store, err := transcript.NewStore(paths.ChatsDir)
	if err != nil {
		return err
	}

	console := ui.NewConsole(out)
	prompter, release := ui.NewPrompter(paths.HistoryFile, stdin, out)
	defer release()

	model, err := registry.ResolveStartupModel(startModel, prompter, console)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("no model selected")
		}
		return err
	}
	logging.LogEvent("starting chat with model %q at %s", model, cfg.Host)

	console.Welcome(appVersion)
	if cfg.Debug {
		console.Info("Debug log: %s", cfg.LogFilePath(paths))
	}
	console.Info("Using %s. Type /? for help.", model)

	s := session.New(model, session.Deps{
		Provider:   provider,
		Registry:   registry,
		Store:      store,
		Listener:   speech.NewWhisperListener(cfg.Speech),
		Prompter:   prompter,
		Console:    console,
		StopPhrase: cfg.Speech.StopPhrase,
	})
	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
