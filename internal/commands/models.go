package ollachat

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/ollachat/internal/models"
	"github.com/mwiater/ollachat/internal/providers/ollama"
	"github.com/mwiater/ollachat/internal/ui"
)

// modelsCmd lists the models installed on the configured server.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List installed models",
	Long:  `The 'models' subcommand lists every model installed on the configured Ollama server.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := ollama.New(GetConfig())
		defer provider.Close()

		names, err := provider.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrBackendUnavailable, err)
		}
		ui.NewConsole(cmd.OutOrStdout()).Models(names)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
