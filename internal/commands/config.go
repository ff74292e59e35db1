package ollachat

import (
	"fmt"
	"os"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
)

// configCmd implements the 'config' command, which displays the merged configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings after flags, environment, config file and defaults have been merged.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		cfg := GetConfig()
		used := cfg.ConfigPath
		if _, err := os.Stat(used); err != nil {
			used += " (not found, using defaults)"
		}
		fmt.Fprintf(out, "Config file: %s\nData directory: %s\n", used, currentPaths.ConfigDir)
		pp.Fprintln(out, cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
