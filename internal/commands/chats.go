package ollachat

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/ollachat/internal/transcript"
	"github.com/mwiater/ollachat/internal/tui"
	"github.com/mwiater/ollachat/internal/ui"
)

var plainChats bool

// chatsCmd browses saved chats, full screen on a terminal.
var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Browse saved chats",
	Long:  `The 'chats' subcommand opens a browser over saved chats. With --plain, or when output is not a terminal, it prints their names instead.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.NewStore(currentPaths.ChatsDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if plainChats || !ui.IsTerminal(out) {
			names, err := store.List()
			if err != nil {
				return err
			}
			ui.NewConsole(out).Chats(names)
			return nil
		}
		return tui.Run(store)
	},
}

func init() {
	chatsCmd.Flags().BoolVar(&plainChats, "plain", false, "print chat names instead of opening the browser")
	rootCmd.AddCommand(chatsCmd)
}
