package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/obslog"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		obslog.Sync()
		os.Exit(1)
	}
	obslog.Sync()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flyingchess",
		Short: "Plays online chess on its own",
		Long: heredoc.Doc(`
			flyingchess logs into a chess site, waits for a game, plays it
			with a local UCI engine and queues for the next one.

			Configuration comes from environment variables, optionally
			layered over $XDG_CONFIG_HOME/flyingchess/config.yaml.`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("trace").Changed {
				if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
					return err
				}
			}
			return obslog.InitFromEnv()
		},
	}

	root.PersistentFlags().BoolP("trace", "t", false, "Log engine and driver traffic")

	root.AddCommand(runCmd())
	root.AddCommand(inferCmd())
	root.AddCommand(bestMoveCmd())
	root.AddCommand(historyCmd())
	return root
}
