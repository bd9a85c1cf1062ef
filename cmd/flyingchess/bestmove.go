package main

import (
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/builder"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/chess/uci"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/config"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/obslog"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/oracle"
)

const spinnerSet = 31

func bestMoveCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "bestmove [uci moves...]",
		Short: "Ask the engine for a move after the given history",
		Long: heredoc.Doc(`
			bestmove replays the moves from the starting position and prints
			the engine's reply, using the same engine settings as run.`),
		Example: "$ flyingchess bestmove e2e4 e7e5 g1f3",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEngine()
			if err != nil {
				return err
			}
			if depth > 0 {
				cfg.SearchDepth = depth
			}
			history := make([]board.Move, 0, len(args))
			for _, a := range args {
				m, err := board.ParseMove(a)
				if err != nil {
					return err
				}
				history = append(history, m)
			}

			ctx := cmd.Context()
			logger := obslog.L()
			sess, err := uci.NewSession(ctx, cfg.StockfishPath, uci.Options{
				Threads:    cfg.EngineThreads,
				SkillLevel: cfg.EngineSkillLevel,
				HashMB:     cfg.EngineHashMB,
				Elo:        cfg.EngineElo,
			}, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			a := oracle.NewAdapter(sess, builder.SearchLimits(cfg), logger)
			if err := a.Reset(ctx); err != nil {
				return err
			}
			for _, m := range history {
				a.Record(m)
			}
			spin := spinner.New(spinner.CharSets[spinnerSet], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			spin.Suffix = " searching"
			spin.Start()
			best, err := a.BestMove(ctx)
			spin.Stop()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), best.UCI())
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "Search depth (default SEARCH_DEPTH)")
	return cmd
}
