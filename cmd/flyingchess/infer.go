package main

import (
	"errors"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
)

func inferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "infer <before-fen> <after-fen>",
		Short: "Infer the move between two positions",
		Long: heredoc.Doc(`
			infer compares two piece placements (FEN, the placement field
			alone is enough) and prints the move that turns the first into
			the second, exactly as the bot would while watching a game.`),
		Example: heredoc.Doc(`
			$ flyingchess infer rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR \
			    rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR
			e2e4`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := board.FromFEN(args[0])
			if err != nil {
				return fmt.Errorf("before: %w", err)
			}
			after, err := board.FromFEN(args[1])
			if err != nil {
				return fmt.Errorf("after: %w", err)
			}

			out := cmd.OutOrStdout()
			m, err := inference.Infer(before, after)
			var derr *inference.DesyncError
			switch {
			case errors.As(err, &derr):
				fmt.Fprintf(out, "desync: %d squares changed %v\n", derr.Count, derr.Squares)
				return err
			case err != nil:
				return err
			case m == nil:
				fmt.Fprintln(out, "no move")
			default:
				fmt.Fprintln(out, m.UCI())
			}
			return nil
		},
	}
}
