package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/config"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/journal"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent matches from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEngine()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.RedisURL) == "" {
				return errors.New("REDIS_URL is not set; the journal is disabled")
			}
			ctx := cmd.Context()
			store, err := journal.NewRedisStore(ctx, cfg.RedisURL, cfg.JournalRecentLimit)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.RecentMatches(ctx, limit)
			if err != nil {
				return err
			}
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tID\tCOLOR\tMOVES\tDURATION\tEND")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), shortID(r.ID), r.Color,
					len(r.MovesUCI), r.Duration().Round(time.Second), r.EndReason)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			reasons := make([]string, 0, len(stats.ByReason))
			for k := range stats.ByReason {
				reasons = append(reasons, k)
			}
			sort.Strings(reasons)
			parts := make([]string, 0, len(reasons))
			for _, k := range reasons {
				parts = append(parts, fmt.Sprintf("%s=%d", k, stats.ByReason[k]))
			}
			fmt.Fprintf(out, "\n%d matches (%s)\n", stats.Total, strings.Join(parts, ", "))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of matches to show (default JOURNAL_RECENT_LIMIT)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
