package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/builder"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/config"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/obslog"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Long: heredoc.Doc(`
			run starts the engine and the configured driver, logs in and
			plays games back to back. It stops on SIGINT or SIGTERM, or when
			the session reaches an unrecoverable error.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := obslog.L()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.ConfigFile != "" {
				logger.Info("config_file", zap.String("path", cfg.ConfigFile))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := builder.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = deps.Close(cctx)
			}()

			logger.Info("bot_started", zap.String("driver", cfg.Driver), zap.Int("depth", cfg.SearchDepth))
			err = deps.Session.Run(ctx)
			logger.Info("bot_stopped", zap.Stringer("state", deps.Session.State()), zap.Error(err))
			return err
		},
	}
}
