package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"spool/internal/app"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the worker loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx, cfg, logger); err != nil && ctx.Err() == nil {
				return err
			}
			return context.Cause(ctx)
		},
	}
}
