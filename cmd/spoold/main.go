// Command spoold runs the encode worker as a long-lived daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spool/internal/app"
	"spool/internal/config"
)

func main() {
	// Local deployments keep credentials in a .env next to the binary.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoold: load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoold: init logger: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "spoold: %v\n", err)
		os.Exit(1)
	}
}
