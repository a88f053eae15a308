package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/app"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/config"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
