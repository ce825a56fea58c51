package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newsforge/newsforge-backend/internal/app"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

func main() {
	cfg := app.ConfigFromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, log, cfg); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
