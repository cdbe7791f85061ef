package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.ErrorContext(ctx, "Failed to load .env file",
				"error", err)
			os.Exit(1)
		}
	} else {
		log.DebugContext(ctx, ".env file is loaded")
	}

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailedItems) {
			slog.ErrorContext(ctx, "Command failed",
				"error", err)
		}
		os.Exit(1)
	}
}
