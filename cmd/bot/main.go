package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flor3z/invite-role-bot/internal/bot"
	"github.com/flor3z/invite-role-bot/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Bot exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)
	slog.Info("Starting invite role bot", "guildID", cfg.GuildID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		b.Stop()
		return fmt.Errorf("failed to start bot: %w", err)
	}

	slog.Info("Ready for role assignment. Press Ctrl+C to stop.")

	// A failed background task ends the process so a supervisor can restart it
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down...")
	case runErr = <-b.Errors():
		slog.Error("Background task failed, shutting down", "error", runErr)
	}
	stop()

	if err := b.Stop(); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	slog.Info("Bot stopped")
	return runErr
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
