// Package main is the editor-side agent: it owns the callback relay, the
// durable token slot, and the stdio command channel the presentation layer
// drives.
//
// PROCESS MODEL:
// This binary and cmd/server are independent processes. They meet only
// through the OAuth browser redirect — the server hands the token to the
// relay listener this process runs on a fixed loopback port.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/rafid/habit-tracker/internal/config"
	"github.com/rafid/habit-tracker/internal/extension"
	"github.com/rafid/habit-tracker/internal/relay"
	"github.com/rafid/habit-tracker/internal/tokenstore"
)

func main() {
	_ = godotenv.Load()

	// Logs go to stderr — stdout is the reply channel.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadExtension()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := tokenstore.New(cfg.StateDir)
	if err != nil {
		logger.Error("failed to open token store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The one relay instance for the process; sign-in commands re-arm it as
	// needed, and it guards its own single-listener invariant.
	listener := relay.New(cfg.RelayPort, store, relay.DefaultOpenURL, logger)
	defer listener.Dispose()

	svc := extension.NewService(listener, store, cfg.APIBaseURL, logger)

	logger.Info("extension agent ready",
		slog.Int("relayPort", cfg.RelayPort),
		slog.String("api", cfg.APIBaseURL),
	)

	// Run blocks until the presentation layer closes the channel.
	if err := svc.Run(os.Stdin, os.Stdout); err != nil {
		logger.Error("command channel failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
