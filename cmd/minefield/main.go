package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmtrv/minefield/internal/config"
	"github.com/dmtrv/minefield/internal/db"
	"github.com/dmtrv/minefield/internal/engine"
	"github.com/dmtrv/minefield/internal/oracle"
	"github.com/dmtrv/minefield/internal/server"
	"github.com/dmtrv/minefield/internal/session"
)

const configPath = "config/minefield.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := configPath
	if p := os.Getenv("MINEFIELD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("minefield server starting",
		"log_level", cfg.LogLevel,
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"store", cfg.StorePath)

	// Open the store
	store, err := db.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("pinging store: %w", err)
	}
	slog.Info("store opened")

	// Run migrations
	if err := store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("store migrations applied")

	// Create repositories
	cellRepo := db.NewCellRepository(store)
	playerRepo := db.NewPlayerRepository(store)

	// Wire the game components
	orc := oracle.New(cfg.MapSeed)
	registry := session.NewRegistry(playerRepo)
	eng := engine.New(orc, cellRepo, playerRepo)
	srv := server.NewServer(cfg, store, cellRepo, registry, eng, playerRepo)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting game server", "port", cfg.Port)
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
