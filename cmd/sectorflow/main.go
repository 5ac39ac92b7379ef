package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	envFile := flag.String("env", ".env", "path to env file (optional)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.LogFile)
	logger := config.NewLogger("main")

	logger.Info().
		Str("mode", cfg.App.Mode).
		Str("storage_dir", cfg.Storage.Dir).
		Bool("oracle_enabled", cfg.Oracle.Enabled).
		Msg("Starting sectorflow engine")

	sys, err := orchestrator.New(cfg, log.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start engine")
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")
	sys.Stop()
	logger.Info().Msg("Shutdown complete")
}
