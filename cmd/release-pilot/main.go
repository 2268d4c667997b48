package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nathantilsley/release-pilot/internal/platform/config"
	"github.com/nathantilsley/release-pilot/internal/platform/logger"
	"github.com/nathantilsley/release-pilot/internal/platform/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)

	// Initialize telemetry (noop providers when disabled)
	tel, err := telemetry.New(ctx, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Build dependency container
	container, err := NewContainer(ctx, cfg, log, tel)
	if err != nil {
		return fmt.Errorf("building container: %w", err)
	}
	defer container.Close()

	// Create and run server
	server := NewServer(container)
	return server.Run()
}
