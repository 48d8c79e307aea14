package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/smartphone-scraper/internal/app"
	"github.com/maltedev/smartphone-scraper/internal/config"
	"github.com/maltedev/smartphone-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	result, err := a.Crawler.Run(ctx)
	if closeErr := a.Close(); closeErr != nil {
		logger.Warn("failed to release resources", "error", closeErr)
	}
	if err != nil {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}

	logger.Info("crawl summary",
		"run_id", result.ID.String(),
		"pages", result.Pages,
		"records", len(result.Products),
		"duplicates", result.Duplicates,
		"output", cfg.Scraper.OutputPath,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
}
