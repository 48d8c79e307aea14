// Package app wires configuration into a ready crawler and its sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/smartphone-scraper/internal/browser"
	"github.com/maltedev/smartphone-scraper/internal/config"
	"github.com/maltedev/smartphone-scraper/internal/database"
	"github.com/maltedev/smartphone-scraper/internal/events"
	"github.com/maltedev/smartphone-scraper/internal/fetcher"
	"github.com/maltedev/smartphone-scraper/internal/parser"
	"github.com/maltedev/smartphone-scraper/internal/scraper"
	"github.com/maltedev/smartphone-scraper/internal/storage"
)

type App struct {
	Crawler  *scraper.Crawler
	Snapshot *storage.FileSink

	closers []func() error
}

// New builds the fetcher selected by cfg and the sink chain: the output file
// first, then Postgres and Redis when configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	if err := a.build(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	f, err := a.newFetcher(cfg, logger)
	if err != nil {
		return err
	}

	a.Snapshot = storage.NewFileSink(cfg.Scraper.OutputPath)
	sinks := []scraper.Sink{a.Snapshot}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,

			MaxConns:    int32(cfg.Database.MaxConns),
			MinConns:    int32(cfg.Database.MinConns),
			MaxConnLife: cfg.Database.MaxConnLifetime,
			MaxConnIdle: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		repo := database.NewProductRepository(db, logger)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		sinks = append(sinks, repo)
	}

	if cfg.Redis.Enabled {
		client, err := events.Connect(ctx, events.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		publisher := events.NewPublisher(client, cfg.Redis.Stream, logger)
		a.closers = append(a.closers, publisher.Close)
		sinks = append(sinks, publisher)
	}

	crawler, err := scraper.NewCrawler(f, parser.NewMagpieParser(), scraper.Options{
		BaseURL:      cfg.Scraper.BaseURL,
		PageDelay:    cfg.Scraper.PageDelay,
		PageDelayMax: cfg.Scraper.PageDelayMax,
	}, logger, sinks...)
	if err != nil {
		return err
	}
	a.Crawler = crawler

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	logger.Info("crawler ready", "fetch_mode", cfg.Scraper.FetchMode, "sinks", names)

	return nil
}

func (a *App) newFetcher(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error) {
	if cfg.Scraper.FetchMode != config.FetchModeBrowser {
		return fetcher.NewHTTPFetcher(fetcher.Options{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.Scraper.Timeout,
		}, logger), nil
	}

	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Scraper.Timeout
	opts.UserAgent = cfg.Scraper.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.Locale = cfg.Browser.Locale

	b, err := browser.New(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	a.closers = append(a.closers, b.Close)
	return b, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
