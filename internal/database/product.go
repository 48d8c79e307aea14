package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/smartphone-scraper/internal/models"
	"github.com/maltedev/smartphone-scraper/internal/scraper"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id          UUID PRIMARY KEY,
	base_url    TEXT NOT NULL,
	pages       INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS crawled_products (
	run_id            UUID NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
	position          INTEGER NOT NULL,
	title             TEXT NOT NULL,
	price             DOUBLE PRECISION NOT NULL,
	image_url         TEXT NOT NULL,
	capacity_mb       INTEGER NOT NULL,
	colour            TEXT NOT NULL,
	availability_text TEXT NOT NULL,
	is_available      BOOLEAN NOT NULL,
	shipping_text     TEXT,
	shipping_date     DATE,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_crawled_products_title ON crawled_products (title);`

var productColumns = []string{
	"run_id",
	"position",
	"title",
	"price",
	"image_url",
	"capacity_mb",
	"colour",
	"availability_text",
	"is_available",
	"shipping_text",
	"shipping_date",
}

// ProductRepository stores every successful crawl as an immutable snapshot.
type ProductRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProductRepository(db *DB, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger.With("component", "product_repository"),
	}
}

func (r *ProductRepository) Name() string { return "postgres" }

// Migrate creates the snapshot tables when they do not exist yet.
func (r *ProductRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Write inserts the run and all of its records in one transaction.
func (r *ProductRepository) Write(ctx context.Context, run scraper.Run, products []models.Product) error {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO crawl_runs (id, base_url, pages, records, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			runArgs(run, len(products))...,
		)
		if err != nil {
			return fmt.Errorf("failed to insert crawl run: %w", err)
		}

		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"crawled_products"},
			productColumns,
			pgx.CopyFromRows(productRows(run.ID, products)),
		)
		if err != nil {
			return fmt.Errorf("failed to copy products: %w", err)
		}
		if int(copied) != len(products) {
			return fmt.Errorf("copied %d of %d products", copied, len(products))
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("stored crawl snapshot", "run_id", run.ID.String(), "records", len(products))
	return nil
}

func runArgs(run scraper.Run, records int) []any {
	return []any{run.ID, run.BaseURL, run.Pages, records, run.StartedAt, run.FinishedAt}
}

func productRows(runID uuid.UUID, products []models.Product) [][]any {
	rows := make([][]any, 0, len(products))
	for i, p := range products {
		var shippingDate *time.Time
		if p.ShippingDate != nil {
			d := p.ShippingDate.Time
			shippingDate = &d
		}

		rows = append(rows, []any{
			runID,
			i,
			p.Title,
			p.Price,
			p.ImageURL,
			p.CapacityMB,
			p.Colour,
			p.AvailabilityText,
			p.IsAvailable(),
			p.ShippingText,
			shippingDate,
		})
	}
	return rows
}

var _ scraper.Sink = (*ProductRepository)(nil)
