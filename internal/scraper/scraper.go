package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/smartphone-scraper/internal/models"
)

var (
	ErrCrawlInProgress = errors.New("crawl already in progress")
	ErrInvalidBaseURL  = errors.New("invalid base listing URL")
)

// Run identifies one crawl and is handed to every sink.
type Run struct {
	ID         uuid.UUID
	BaseURL    string
	Pages      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Result summarises a finished crawl.
type Result struct {
	Run
	Products   []models.Product
	Collected  int
	Duplicates int
}

// Sink persists the final, deduplicated collection of a successful crawl.
type Sink interface {
	Name() string
	Write(ctx context.Context, run Run, products []models.Product) error
}

// Options configures a Crawler. Consecutive page fetches are spaced by a
// random delay in [PageDelay, PageDelayMax); a PageDelayMax not above
// PageDelay means a fixed PageDelay.
type Options struct {
	BaseURL      string
	PageDelay    time.Duration
	PageDelayMax time.Duration
}
