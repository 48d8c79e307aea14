package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/maltedev/smartphone-scraper/internal/fetcher"
	"github.com/maltedev/smartphone-scraper/internal/models"
	"github.com/maltedev/smartphone-scraper/internal/parser"
	"github.com/maltedev/smartphone-scraper/internal/ratelimit"
)

// Crawler walks every listing page in order and hands the deduplicated
// records to its sinks. Pages are never fetched concurrently.
type Crawler struct {
	fetcher fetcher.Fetcher
	parser  parser.Parser
	limiter ratelimit.RateLimiter
	sinks   []Sink
	baseURL *url.URL
	logger  *slog.Logger

	running sync.Mutex
}

func NewCrawler(f fetcher.Fetcher, p parser.Parser, opts Options, logger *slog.Logger, sinks ...Sink) (*Crawler, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, opts.BaseURL)
	}

	return &Crawler{
		fetcher: f,
		parser:  p,
		limiter: ratelimit.NewSimpleRateLimiter(opts.PageDelay, max(opts.PageDelay, opts.PageDelayMax)),
		sinks:   sinks,
		baseURL: base,
		logger:  logger.With("component", "crawler"),
	}, nil
}

// PageURL returns the listing address of page n.
func PageURL(base *url.URL, n int) string {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// Run performs one complete crawl. Any fetch, structure or parse failure
// aborts the run before a single sink is written.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	if !c.running.TryLock() {
		return nil, ErrCrawlInProgress
	}
	defer c.running.Unlock()

	run := Run{
		ID:        uuid.New(),
		BaseURL:   c.baseURL.String(),
		StartedAt: time.Now(),
	}
	logger := c.logger.With("run_id", run.ID.String())
	logger.Info("starting crawl", "base_url", run.BaseURL)

	first, err := c.fetchPage(ctx, logger, 1)
	if err != nil {
		return nil, err
	}

	maxPage, err := c.parser.MaxPage(first)
	if err != nil {
		return nil, fmt.Errorf("failed to determine page count: %w", err)
	}
	logger.Info("determined page count", "max_page", maxPage)

	var collected []models.Product
	for n := 1; n <= maxPage; n++ {
		doc := first
		if n > 1 {
			if doc, err = c.fetchPage(ctx, logger, n); err != nil {
				return nil, err
			}
		}

		before := len(collected)
		for product, err := range c.parser.Products(doc) {
			if err != nil {
				return nil, fmt.Errorf("failed to walk page %d: %w", n, err)
			}
			collected = append(collected, product)
		}
		logger.Info("walked page", "page", n, "records", len(collected)-before)
	}

	products := models.Dedupe(collected)
	run.Pages = maxPage
	run.FinishedAt = time.Now()

	logger.Info("finalizing crawl",
		"pages", run.Pages,
		"collected", len(collected),
		"records", len(products),
	)

	for _, sink := range c.sinks {
		if err := sink.Write(ctx, run, products); err != nil {
			return nil, fmt.Errorf("failed to write %s sink: %w", sink.Name(), err)
		}
		logger.Debug("wrote sink", "sink", sink.Name(), "records", len(products))
	}

	logger.Info("crawl completed", "duration", run.FinishedAt.Sub(run.StartedAt))

	return &Result{
		Run:        run,
		Products:   products,
		Collected:  len(collected),
		Duplicates: len(collected) - len(products),
	}, nil
}

func (c *Crawler) fetchPage(ctx context.Context, logger *slog.Logger, n int) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait before page %d: %w", n, err)
	}

	pageURL := PageURL(c.baseURL, n)
	logger.Info("fetching page", "page", n, "url", pageURL)

	doc, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", n, err)
	}
	return doc, nil
}
