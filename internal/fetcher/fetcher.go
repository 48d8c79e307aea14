package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

var ErrFetch = errors.New("failed to fetch page")

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher retrieves a page and returns it as a queryable document whose Url
// is set to the address that was fetched.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

type Options struct {
	UserAgent string
	Timeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// HTTPFetcher issues one plain GET per page. Failures are not retried.
type HTTPFetcher struct {
	opts   Options
	logger *slog.Logger
}

func NewHTTPFetcher(opts Options, logger *slog.Logger) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	return &HTTPFetcher{
		opts:   opts,
		logger: logger.With("component", "http_fetcher"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.opts.Timeout)

	var (
		doc      *goquery.Document
		parseErr error
		status   int
	)

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		doc, parseErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if parseErr == nil {
			doc.Url = r.Request.URL
		}
	})

	start := time.Now()
	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFetch, pageURL, err)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w %s: failed to parse HTML: %w", ErrFetch, pageURL, parseErr)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w %s: empty response", ErrFetch, pageURL)
	}

	f.logger.Debug("fetched page", "url", pageURL, "status", status, "duration", time.Since(start))
	return doc, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
