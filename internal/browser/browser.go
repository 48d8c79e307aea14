package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/smartphone-scraper/internal/fetcher"
	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      fetcher.DefaultUserAgent,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-GB",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		},
	}
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// Fetch renders a page once and hands its final DOM to goquery. There is no
// retry; any navigation failure or non-2xx status is returned as ErrFetch.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", fetcher.ErrFetch, pageURL, err)
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", fetcher.ErrFetch, pageURL, err)
	}
	defer page.Close()

	stop := closeOnCancel(ctx, func() error { return page.Close() })
	defer stop()

	resp, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w %s: %w", fetcher.ErrFetch, pageURL, ctxErr)
		}
		return nil, fmt.Errorf("%w %s: failed to navigate: %w", fetcher.ErrFetch, pageURL, err)
	}
	if resp != nil && !resp.Ok() {
		return nil, fmt.Errorf("%w %s: status %d", fetcher.ErrFetch, pageURL, resp.Status())
	}

	html, err := page.Content()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w %s: %w", fetcher.ErrFetch, pageURL, ctxErr)
		}
		return nil, fmt.Errorf("%w %s: failed to get page content: %w", fetcher.ErrFetch, pageURL, err)
	}

	doc, err := documentFromHTML(html, page.URL())
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", fetcher.ErrFetch, pageURL, err)
	}

	b.logger.Debug("rendered page", "url", pageURL)
	return doc, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// closeOnCancel calls closeFn once if ctx is done before stop is called.
// Playwright calls take no context, so closing the page is what aborts them.
func closeOnCancel(ctx context.Context, closeFn func() error) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			_ = closeFn()
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// documentFromHTML parses rendered markup and records the address it came from
// so relative references can be resolved.
func documentFromHTML(html, pageURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	doc.Url = u

	return doc, nil
}

var _ fetcher.Fetcher = (*Browser)(nil)
