package browser

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maltedev/smartphone-scraper/internal/fetcher"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.UserAgent != fetcher.DefaultUserAgent {
		t.Errorf("Expected default user agent, got %s", opts.UserAgent)
	}
}

func TestDocumentFromHTML(t *testing.T) {
	doc, err := documentFromHTML(`<html><body><div id="products"><p>Page 1 of 3</p></div></body></html>`,
		"https://www.magpiehq.com/developer-challenge/smartphones?page=1")
	if err != nil {
		t.Fatalf("documentFromHTML failed: %v", err)
	}

	if got := doc.Find("#products > p").Text(); got != "Page 1 of 3" {
		t.Errorf("Expected summary text, got %q", got)
	}

	if doc.Url == nil || doc.Url.Query().Get("page") != "1" {
		t.Errorf("Expected document url with page=1, got %v", doc.Url)
	}
}

func TestDocumentFromHTMLInvalidURL(t *testing.T) {
	if _, err := documentFromHTML(`<html></html>`, "://bad"); err == nil {
		t.Error("Expected error for invalid page url")
	}
}

func TestCloseOnCancelClosesPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var closed atomic.Int32
	closedCh := make(chan struct{})

	stop := closeOnCancel(ctx, func() error {
		closed.Add(1)
		close(closedCh)
		return nil
	})
	cancel()

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("Expected page to be closed after cancellation")
	}

	stop()
	if got := closed.Load(); got != 1 {
		t.Errorf("Expected close to be called once, got %d", got)
	}
}

func TestCloseOnCancelStoppedFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var closed atomic.Int32

	stop := closeOnCancel(ctx, func() error {
		closed.Add(1)
		return nil
	})
	stop()
	cancel()

	time.Sleep(10 * time.Millisecond)
	if got := closed.Load(); got != 0 {
		t.Errorf("Expected close not to be called after stop, got %d", got)
	}
}
