package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maltedev/smartphone-scraper/internal/fetcher"
	"github.com/maltedev/smartphone-scraper/internal/models"
	"github.com/maltedev/smartphone-scraper/internal/scraper"
	"github.com/maltedev/smartphone-scraper/internal/storage"
)

type CrawlRunner interface {
	Run(ctx context.Context) (*scraper.Result, error)
}

type SnapshotLoader interface {
	Load() ([]models.Product, error)
}

type Handlers struct {
	crawler  CrawlRunner
	snapshot SnapshotLoader
	logger   *slog.Logger
}

func NewHandlers(crawler CrawlRunner, snapshot SnapshotLoader, logger *slog.Logger) *Handlers {
	return &Handlers{
		crawler:  crawler,
		snapshot: snapshot,
		logger:   logger.With("component", "api"),
	}
}

// CrawlResponse summarises a crawl triggered over HTTP.
type CrawlResponse struct {
	RunID      string `json:"run_id"`
	Pages      int    `json:"pages"`
	Records    int    `json:"records"`
	Duplicates int    `json:"duplicates"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListProducts serves the latest snapshot, optionally filtered by ?available=.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	var filter *bool
	if raw := r.URL.Query().Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "available must be true or false", r.URL.Path)
			return
		}
		filter = &available
	}

	products, err := h.snapshot.Load()
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			WriteError(w, http.StatusNotFound, "no crawl has completed yet", r.URL.Path)
			return
		}
		h.logger.Error("failed to load snapshot", "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error(), r.URL.Path)
		return
	}

	if filter != nil {
		filtered := make([]models.Product, 0, len(products))
		for _, p := range products {
			if p.IsAvailable() == *filter {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if products == nil {
		products = []models.Product{}
	}

	h.respondJSON(w, http.StatusOK, products)
}

// TriggerCrawl runs one crawl synchronously.
func (h *Handlers) TriggerCrawl(w http.ResponseWriter, r *http.Request) {
	result, err := h.crawler.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, scraper.ErrCrawlInProgress):
			status = http.StatusConflict
		case errors.Is(err, fetcher.ErrFetch):
			status = http.StatusBadGateway
		}

		h.logger.Error("crawl failed", "error", err, "status", status)
		WriteError(w, status, err.Error(), r.URL.Path)
		return
	}

	h.respondJSON(w, http.StatusOK, CrawlResponse{
		RunID:      result.ID.String(),
		Pages:      result.Pages,
		Records:    len(result.Products),
		Duplicates: result.Duplicates,
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
