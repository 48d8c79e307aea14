package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/smartphone-scraper/internal/models"
	"github.com/maltedev/smartphone-scraper/internal/scraper"
)

var ErrNoSnapshot = errors.New("no snapshot written yet")

// FileSink keeps the latest crawl as a single JSON array on disk.
type FileSink struct {
	mu       sync.RWMutex
	filename string
}

func NewFileSink(filename string) *FileSink {
	return &FileSink{filename: filename}
}

func (fs *FileSink) Name() string { return "file" }

func (fs *FileSink) Path() string { return fs.filename }

func (fs *FileSink) Write(_ context.Context, _ scraper.Run, products []models.Product) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if products == nil {
		products = []models.Product{}
	}

	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}

	if dir := filepath.Dir(fs.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Readers never observe a half-written file.
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}

	if err := os.Rename(tmpFile, fs.filename); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to replace %s: %w", fs.filename, err)
	}

	return nil
}

// Load reads back the last written snapshot.
func (fs *FileSink) Load() ([]models.Product, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read %s: %w", fs.filename, err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", fs.filename, err)
	}
	return products, nil
}

var _ scraper.Sink = (*FileSink)(nil)
