package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/maltedev/smartphone-scraper/internal/models"
	"github.com/maltedev/smartphone-scraper/internal/scraper"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeProductCrawled is published once per deduplicated record
	EventTypeProductCrawled EventType = "PRODUCT_CRAWLED"
	// EventTypeCrawlCompleted closes the records of a run
	EventTypeCrawlCompleted EventType = "CRAWL_COMPLETED"

	DefaultStream = "stream:smartphones"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Publisher appends every record of a successful crawl to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) Name() string { return "redis" }

func (p *Publisher) Write(ctx context.Context, run scraper.Run, products []models.Product) error {
	runID := run.ID.String()

	for i, product := range products {
		payload, err := json.Marshal(product)
		if err != nil {
			return fmt.Errorf("failed to marshal product %d: %w", i, err)
		}

		if err := p.publish(ctx, runID, EventTypeProductCrawled, map[string]any{
			"position": strconv.Itoa(i),
			"payload":  string(payload),
		}); err != nil {
			return err
		}
	}

	if err := p.publish(ctx, runID, EventTypeCrawlCompleted, map[string]any{
		"pages":   strconv.Itoa(run.Pages),
		"records": strconv.Itoa(len(products)),
	}); err != nil {
		return err
	}

	p.logger.Info("published crawl events",
		"stream", p.stream,
		"run_id", runID,
		"records", len(products),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, runID string, eventType EventType, fields map[string]any) error {
	values := map[string]any{
		"run_id":     runID,
		"event_type": string(eventType),
		"timestamp":  strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	for k, v := range fields {
		values[k] = v
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish %s to redis: %w", eventType, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}

var _ scraper.Sink = (*Publisher)(nil)
