package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/smartphone-scraper/internal/models"
	"github.com/maltedev/smartphone-scraper/internal/scraper"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func isEvent(eventType EventType) func(*redis.XAddArgs) bool {
	return func(args *redis.XAddArgs) bool {
		values, ok := args.Values.(map[string]any)
		return ok && values["event_type"] == string(eventType)
	}
}

func testPublisher(client RedisClient) *Publisher {
	return NewPublisher(client, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRun() scraper.Run {
	return scraper.Run{ID: uuid.New(), Pages: 2, StartedAt: time.Now(), FinishedAt: time.Now()}
}

func products() []models.Product {
	return []models.Product{
		{Title: "iPhone 11", Price: 699.99, CapacityMB: 64000, Colour: "Red", AvailabilityText: "In Stock"},
		{Title: "iPhone 11", Price: 699.99, CapacityMB: 64000, Colour: "Blue", AvailabilityText: "In Stock"},
	}
}

func TestPublisher_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("one entry per record then completion", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		run := testRun()

		var published []*redis.XAddArgs
		mockRedis.On("XAdd", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				published = append(published, args.Get(1).(*redis.XAddArgs))
			}).
			Return(nil)

		err := testPublisher(mockRedis).Write(ctx, run, products())
		require.NoError(t, err)

		require.Len(t, published, 3)
		for _, args := range published {
			assert.Equal(t, DefaultStream, args.Stream)
			values := args.Values.(map[string]any)
			assert.Equal(t, run.ID.String(), values["run_id"])
		}

		first := published[0].Values.(map[string]any)
		assert.Equal(t, string(EventTypeProductCrawled), first["event_type"])
		assert.Equal(t, "0", first["position"])

		var decoded models.Product
		require.NoError(t, json.Unmarshal([]byte(first["payload"].(string)), &decoded))
		assert.Equal(t, "Red", decoded.Colour)
		assert.Contains(t, first["payload"], `"isAvailable":true`)

		last := published[2].Values.(map[string]any)
		assert.Equal(t, string(EventTypeCrawlCompleted), last["event_type"])
		assert.Equal(t, "2", last["records"])
		assert.Equal(t, "2", last["pages"])

		mockRedis.AssertExpectations(t)
	})

	t.Run("empty crawl still completes", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.MatchedBy(isEvent(EventTypeCrawlCompleted))).Return(nil).Once()

		err := testPublisher(mockRedis).Write(ctx, testRun(), nil)
		require.NoError(t, err)

		mockRedis.AssertNumberOfCalls(t, "XAdd", 1)
		mockRedis.AssertExpectations(t)
	})

	t.Run("stops on first redis failure", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

		err := testPublisher(mockRedis).Write(ctx, testRun(), products())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PRODUCT_CRAWLED")
		assert.Contains(t, err.Error(), "connection refused")

		mockRedis.AssertNumberOfCalls(t, "XAdd", 1)
	})

	t.Run("custom stream", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Stream == "stream:custom"
		})).Return(nil)

		p := NewPublisher(mockRedis, "stream:custom", slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, p.Write(ctx, testRun(), products()[:1]))

		mockRedis.AssertNumberOfCalls(t, "XAdd", 2)
	})
}

func TestPublisher_Close(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("Close").Return(nil)

	assert.NoError(t, testPublisher(mockRedis).Close())
	mockRedis.AssertExpectations(t)
}

func TestPublisher_Name(t *testing.T) {
	assert.Equal(t, "redis", testPublisher(new(MockRedisClient)).Name())
}
