package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/maltedev/smartphone-scraper/internal/fetcher"
)

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	DefaultBaseURL    = "https://www.magpiehq.com/developer-challenge/smartphones"
	DefaultOutputPath = "output.json"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	BaseURL    string
	OutputPath string
	FetchMode  string
	UserAgent  string
	Timeout    time.Duration
	PageDelay  time.Duration

	// PageDelayMax enables jitter when above PageDelay.
	PageDelayMax time.Duration
}

type BrowserConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

// DatabaseConfig is only used when Enabled, which is derived from DB_HOST.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:    getEnvOrDefault("SCRAPER_BASE_URL", DefaultBaseURL),
			OutputPath: getEnvOrDefault("SCRAPER_OUTPUT_PATH", DefaultOutputPath),
			FetchMode:  getEnvOrDefault("SCRAPER_FETCH_MODE", FetchModeHTTP),
			UserAgent:  getEnvOrDefault("SCRAPER_USER_AGENT", fetcher.DefaultUserAgent),
			Timeout:    getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			PageDelay:  getDurationOrDefault("SCRAPER_PAGE_DELAY", 0),

			PageDelayMax: getDurationOrDefault("SCRAPER_PAGE_DELAY_MAX", 0),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-GB"),
		},
		Database: DatabaseConfig{
			Enabled:  os.Getenv("DB_HOST") != "",
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "smartphones"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),

			MaxConns:        getIntOrDefault("DB_MAX_CONNS", 4),
			MinConns:        getIntOrDefault("DB_MIN_CONNS", 0),
			MaxConnLifetime: getDurationOrDefault("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getDurationOrDefault("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  os.Getenv("REDIS_ADDR") != "",
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:smartphones"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Scraper.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SCRAPER_BASE_URL must be an absolute URL, got %q", c.Scraper.BaseURL)
	}

	if c.Scraper.OutputPath == "" {
		return fmt.Errorf("SCRAPER_OUTPUT_PATH must not be empty")
	}

	if c.Scraper.FetchMode != FetchModeHTTP && c.Scraper.FetchMode != FetchModeBrowser {
		return fmt.Errorf("SCRAPER_FETCH_MODE must be %q or %q, got %q", FetchModeHTTP, FetchModeBrowser, c.Scraper.FetchMode)
	}

	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("SCRAPER_TIMEOUT must be positive")
	}

	if c.Scraper.PageDelay < 0 {
		return fmt.Errorf("SCRAPER_PAGE_DELAY cannot be negative")
	}

	if c.Scraper.PageDelayMax != 0 && c.Scraper.PageDelayMax < c.Scraper.PageDelay {
		return fmt.Errorf("SCRAPER_PAGE_DELAY cannot be greater than SCRAPER_PAGE_DELAY_MAX")
	}

	if c.Database.Enabled {
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be at least 1")
		}
		if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
		}
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %q", c.Server.Port)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
