package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the funnel-engine service.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Ledger    LedgerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Geo       GeoConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the durable event-store tier. The tier is
// used only when URL is set.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// SQLiteConfig configures the embedded event-store tier, used when no
// database URL is configured.
type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig configures the aggregation result cache.
type CacheConfig struct {
	TTL time.Duration
}

// LedgerConfig configures the spreadsheet ledger collaborator.
type LedgerConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled    bool
	TrackRPS   float64
	TrackBurst int
	AdminRPS   float64
	AdminBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP enrichment of ingested events.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("FUNNEL_HTTP_ADDR", ":8080"),
			Env:             getEnv("FUNNEL_ENV", "development"),
			ShutdownTimeout: getDurationEnv("FUNNEL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("FUNNEL_DATABASE_URL", ""),
			MaxConns: getIntEnv("FUNNEL_DB_MAX_CONNS", 10),
			MinConns: getIntEnv("FUNNEL_DB_MIN_CONNS", 2),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("FUNNEL_SQLITE_PATH", "data/funnel.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("FUNNEL_REDIS_ADDR", ""),
			Password: getEnv("FUNNEL_REDIS_PASSWORD", ""),
			DB:       getIntEnv("FUNNEL_REDIS_DB", 0),
		},
		Cache: CacheConfig{
			TTL: getDurationEnv("FUNNEL_CACHE_TTL", 20*time.Second),
		},
		Ledger: LedgerConfig{
			URL:     getEnv("FUNNEL_LEDGER_URL", ""),
			APIKey:  getEnv("FUNNEL_LEDGER_API_KEY", ""),
			Timeout: getDurationEnv("FUNNEL_LEDGER_TIMEOUT", 15*time.Second),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("FUNNEL_AUTH_ENABLED", true),
			MasterKey: getEnv("FUNNEL_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("FUNNEL_AUTH_SKIP_PATHS", []string{"/health", "/metrics", "/events"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getBoolEnv("FUNNEL_RATE_LIMIT_ENABLED", true),
			TrackRPS:   getFloatEnv("FUNNEL_RATE_LIMIT_TRACK_RPS", 200),
			TrackBurst: getIntEnv("FUNNEL_RATE_LIMIT_TRACK_BURST", 50),
			AdminRPS:   getFloatEnv("FUNNEL_RATE_LIMIT_ADMIN_RPS", 50),
			AdminBurst: getIntEnv("FUNNEL_RATE_LIMIT_ADMIN_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("FUNNEL_LOG_LEVEL", "info"),
			Format: getEnv("FUNNEL_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("FUNNEL_METRICS_ENABLED", true),
			Path:    getEnv("FUNNEL_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("FUNNEL_GEO_ENABLED", false),
			DatabasePath: getEnv("FUNNEL_GEO_DB_PATH", "data/GeoLite2-City.mmdb"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("FUNNEL_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("FUNNEL_CACHE_TTL must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
