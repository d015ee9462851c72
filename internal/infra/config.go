package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// Optional; generation records are not persisted when empty.
	DatabaseURL string

	StoragePath    string
	StorageBucket  string
	StorageBaseURL string

	GeoIPDBPath   string
	DefaultLocale string

	KlingBaseURL   string
	HeygenBaseURL  string
	MinimaxBaseURL string
	ScribeBaseURL  string

	KlingPollInterval   time.Duration
	KlingMaxWait        time.Duration
	HeygenPollInterval  time.Duration
	HeygenMaxWait       time.Duration
	MinimaxPollInterval time.Duration
	MinimaxMaxWait      time.Duration
	ScribePollInterval  time.Duration
	ScribeMaxWait       time.Duration

	TokenRefreshMargin time.Duration

	DefaultAvatarID string
	DefaultVoiceID  string
	CatalogCacheTTL time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerSec  float64
	RateLimitBurst   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBucket:  getEnv("STORAGE_BUCKET", "media"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),

		KlingBaseURL:   getEnv("KLING_BASE_URL", "https://api.klingai.com"),
		HeygenBaseURL:  getEnv("HEYGEN_BASE_URL", "https://api.heygen.com"),
		MinimaxBaseURL: getEnv("MINIMAX_BASE_URL", "https://api.minimax.chat"),
		ScribeBaseURL:  getEnv("SCRIBE_BASE_URL", "https://api.scribe.dev"),

		KlingPollInterval:   time.Second * time.Duration(getEnvInt("KLING_POLL_INTERVAL_SECONDS", 8)),
		KlingMaxWait:        time.Second * time.Duration(getEnvInt("KLING_MAX_WAIT_SECONDS", 720)),
		HeygenPollInterval:  time.Second * time.Duration(getEnvInt("HEYGEN_POLL_INTERVAL_SECONDS", 10)),
		HeygenMaxWait:       time.Second * time.Duration(getEnvInt("HEYGEN_MAX_WAIT_SECONDS", 900)),
		MinimaxPollInterval: time.Second * time.Duration(getEnvInt("MINIMAX_POLL_INTERVAL_SECONDS", 6)),
		MinimaxMaxWait:      time.Second * time.Duration(getEnvInt("MINIMAX_MAX_WAIT_SECONDS", 600)),
		ScribePollInterval:  time.Second * time.Duration(getEnvInt("SCRIBE_POLL_INTERVAL_SECONDS", 6)),
		ScribeMaxWait:       time.Second * time.Duration(getEnvInt("SCRIBE_MAX_WAIT_SECONDS", 600)),

		TokenRefreshMargin: time.Second * time.Duration(getEnvInt("TOKEN_REFRESH_MARGIN_SECONDS", 300)),

		DefaultAvatarID: getEnv("DEFAULT_AVATAR_ID", "Daisy-inskirt-20220818"),
		DefaultVoiceID:  getEnv("DEFAULT_VOICE_ID", "2d5b0e6cf36f460aa7fc47e3eee4ba54"),
		CatalogCacheTTL: time.Second * time.Duration(getEnvInt("CATALOG_CACHE_TTL_SECONDS", 600)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 1200)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerSec:  getEnvFloat("RATE_LIMIT_PER_SECOND", 2),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 5),
	}

	if cfg.StorageBaseURL == "" {
		return nil, fmt.Errorf("STORAGE_BASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
