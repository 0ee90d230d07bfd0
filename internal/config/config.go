package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverFile   = "file"
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	// APIBaseURL selects the remote quiz API host. Every data-bearing call goes there.
	APIBaseURL  string
	HTTPTimeout time.Duration

	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	StoreDriver string
	StoreDir    string
	RedisURL    string
	// SessionSecret seals the persisted token on disk. Empty disables sealing.
	SessionSecret string
	SnapshotTTL   time.Duration

	BatchConcurrency int
	// ReapInterval is how often settled runs are dropped; RunGrace is how long a
	// finished run stays readable first.
	ReapInterval time.Duration
	RunGrace     time.Duration
	// AuthRateLimit is the number of login/register attempts allowed per minute per client.
	AuthRateLimit int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIBaseURL:       strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080/api/v1"), "/"),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		ServerPort:       getEnv("SERVER_PORT", "8090"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		StoreDriver:      getEnv("STORE_DRIVER", StoreDriverFile),
		StoreDir:         getEnv("STORE_DIR", defaultStoreDir()),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionSecret:    getEnv("SESSION_SECRET", ""),
		SnapshotTTL:      time.Duration(getEnvInt("SNAPSHOT_TTL_HOURS", 12)) * time.Hour,
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 8),
		ReapInterval:     time.Duration(getEnvInt("REAP_INTERVAL_SECONDS", 60)) * time.Second,
		RunGrace:         time.Duration(getEnvInt("RUN_GRACE_MINUTES", 10)) * time.Minute,
		AuthRateLimit:    getEnvInt("AUTH_RATE_LIMIT", 10),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func defaultStoreDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/exstem-runner"
	}
	return ".exstem-runner"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
