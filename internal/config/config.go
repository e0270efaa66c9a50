// Package config loads service configuration from the environment. A
// .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP
	ListenAddr     string
	MetricsAddr    string
	RequestTimeout time.Duration

	// Embedding service
	ClipURL     string
	ClipModel   string
	ClipTimeout time.Duration

	// Qdrant; when Host is empty the in-memory store is used.
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantTLS    bool

	// Optional Redis result cache; empty addr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Seeding
	MetadataPath   string
	ImagesDir      string
	SeedWorkers    int
	SeedBatchSize  int
	SeedSkipLimit  int
	FetchTimeout   time.Duration
	SeedOnStartup  bool
	BlacklistPath  string
	SearchLimit    int
	UploadMaxBytes int64

	// Logging
	LogFile  string
	LogLevel string
}

// Load reads the environment, applying defaults for everything except the
// CLIP service URL.
func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{}

	cfg.ClipURL = getEnv("CLIP_URL", "")
	if cfg.ClipURL == "" {
		return cfg, fmt.Errorf("missing required environment variable: CLIP_URL")
	}
	cfg.ClipModel = getEnv("CLIP_MODEL", "openai/clip-vit-base-patch32")
	cfg.ClipTimeout = getDuration("CLIP_TIMEOUT", 30*time.Second)

	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9091")
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", 30*time.Second)

	cfg.QdrantHost = getEnv("QDRANT_CLOUD_HOST", "")
	cfg.QdrantPort = getInt("QDRANT_PORT", 6334)
	cfg.QdrantAPIKey = getEnv("QDRANT_CLOUD_API_KEY", "")
	cfg.QdrantTLS = getBool("QDRANT_TLS", cfg.QdrantHost != "")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)

	cfg.MetadataPath = getEnv("METADATA_PATH", "scraper/data/popular_items_full.jsonl")
	cfg.ImagesDir = getEnv("IMAGES_DIR", "scraper/data/raw_images")
	cfg.SeedWorkers = getInt("SEED_WORKERS", 8)
	cfg.SeedBatchSize = getInt("SEED_BATCH_SIZE", 50)
	cfg.SeedSkipLimit = getInt("SEED_SKIP_LIMIT", 200)
	cfg.FetchTimeout = getDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.SeedOnStartup = getBool("SEED_ON_STARTUP", true)
	cfg.BlacklistPath = getEnv("BLACKLIST_PATH", "blacklist.txt")
	cfg.SearchLimit = getInt("SEARCH_LIMIT", 12)
	cfg.UploadMaxBytes = int64(getInt("UPLOAD_MAX_BYTES", 10<<20))

	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer environment variable", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}

func getBool(key string, defaultVal bool) bool {
	raw := strings.ToLower(getEnv(key, ""))
	if raw == "" {
		return defaultVal
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		slog.Warn("Invalid boolean environment variable", "key", key, "value", raw)
		return defaultVal
	}
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration environment variable", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return d
}

// LogLevelVar translates the configured level name into a slog level.
func (c Config) LogLevelVar() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
