// Package config loads the service configuration from environment variables
// (spec.md §6).
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL                 string
	ServerHost                  string
	ServerPort                  int
	WorkerIntervalSecs          int
	WorkerReportsBatchSize      int
	MaxConcurrentCompressions   int
	RateLimitGlobalPerSec       int
	RateLimitPerIPPerSec        int
	RateLimitPerProjectPerSec   int
	RateLimitBurstMultiplier    int
	AnalyticsFlushIntervalSecs  int
	AnalyticsRetentionDays      int
	AnalyticsBufferSize         int
	DatabasePoolSize            int
	DatabasePoolTimeoutSecs     int
	MaxCompressedPayloadBytes   int64
	MaxUncompressedPayloadBytes int64

	// Additive, optional ambient-ops settings (not in spec.md §6's required list).
	KafkaBrokers   string // empty disables internal/queueevents
	KafkaTopic     string
	S3Bucket       string // empty disables internal/archivemirror
	AdminJWTSecret string // empty disables internal/adminapi
}

const (
	defaultWorkerBudgetFraction = 0.9
)

// Load reads every variable spec.md §6 lists as required, failing fast if any
// is absent, matching kernel/internal/config.LoadFromEnv's "fail loud" style.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:                 os.Getenv("DATABASE_URL"),
		ServerHost:                  os.Getenv("SERVER_HOST"),
		KafkaBrokers:                os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:                  getEnv("KAFKA_DIGEST_TOPIC", "crash-cache.reports.digested"),
		S3Bucket:                    os.Getenv("ARCHIVE_MIRROR_S3_BUCKET"),
		AdminJWTSecret:              os.Getenv("ADMIN_JWT_SECRET"),
	}

	var err error
	if cfg.ServerPort, err = requireInt("SERVER_PORT"); err != nil {
		return Config{}, err
	}
	if cfg.WorkerIntervalSecs, err = requireInt("WORKER_INTERVAL_SECS"); err != nil {
		return Config{}, err
	}
	if cfg.WorkerReportsBatchSize, err = requireInt("WORKER_REPORTS_BATCH_SIZE"); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrentCompressions, err = requireInt("MAX_CONCURRENT_COMPRESSIONS"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitGlobalPerSec, err = requireInt("RATE_LIMIT_GLOBAL_PER_SEC"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerIPPerSec, err = requireInt("RATE_LIMIT_PER_IP_PER_SEC"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerProjectPerSec, err = requireInt("RATE_LIMIT_PER_PROJECT_PER_SEC"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurstMultiplier, err = requireInt("RATE_LIMIT_BURST_MULTIPLIER"); err != nil {
		return Config{}, err
	}
	if cfg.AnalyticsFlushIntervalSecs, err = requireInt("ANALYTICS_FLUSH_INTERVAL_SECS"); err != nil {
		return Config{}, err
	}
	if cfg.AnalyticsRetentionDays, err = requireInt("ANALYTICS_RETENTION_DAYS"); err != nil {
		return Config{}, err
	}
	if cfg.AnalyticsBufferSize, err = requireInt("ANALYTICS_BUFFER_SIZE"); err != nil {
		return Config{}, err
	}
	if cfg.DatabasePoolSize, err = requireInt("DATABASE_POOL_SIZE"); err != nil {
		return Config{}, err
	}
	if cfg.DatabasePoolTimeoutSecs, err = requireInt("DATABASE_POOL_TIMEOUT_SECS"); err != nil {
		return Config{}, err
	}
	if cfg.MaxCompressedPayloadBytes, err = requireInt64("MAX_COMPRESSED_PAYLOAD_BYTES"); err != nil {
		return Config{}, err
	}
	if cfg.MaxUncompressedPayloadBytes, err = requireInt64("MAX_UNCOMPRESSED_PAYLOAD_BYTES"); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL required")
	}
	if cfg.ServerHost == "" {
		return Config{}, fmt.Errorf("SERVER_HOST required")
	}

	return cfg, nil
}

// WorkerBudgetSecs returns the per-tick time budget, ~90% of the interval.
func (c Config) WorkerBudgetSecs() float64 {
	return float64(c.WorkerIntervalSecs) * defaultWorkerBudgetFraction
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func requireInt(key string) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func requireInt64(key string) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}
