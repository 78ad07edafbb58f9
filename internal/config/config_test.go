package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"DATABASE_URL":                   "postgres://localhost/crashcache",
		"SERVER_HOST":                    "0.0.0.0",
		"SERVER_PORT":                    "8080",
		"WORKER_INTERVAL_SECS":           "10",
		"WORKER_REPORTS_BATCH_SIZE":      "100",
		"MAX_CONCURRENT_COMPRESSIONS":    "4",
		"RATE_LIMIT_GLOBAL_PER_SEC":      "0",
		"RATE_LIMIT_PER_IP_PER_SEC":      "0",
		"RATE_LIMIT_PER_PROJECT_PER_SEC": "0",
		"RATE_LIMIT_BURST_MULTIPLIER":    "2",
		"ANALYTICS_FLUSH_INTERVAL_SECS":  "30",
		"ANALYTICS_RETENTION_DAYS":       "7",
		"ANALYTICS_BUFFER_SIZE":          "1024",
		"DATABASE_POOL_SIZE":             "10",
		"DATABASE_POOL_TIMEOUT_SECS":     "5",
		"MAX_COMPRESSED_PAYLOAD_BYTES":   "1048576",
		"MAX_UNCOMPRESSED_PAYLOAD_BYTES": "5242880",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadSucceedsWithAllRequiredVars(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, int64(1048576), cfg.MaxCompressedPayloadBytes)
	require.InDelta(t, 9.0, cfg.WorkerBudgetSecs(), 0.001)
}

func TestLoadFailsOnMissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFailsOnMissingNumericVar(t *testing.T) {
	setRequiredEnv(t)
	require.NoError(t, os.Unsetenv("SERVER_PORT"))

	_, err := Load()
	require.Error(t, err)
}
