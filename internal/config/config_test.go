package config_test

import (
	"testing"

	"github.com/evident-labs/evidcore/internal/config"
	"github.com/stretchr/testify/assert"
)

// TestLoad_Defaults verifies Load() returns safe local defaults when no
// environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("STORAGE_ROOT", "")
	t.Setenv("STAGING_ROOT", "")
	t.Setenv("EXPORT_ROOT", "")
	t.Setenv("RELATIONAL_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, "evidence_store", cfg.StorageRoot)
	assert.Equal(t, "uploads/staging", cfg.StagingRoot)
	assert.Equal(t, "exports", cfg.ExportRoot)
	assert.Contains(t, cfg.RelationalDSN, "localhost")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

// TestLoad_Overrides verifies environment variables override defaults.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("STORAGE_ROOT", "/data/evidence")
	t.Setenv("S3_BUCKET", "evidence-prod")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "s3", cfg.StorageBackend)
	assert.Equal(t, "/data/evidence", cfg.StorageRoot)
	assert.Equal(t, "evidence-prod", cfg.S3Bucket)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
}
