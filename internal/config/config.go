// Package config loads 12-factor environment configuration with safe
// local defaults, in the shape of the teacher repo's config package.
package config

import "os"

// Config holds process-wide configuration for the evidence core.
type Config struct {
	LogLevel string

	StorageBackend string // "local" or "s3"
	StorageRoot    string // local filesystem root
	S3Bucket       string
	S3Endpoint     string
	S3Region       string

	StagingRoot string
	ExportRoot  string

	RelationalDSN string // Postgres DSN for the relational metadata adapter
	RedisAddr     string // distributed per-manifest lock backend

	OTelEndpoint string
}

// Load reads configuration from the environment, falling back to
// development-friendly defaults when a variable is unset.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	storageBackend := os.Getenv("STORAGE_BACKEND")
	if storageBackend == "" {
		storageBackend = "local"
	}

	storageRoot := os.Getenv("STORAGE_ROOT")
	if storageRoot == "" {
		storageRoot = "evidence_store"
	}

	stagingRoot := os.Getenv("STAGING_ROOT")
	if stagingRoot == "" {
		stagingRoot = "uploads/staging"
	}

	exportRoot := os.Getenv("EXPORT_ROOT")
	if exportRoot == "" {
		exportRoot = "exports"
	}

	relationalDSN := os.Getenv("RELATIONAL_DSN")
	if relationalDSN == "" {
		relationalDSN = "postgres://evidcore@localhost:5433/evidcore?sslmode=disable"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return &Config{
		LogLevel:       logLevel,
		StorageBackend: storageBackend,
		StorageRoot:    storageRoot,
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       os.Getenv("S3_REGION"),
		StagingRoot:    stagingRoot,
		ExportRoot:     exportRoot,
		RelationalDSN:  relationalDSN,
		RedisAddr:      redisAddr,
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}
