// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the snapshot database (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Engine defaults; per-request options can override them.
	TargetVolatility float64
	MaxAssetWeight   float64
	RiskFreeRate     float64

	// Snapshot retention for the cron pruning job.
	SnapshotRetentionDays int

	S3 S3Config
}

// S3Config holds the optional snapshot offload configuration. Offload is
// enabled when Bucket is non-empty.
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory: ALLOCATOR_DATA_DIR or ./data, always
	// absolute, created if missing.
	dataDir := getEnv("ALLOCATOR_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:               absDataDir,
		Port:                  getEnvAsInt("PORT", 8010),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		TargetVolatility:      getEnvAsFloat("TARGET_VOLATILITY", 0.15),
		MaxAssetWeight:        getEnvAsFloat("MAX_ASSET_WEIGHT", 0.30),
		RiskFreeRate:          getEnvAsFloat("RISK_FREE_RATE", 0.02),
		SnapshotRetentionDays: getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 90),
		S3: S3Config{
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("S3_REGION", "eu-central-1"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
	}

	if cfg.TargetVolatility <= 0 {
		return nil, fmt.Errorf("TARGET_VOLATILITY must be positive, got %v", cfg.TargetVolatility)
	}
	if cfg.MaxAssetWeight <= 0 || cfg.MaxAssetWeight > 1 {
		return nil, fmt.Errorf("MAX_ASSET_WEIGHT must be in (0, 1], got %v", cfg.MaxAssetWeight)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable with a fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float with a fallback
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
