package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	AllowedOrigins  string

	// Persistence (opaque key-value store)
	KVBackend   string // "memory", "postgres" or "s3"
	DatabaseURL string
	S3Bucket    string
	S3Region    string
	AWSEndpoint string // For LocalStack in development
	KVPrefix    string

	// Schedule generation
	GenerationInterval time.Duration
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:               getEnvInt("PORT", 8080),
		Environment:        getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		KVBackend:          getEnv("KV_BACKEND", "memory"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Region:           getEnv("S3_REGION", "ap-south-1"),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
		KVPrefix:           getEnv("KV_PREFIX", "khata"),
		GenerationInterval: getEnvDuration("GENERATION_INTERVAL", 6*time.Hour),
	}

	switch cfg.KVBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when KV_BACKEND=postgres")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when KV_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unknown KV_BACKEND %q (expected memory, postgres or s3)", cfg.KVBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
