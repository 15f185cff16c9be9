// Package config loads the server configuration from the environment. A
// .env file in the working directory is honored when present.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/fathmn/jokari-knowledge-hub/internal/db"
	"github.com/fathmn/jokari-knowledge-hub/internal/storage"
)

// ExtractorConfig selects and configures the structured extractor.
type ExtractorConfig struct {
	// Provider is "stub" or "claude".
	Provider string
	APIKey   string
	Model    string
}

// WorkerConfig tunes the ingestion worker.
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// Config is the full server configuration.
type Config struct {
	Port      string
	Redis     db.RedisConfig
	Minio     storage.Config
	Extractor ExtractorConfig
	Worker    WorkerConfig
}

// Load reads the configuration from the environment, applying defaults for
// anything unset.
func Load(logger *log.Logger) Config {
	if err := godotenv.Load(); err == nil {
		logger.Println("[CONFIG] Loaded .env file")
	}

	return Config{
		Port:      getEnv("PORT", "8080"),
		Redis:     getRedisConfig(),
		Minio:     getMinioConfig(),
		Extractor: getExtractorConfig(),
		Worker:    getWorkerConfig(),
	}
}

// getRedisConfig reads Redis configuration from environment variables
func getRedisConfig() db.RedisConfig {
	config := db.DefaultRedisConfig()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Host = host
	}
	if port := getEnvInt("REDIS_PORT", 0); port > 0 {
		config.Port = port
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Password = password
	}
	if dbNum := getEnvInt("REDIS_DB", -1); dbNum >= 0 {
		config.DB = dbNum
	}
	if poolSize := getEnvInt("REDIS_POOL_SIZE", 0); poolSize > 0 {
		config.PoolSize = poolSize
	}

	return config
}

// getMinioConfig reads object storage configuration from environment variables
func getMinioConfig() storage.Config {
	return storage.Config{
		Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    getEnv("MINIO_BUCKET", "knowledge-hub"),
		UseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}
}

// getExtractorConfig reads extractor configuration from environment variables
func getExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Provider: getEnv("EXTRACTOR_PROVIDER", "stub"),
		APIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		Model:    os.Getenv("EXTRACTOR_MODEL"),
	}
}

// getWorkerConfig reads ingestion worker tuning from environment variables
func getWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:  getEnvInt("WORKER_CONCURRENCY", 3),
		PollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		MaxRetries:   getEnvInt("WORKER_MAX_RETRIES", 3),
		RetryDelay:   getEnvDuration("WORKER_RETRY_DELAY", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
