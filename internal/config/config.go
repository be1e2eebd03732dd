// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muaviaUsmani/courier/internal/logger"
)

// Config holds all configuration for the Courier application
type Config struct {
	// RedisURL is the connection URL for the backing store
	RedisURL string
	// APIPort is the port the admin API server listens on
	APIPort string
	// WorkerConcurrency is the number of concurrent delivery workers
	WorkerConcurrency int
	// PollInterval is how long a worker sleeps when the queue is empty
	PollInterval time.Duration
	// JanitorInterval is how often maintenance (promotion, reaping, retention) runs
	JanitorInterval time.Duration
	// ReapStaleAfter is the age past which an ACTIVE reservation is considered
	// abandoned and reset to WAITING
	ReapStaleAfter time.Duration
	// CompletedRetentionAge bounds how long completed main-queue jobs are kept
	CompletedRetentionAge time.Duration
	// CompletedRetentionCount bounds how many completed main-queue jobs are kept
	CompletedRetentionCount int
	// SerializationFormat selects the wire encoding for stored job records,
	// "json" or "protobuf"
	SerializationFormat string
	// DeadLetterAlertsEnabled turns on admin alert emails for dead-lettered messages
	DeadLetterAlertsEnabled bool
	// AdminAlertEmails lists recipients for dead letter alerts
	AdminAlertEmails []string
	// SMTPAddr is the host:port of the outbound SMTP server
	SMTPAddr string
	// SMTPUsername authenticates against the SMTP server (optional)
	SMTPUsername string
	// SMTPPassword authenticates against the SMTP server (optional)
	SMTPPassword string
	// SMTPFrom is the default from-address for email deliveries and alerts
	SMTPFrom string
	// Logging configuration
	Logging *logger.Config
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379"),
		APIPort:                 getEnv("API_PORT", "8080"),
		WorkerConcurrency:       getEnvAsInt("WORKER_CONCURRENCY", 5),
		PollInterval:            getEnvAsDuration("POLL_INTERVAL", 100*time.Millisecond),
		JanitorInterval:         getEnvAsDuration("JANITOR_INTERVAL", 1*time.Second),
		ReapStaleAfter:          getEnvAsDuration("REAP_STALE_AFTER", 60*time.Second),
		CompletedRetentionAge:   getEnvAsDuration("COMPLETED_RETENTION_AGE", 1*time.Hour),
		CompletedRetentionCount: getEnvAsInt("COMPLETED_RETENTION_COUNT", 1000),
		SerializationFormat:     getEnv("SERIALIZATION_FORMAT", "json"),
		DeadLetterAlertsEnabled: getEnvAsBool("DEAD_LETTER_ALERTS_ENABLED", false),
		AdminAlertEmails:        getEnvAsStringSlice("ADMIN_ALERT_EMAILS", nil),
		SMTPAddr:                getEnv("SMTP_ADDR", ""),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:                getEnv("SMTP_FROM", "no-reply@localhost"),
		Logging:                 loadLoggingConfig(),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL cannot be empty")
	}
	if cfg.APIPort == "" {
		return nil, fmt.Errorf("API_PORT cannot be empty")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.ReapStaleAfter <= 0 {
		return nil, fmt.Errorf("REAP_STALE_AFTER must be positive")
	}
	if cfg.CompletedRetentionCount < 1 {
		return nil, fmt.Errorf("COMPLETED_RETENTION_COUNT must be at least 1")
	}
	if cfg.SerializationFormat != "json" && cfg.SerializationFormat != "protobuf" {
		return nil, fmt.Errorf("SERIALIZATION_FORMAT must be \"json\" or \"protobuf\", got %q", cfg.SerializationFormat)
	}
	if cfg.DeadLetterAlertsEnabled && len(cfg.AdminAlertEmails) == 0 {
		return nil, fmt.Errorf("DEAD_LETTER_ALERTS_ENABLED requires ADMIN_ALERT_EMAILS")
	}
	if cfg.DeadLetterAlertsEnabled && cfg.SMTPAddr == "" {
		return nil, fmt.Errorf("DEAD_LETTER_ALERTS_ENABLED requires SMTP_ADDR")
	}

	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice retrieves an environment variable as a comma-separated list
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.LogLevel(level)
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.LogFormat(format)
	}

	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", true)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", true)

	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.File.Path = getEnv("LOG_FILE_PATH", "/var/log/courier/courier.log")
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", true)
	cfg.File.BufferSize = getEnvAsInt("LOG_FILE_BUFFER_SIZE", 10000)
	cfg.File.BatchSize = getEnvAsInt("LOG_FILE_BATCH_SIZE", 100)
	cfg.File.BatchInterval = getEnvAsDuration("LOG_FILE_BATCH_INTERVAL", 100*time.Millisecond)

	cfg.Elasticsearch.Enabled = getEnvAsBool("LOG_ES_ENABLED", false)
	cfg.Elasticsearch.Addresses = getEnvAsStringSlice("LOG_ES_ADDRESSES", []string{"http://localhost:9200"})
	cfg.Elasticsearch.Username = getEnv("LOG_ES_USERNAME", "")
	cfg.Elasticsearch.Password = getEnv("LOG_ES_PASSWORD", "")
	cfg.Elasticsearch.IndexPrefix = getEnv("LOG_ES_INDEX_PREFIX", "courier-logs")
	cfg.Elasticsearch.BulkSize = getEnvAsInt("LOG_ES_BULK_SIZE", 100)
	cfg.Elasticsearch.FlushInterval = getEnvAsDuration("LOG_ES_FLUSH_INTERVAL", 5*time.Second)

	return cfg
}
