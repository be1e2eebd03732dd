package logger

import (
	"fmt"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// LogSource distinguishes internal system logs from delivery-attempt logs
type LogSource string

const (
	LogSourceInternal LogSource = "courier_internal" // System lifecycle logs
	LogSourceDelivery LogSource = "courier_delivery" // Per-attempt delivery logs
)

// Component identifies which part of the system generated the log
type Component string

const (
	ComponentAPI        Component = "api"
	ComponentWorker     Component = "worker"
	ComponentDeadLetter Component = "deadletter"
	ComponentStore      Component = "store"
	ComponentJanitor    Component = "janitor"
	ComponentMailer     Component = "mailer"
	ComponentService    Component = "service"
)

// Config holds the complete logging configuration for all tiers
type Config struct {
	Level  LogLevel  `json:"level"`
	Format LogFormat `json:"format"`

	// Tier 1: Console (always enabled in practice)
	Console ConsoleConfig `json:"console"`

	// Tier 2: File (optional)
	File FileConfig `json:"file"`

	// Tier 3: Elasticsearch (optional)
	Elasticsearch ElasticsearchConfig `json:"elasticsearch"`
}

// ConsoleConfig configures console/terminal logging
type ConsoleConfig struct {
	Enabled bool `json:"enabled"`
	Color   bool `json:"color"` // Colored level tags (text mode only)
}

// FileConfig configures rotating file logging
type FileConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`

	BufferSize    int           `json:"buffer_size"`    // Channel buffer size
	BatchSize     int           `json:"batch_size"`     // Entries per batch write
	BatchInterval time.Duration `json:"batch_interval"` // Batch flush interval
}

// ElasticsearchConfig configures Elasticsearch bulk log shipping
type ElasticsearchConfig struct {
	Enabled       bool          `json:"enabled"`
	Addresses     []string      `json:"addresses"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	IndexPrefix   string        `json:"index_prefix"`
	BulkSize      int           `json:"bulk_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Console: ConsoleConfig{
			Enabled: true,
			Color:   true,
		},
		File: FileConfig{
			Enabled:       false,
			Path:          "/var/log/courier/courier.log",
			MaxSizeMB:     100,
			MaxBackups:    5,
			MaxAgeDays:    30,
			Compress:      true,
			BufferSize:    10000,
			BatchSize:     100,
			BatchInterval: 100 * time.Millisecond,
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:       false,
			Addresses:     []string{"http://localhost:9200"},
			IndexPrefix:   "courier-logs",
			BulkSize:      100,
			FlushInterval: 5 * time.Second,
		},
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	switch c.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("invalid log level: %q", c.Level)
	}

	switch c.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("invalid log format: %q", c.Format)
	}

	if c.File.Enabled && c.File.Path == "" {
		return fmt.Errorf("file logging enabled without a path")
	}
	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch logging enabled without addresses")
	}

	return nil
}
