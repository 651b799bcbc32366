// Package container provides dependency injection and lifecycle management
// for the contract approvals service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database  DatabaseConfig
	Lark      LarkConfig
	Assistant AssistantConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Server    ServerConfig
	Worker    WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings. Without credentials the outbox
// keeps notifications in-app only.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
}

// ProviderConfig holds connection defaults for one LLM provider.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AssistantConfig holds AI assistant gateway settings.
type AssistantConfig struct {
	DefaultProvider string
	Providers       map[string]ProviderConfig
	Temperature     float32
	MaxTokens       int
	RequestTimeout  time.Duration
	ModelCacheTTL   time.Duration
	HistoryLimit    int

	// PromptsPath points to a YAML prompt file; built-in prompts are used when empty
	PromptsPath string
}

// CacheConfig selects the model cache backend.
type CacheConfig struct {
	// RedisURL enables the Redis cache, e.g. redis://localhost:6379/0
	RedisURL string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir is the root for contract documents and generated reports
	BaseDir string

	// MaxPages caps PDF text extraction per document
	MaxPages int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	EscalationInterval time.Duration
	OutboxInterval     time.Duration
	OutboxMaxAttempts  int
	OutboxBatchSize    int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/contracts.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Lark: LarkConfig{
			Timeout: 10 * time.Second,
		},
		Assistant: AssistantConfig{
			DefaultProvider: "lmstudio",
			Providers: map[string]ProviderConfig{
				"lmstudio": {BaseURL: "http://localhost:1234"},
			},
			Temperature:    0.3,
			MaxTokens:      1024,
			RequestTimeout: 60 * time.Second,
			ModelCacheTTL:  5 * time.Minute,
			HistoryLimit:   100,
		},
		Storage: StorageConfig{
			BaseDir:  "data/files",
			MaxPages: 50,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigin:   "*",
		},
		Worker: WorkerConfig{
			EscalationInterval: 5 * time.Minute,
			OutboxInterval:     30 * time.Second,
			OutboxMaxAttempts:  5,
			OutboxBatchSize:    50,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Worker.EscalationInterval <= 0 || c.Worker.OutboxInterval <= 0 {
		return fmt.Errorf("worker intervals must be positive")
	}
	return nil
}
