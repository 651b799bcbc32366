package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration. Notifications are delivered only
// when both credentials are set.
type LarkConfig struct {
	AppID     string        `mapstructure:"app_id"`
	AppSecret string        `mapstructure:"app_secret"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ProviderConfig holds connection defaults for one LLM provider
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// AssistantConfig holds AI assistant gateway configuration
type AssistantConfig struct {
	DefaultProvider string                    `mapstructure:"default_provider"`
	Temperature     float32                   `mapstructure:"temperature"`
	MaxTokens       int                       `mapstructure:"max_tokens"`
	RequestTimeout  time.Duration             `mapstructure:"request_timeout"`
	ModelCacheTTL   time.Duration             `mapstructure:"model_cache_ttl"`
	HistoryLimit    int                       `mapstructure:"history_limit"`
	PromptsPath     string                    `mapstructure:"prompts_path"`
	Providers       map[string]ProviderConfig `mapstructure:"providers"`
}

// CacheConfig holds the model cache backend. An empty RedisURL selects the in-memory cache.
type CacheConfig struct {
	RedisURL string `mapstructure:"redis_url"`
}

// StorageConfig holds the document and report storage root
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DocumentsConfig holds text extraction limits
type DocumentsConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

// WorkflowConfig holds the optional workflow seed file
type WorkflowConfig struct {
	SeedPath string `mapstructure:"seed_path"`
}

// WorkersConfig holds background worker settings
type WorkersConfig struct {
	EscalationInterval time.Duration `mapstructure:"escalation_interval"`
	OutboxInterval     time.Duration `mapstructure:"outbox_interval"`
	OutboxMaxAttempts  int           `mapstructure:"outbox_max_attempts"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

var knownProviders = []string{entity.ProviderLMStudio, entity.ProviderZAI, entity.ProviderOpenAI, entity.ProviderAnthropic}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win over it.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origin", "*")

	// Database defaults
	v.SetDefault("database.path", "data/contracts.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Duration(0))

	// Lark defaults
	v.SetDefault("lark.timeout", 10*time.Second)

	// Assistant defaults
	v.SetDefault("assistant.default_provider", "lmstudio")
	v.SetDefault("assistant.temperature", 0.3)
	v.SetDefault("assistant.max_tokens", 1024)
	v.SetDefault("assistant.request_timeout", 60*time.Second)
	v.SetDefault("assistant.model_cache_ttl", 5*time.Minute)
	v.SetDefault("assistant.history_limit", 100)
	v.SetDefault("assistant.providers.lmstudio.base_url", "http://localhost:1234")

	// Storage defaults
	v.SetDefault("storage.base_dir", "data/files")
	v.SetDefault("documents.max_pages", 50)

	// Worker defaults
	v.SetDefault("workers.escalation_interval", 5*time.Minute)
	v.SetDefault("workers.outbox_interval", 30*time.Second)
	v.SetDefault("workers.outbox_max_attempts", 5)
	v.SetDefault("workers.outbox_batch_size", 50)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	// Sensitive credentials from environment
	bindings := map[string]string{
		"lark.app_id":                           "LARK_APP_ID",
		"lark.app_secret":                       "LARK_APP_SECRET",
		"assistant.providers.openai.api_key":    "OPENAI_API_KEY",
		"assistant.providers.anthropic.api_key": "ANTHROPIC_API_KEY",
		"assistant.providers.zai.api_key":       "ZAI_API_KEY",
		"assistant.providers.lmstudio.base_url": "LMSTUDIO_BASE_URL",
		"cache.redis_url":                       "REDIS_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Workers.EscalationInterval <= 0 {
		return fmt.Errorf("workers.escalation_interval must be positive")
	}
	if c.Workers.OutboxInterval <= 0 {
		return fmt.Errorf("workers.outbox_interval must be positive")
	}
	if c.Workers.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("workers.outbox_max_attempts must be positive")
	}

	if !entity.IsKnownProvider(c.Assistant.DefaultProvider) {
		return fmt.Errorf("assistant.default_provider %q is not one of %s",
			c.Assistant.DefaultProvider, strings.Join(knownProviders, ", "))
	}
	for name := range c.Assistant.Providers {
		if !entity.IsKnownProvider(name) {
			return fmt.Errorf("assistant.providers.%s is not a known provider", name)
		}
	}

	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}

	return nil
}
