package config

import (
	"github.com/garyjia/contract-approvals/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	providers := make(map[string]container.ProviderConfig, len(c.Assistant.Providers))
	for name, p := range c.Assistant.Providers {
		providers[name] = container.ProviderConfig{
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Model:   p.Model,
		}
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
			Timeout:   c.Lark.Timeout,
		},
		Assistant: container.AssistantConfig{
			DefaultProvider: c.Assistant.DefaultProvider,
			Providers:       providers,
			Temperature:     c.Assistant.Temperature,
			MaxTokens:       c.Assistant.MaxTokens,
			RequestTimeout:  c.Assistant.RequestTimeout,
			ModelCacheTTL:   c.Assistant.ModelCacheTTL,
			HistoryLimit:    c.Assistant.HistoryLimit,
			PromptsPath:     c.Assistant.PromptsPath,
		},
		Cache: container.CacheConfig{
			RedisURL: c.Cache.RedisURL,
		},
		Storage: container.StorageConfig{
			BaseDir:  c.Storage.BaseDir,
			MaxPages: c.Documents.MaxPages,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			AllowedOrigin:   c.Server.AllowedOrigin,
		},
		Worker: container.WorkerConfig{
			EscalationInterval: c.Workers.EscalationInterval,
			OutboxInterval:     c.Workers.OutboxInterval,
			OutboxMaxAttempts:  c.Workers.OutboxMaxAttempts,
			OutboxBatchSize:    c.Workers.OutboxBatchSize,
		},
	}
}
