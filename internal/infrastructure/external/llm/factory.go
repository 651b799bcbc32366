package llm

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// Default endpoints per provider
const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultZAIBaseURL       = "https://api.z.ai/api/paas/v4"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultLMStudioBaseURL  = "http://localhost:1234"
)

// Factory builds provider clients from stored settings. It remembers which
// API prefix each LM Studio host answered on, so chat clients built after a
// connection test use the same path.
type Factory struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu         sync.Mutex
	lmPrefixes map[string]string
}

// NewFactory creates a factory whose clients share one HTTP client
func NewFactory(timeout time.Duration, logger *zap.Logger) *Factory {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Factory{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		lmPrefixes: make(map[string]string),
	}
}

// DefaultBaseURL returns the public endpoint for a provider, or "" if unknown
func DefaultBaseURL(provider string) string {
	switch provider {
	case entity.ProviderOpenAI:
		return DefaultOpenAIBaseURL
	case entity.ProviderZAI:
		return DefaultZAIBaseURL
	case entity.ProviderAnthropic:
		return DefaultAnthropicBaseURL
	case entity.ProviderLMStudio:
		return DefaultLMStudioBaseURL
	}
	return ""
}

func (f *Factory) Build(s entity.AISettings) (port.LLMProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL(s.Provider)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: unknown provider %q", entity.ErrValidation, s.Provider)
	}

	logger := f.logger.With(zap.String("provider", s.Provider))

	switch s.Provider {
	case entity.ProviderLMStudio:
		return f.lmStudio(baseURL, s.APIKey, s.Model, logger), nil
	case entity.ProviderOpenAI, entity.ProviderZAI:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: api key is required for %s", entity.ErrValidation, s.Provider)
		}
		return NewOpenAICompatible(s.Provider, baseURL, s.APIKey, s.Model, f.httpClient, logger), nil
	case entity.ProviderAnthropic:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: api key is required for %s", entity.ErrValidation, s.Provider)
		}
		return NewAnthropic(baseURL, s.APIKey, s.Model, f.httpClient, logger), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", entity.ErrValidation, s.Provider)
}

func (f *Factory) lmStudio(baseURL, apiKey, model string, logger *zap.Logger) *LMStudio {
	l := NewLMStudio(baseURL, apiKey, model, f.httpClient, logger)

	f.mu.Lock()
	prefix, known := f.lmPrefixes[l.host]
	f.mu.Unlock()
	if known {
		l.usePrefix(prefix)
	}

	l.remember = func(prefix string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lmPrefixes[l.host] = prefix
	}
	return l
}

var _ port.LLMProviderFactory = (*Factory)(nil)
