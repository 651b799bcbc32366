package llm

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// apiPrefixes are tried in order; some LM Studio builds and proxies serve the
// API without the /v1 prefix
var apiPrefixes = []string{"/v1", ""}

// LMStudio is an OpenAI-compatible client for a local LM Studio server. A
// successful probe switches it to the prefix that answered.
type LMStudio struct {
	*OpenAICompatible
	host       string
	apiKey     string
	httpClient *http.Client

	// remember is told which prefix answered so later clients start there
	remember func(prefix string)
}

// NewLMStudio creates a client for an LM Studio server at host (with or without /v1)
func NewLMStudio(host, apiKey, model string, httpClient *http.Client, logger *zap.Logger) *LMStudio {
	host = trimVersion(host)
	return &LMStudio{
		OpenAICompatible: NewOpenAICompatible(entity.ProviderLMStudio, host+"/v1", apiKey, model, httpClient, logger),
		host:             host,
		apiKey:           apiKey,
		httpClient:       httpClient,
	}
}

// usePrefix points completions and model listing at host+prefix
func (l *LMStudio) usePrefix(prefix string) {
	l.baseURL = l.host + prefix
	l.client = newClient(l.baseURL, l.apiKey, l.httpClient)
}

// Probe lists models under each prefix, then tries each candidate chat path
// with a one-token completion. A listing failure is not fatal when a model is
// configured. The first chat path that answers is reported and kept.
func (l *LMStudio) Probe(ctx context.Context) *port.ProbeResult {
	result := &port.ProbeResult{Provider: entity.ProviderLMStudio, BaseURL: l.host}
	start := time.Now()
	defer func() { result.LatencyMS = time.Since(start).Milliseconds() }()

	var listErr error
	for _, prefix := range apiPrefixes {
		result.Tried = append(result.Tried, prefix+"/models")
		models, err := listModels(ctx, newClient(l.host+prefix, l.apiKey, l.httpClient))
		if err != nil {
			listErr = err
			l.logger.Debug("LM Studio model listing failed", zap.String("path", prefix+"/models"), zap.Error(err))
			continue
		}
		listErr = nil
		result.Models = models
		break
	}

	model := l.defaultModel
	if model == "" && len(result.Models) > 0 {
		model = result.Models[0]
	}
	if model == "" {
		if listErr != nil {
			result.Error = listErr.Error()
			l.logger.Warn("LM Studio model listing failed", zap.String("host", l.host), zap.Error(listErr))
		} else {
			result.Error = "no models loaded"
		}
		return result
	}

	for _, prefix := range apiPrefixes {
		path := prefix + "/chat/completions"
		result.Tried = append(result.Tried, path)

		_, err := complete(ctx, newClient(l.host+prefix, l.apiKey, l.httpClient), model, port.CompletionRequest{
			Messages:  []entity.ChatMessage{{Role: entity.ChatRoleUser, Content: "ping"}},
			MaxTokens: 1,
		})
		if err != nil {
			result.Error = err.Error()
			l.logger.Debug("LM Studio chat path failed", zap.String("path", path), zap.Error(err))
			continue
		}

		l.usePrefix(prefix)
		if l.remember != nil {
			l.remember(prefix)
		}
		if l.defaultModel == "" {
			l.defaultModel = model
		}
		result.OK = true
		result.Path = path
		result.Error = ""
		return result
	}
	return result
}

var _ port.LLMProvider = (*LMStudio)(nil)
