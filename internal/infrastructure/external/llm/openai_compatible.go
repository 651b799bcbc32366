package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// OpenAICompatible talks to any endpoint implementing the OpenAI chat API:
// OpenAI itself, Z.AI and LM Studio
type OpenAICompatible struct {
	name         string
	baseURL      string
	defaultModel string
	client       *openai.Client
	logger       *zap.Logger
}

// NewOpenAICompatible creates a client for baseURL, which must include the API
// version segment (e.g. https://api.openai.com/v1)
func NewOpenAICompatible(name, baseURL, apiKey, model string, httpClient *http.Client, logger *zap.Logger) *OpenAICompatible {
	return &OpenAICompatible{
		name:         name,
		baseURL:      baseURL,
		defaultModel: model,
		client:       newClient(baseURL, apiKey, httpClient),
		logger:       logger,
	}
}

func newClient(baseURL, apiKey string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *OpenAICompatible) Name() string {
	return c.name
}

func (c *OpenAICompatible) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	return complete(ctx, c.client, c.pickModel(req.Model), req)
}

func complete(ctx context.Context, client *openai.Client, model string, req port.CompletionRequest) (*port.CompletionResponse, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: toOpenAIRole(m.Role), Content: m.Content})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	out := &port.CompletionResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}

func (c *OpenAICompatible) ListModels(ctx context.Context) ([]string, error) {
	return listModels(ctx, c.client)
}

func listModels(ctx context.Context, client *openai.Client) ([]string, error) {
	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Probe lists models; hosted APIs all expose /models behind the same credentials
func (c *OpenAICompatible) Probe(ctx context.Context) *port.ProbeResult {
	result := &port.ProbeResult{Provider: c.name, BaseURL: c.baseURL, Tried: []string{"/models"}}

	start := time.Now()
	models, err := c.ListModels(ctx)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn("Provider probe failed", zap.String("provider", c.name), zap.Error(err))
		return result
	}

	result.OK = true
	result.Path = "/models"
	result.Models = models
	return result
}

func (c *OpenAICompatible) pickModel(model string) string {
	if model != "" {
		return model
	}
	return c.defaultModel
}

func toOpenAIRole(role string) string {
	switch role {
	case entity.ChatRoleSystem:
		return openai.ChatMessageRoleSystem
	case entity.ChatRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// trimVersion strips a trailing /v1 so paths can be probed from the host root
func trimVersion(baseURL string) string {
	return strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")
}

var _ port.LLMProvider = (*OpenAICompatible)(nil)
