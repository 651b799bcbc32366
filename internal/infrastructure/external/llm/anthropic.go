package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

const anthropicDefaultMaxTokens = 1024

// Anthropic calls the Messages API through the official SDK
type Anthropic struct {
	baseURL      string
	defaultModel string
	client       anthropic.Client
	logger       *zap.Logger
}

// NewAnthropic creates a Messages API client. baseURL is the API host
// (https://api.anthropic.com); a trailing /v1 is tolerated.
func NewAnthropic(baseURL, apiKey, model string, httpClient *http.Client, logger *zap.Logger) *Anthropic {
	baseURL = trimVersion(baseURL)
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL + "/"),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Anthropic{
		baseURL:      baseURL,
		defaultModel: model,
		client:       anthropic.NewClient(opts...),
		logger:       logger,
	}
}

func (a *Anthropic) Name() string {
	return entity.ProviderAnthropic
}

func (a *Anthropic) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = anthropicDefaultMaxTokens
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	// system prompts travel outside the message list
	for _, m := range req.Messages {
		switch m.Role {
		case entity.ChatRoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case entity.ChatRoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return nil, fmt.Errorf("at least one user message is required")
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError("messages", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	out := &port.CompletionResponse{
		Content:          text,
		Model:            string(msg.Model),
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}

func (a *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, wrapAnthropicError("list models", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *Anthropic) Probe(ctx context.Context) *port.ProbeResult {
	result := &port.ProbeResult{Provider: entity.ProviderAnthropic, BaseURL: a.baseURL, Tried: []string{"/v1/models"}}

	start := time.Now()
	models, err := a.ListModels(ctx)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		a.logger.Warn("Provider probe failed", zap.String("provider", entity.ProviderAnthropic), zap.Error(err))
		return result
	}

	result.OK = true
	result.Path = "/v1/models"
	result.Models = models
	return result
}

// wrapAnthropicError surfaces the HTTP status so callers can report it
func wrapAnthropicError(op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic %s failed: status=%d: %w", op, apiErr.StatusCode, err)
	}
	return fmt.Errorf("anthropic %s failed: %w", op, err)
}

var _ port.LLMProvider = (*Anthropic)(nil)
