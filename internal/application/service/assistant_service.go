package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// AssistantService is the gateway between the chat UI and the configured LLM providers
type AssistantService interface {
	GetSettings(ctx context.Context) (*entity.AISettings, error)
	SaveSettings(ctx context.Context, settings *entity.AISettings) error

	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ListModels returns the provider's models, served from cache unless refresh is set
	ListModels(ctx context.Context, provider string, refresh bool) ([]string, error)

	// TestConnection probes the provider described by settings, or the saved settings when nil
	TestConnection(ctx context.Context, settings *entity.AISettings) (*port.ProbeResult, error)

	Stats() StatsReport
	ResetStats()

	History(ctx context.Context, filter entity.ChatHistoryFilter) ([]*entity.ChatHistoryEntry, error)
	ClearHistory(ctx context.Context, filter entity.ChatHistoryFilter) (int64, error)
}

// ChatRequest is one chat turn from the UI
type ChatRequest struct {
	Provider   string               `json:"provider,omitempty"`
	Model      string               `json:"model,omitempty"`
	Messages   []entity.ChatMessage `json:"messages"`
	UserID     *int64               `json:"user_id,omitempty"`
	ContractID *int64               `json:"contract_id,omitempty"`
}

// ChatResponse is the assistant's reply
type ChatResponse struct {
	Content          string `json:"content"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	LatencyMS        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// StatsReport is the payload of the stats endpoint
type StatsReport struct {
	Since     time.Time       `json:"since"`
	Providers []ProviderStats `json:"providers"`
}

// ProviderDefaults are the per-provider connection values from configuration
type ProviderDefaults struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AssistantConfig configures the gateway
type AssistantConfig struct {
	DefaultProvider string
	Providers       map[string]ProviderDefaults
	Temperature     float32
	MaxTokens       int
	RequestTimeout  time.Duration
	ModelCacheTTL   time.Duration
	HistoryLimit    int
}

type assistantServiceImpl struct {
	settings  port.AISettingsRepository
	history   port.ChatHistoryRepository
	contracts port.ContractRepository
	documents port.DocumentRepository
	factory   port.LLMProviderFactory
	cache     port.ModelCache
	stats     *AssistantStats
	prompts   *AssistantPrompts
	cfg       AssistantConfig
	logger    Logger
}

// NewAssistantService creates a new AssistantService
func NewAssistantService(
	settings port.AISettingsRepository,
	history port.ChatHistoryRepository,
	contracts port.ContractRepository,
	documents port.DocumentRepository,
	factory port.LLMProviderFactory,
	cache port.ModelCache,
	stats *AssistantStats,
	prompts *AssistantPrompts,
	cfg AssistantConfig,
	logger Logger,
) AssistantService {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = entity.ProviderLMStudio
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ModelCacheTTL <= 0 {
		cfg.ModelCacheTTL = 5 * time.Minute
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if prompts == nil {
		prompts = DefaultAssistantPrompts()
	}
	return &assistantServiceImpl{
		settings:  settings,
		history:   history,
		contracts: contracts,
		documents: documents,
		factory:   factory,
		cache:     cache,
		stats:     stats,
		prompts:   prompts,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetSettings returns the saved settings, falling back to configuration defaults
func (s *assistantServiceImpl) GetSettings(ctx context.Context) (*entity.AISettings, error) {
	saved, err := s.settings.Get(ctx)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
		saved = &entity.AISettings{
			Provider:    s.cfg.DefaultProvider,
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		}
	}
	s.fillDefaults(saved)
	return saved, nil
}

func (s *assistantServiceImpl) SaveSettings(ctx context.Context, settings *entity.AISettings) error {
	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	if !entity.IsKnownProvider(settings.Provider) {
		return fmt.Errorf("%w: unknown provider %q", entity.ErrValidation, settings.Provider)
	}
	if settings.Temperature < 0 || settings.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2", entity.ErrValidation)
	}
	if settings.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must not be negative", entity.ErrValidation)
	}
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")

	if err := s.settings.Save(ctx, settings); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, modelCacheKey(settings.Provider)); err != nil {
		s.logger.Error("Failed to invalidate model cache", "error", err, "provider", settings.Provider)
	}
	s.logger.Info("Assistant settings saved", "provider", settings.Provider, "model", settings.Model)
	return nil
}

func (s *assistantServiceImpl) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", entity.ErrValidation)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != entity.ChatRoleUser || strings.TrimSpace(last.Content) == "" {
		return nil, fmt.Errorf("%w: the last message must be a non-empty user message", entity.ErrValidation)
	}

	settings, err := s.resolveSettings(ctx, req.Provider)
	if err != nil {
		return nil, err
	}
	if req.Model != "" {
		settings.Model = req.Model
	}

	messages, err := s.buildMessages(ctx, settings, req)
	if err != nil {
		return nil, err
	}

	provider, err := s.factory.Build(*settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := provider.Complete(callCtx, port.CompletionRequest{
		Model:       settings.Model,
		Messages:    messages,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	latency := time.Since(start)
	s.stats.Record(settings.Provider, latency, err != nil)
	if err != nil {
		s.logger.Error("Assistant completion failed",
			"error", err,
			"provider", settings.Provider,
			"model", settings.Model,
			"latency_ms", latency.Milliseconds(),
		)
		return nil, fmt.Errorf("%s completion failed: %w", settings.Provider, err)
	}

	out := &ChatResponse{
		Content:          resp.Content,
		Provider:         settings.Provider,
		Model:            resp.Model,
		LatencyMS:        latency.Milliseconds(),
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}
	if out.Model == "" {
		out.Model = settings.Model
	}

	s.saveTurn(ctx, req, last, out)
	return out, nil
}

// saveTurn persists the user message and the reply. Failures are logged only.
func (s *assistantServiceImpl) saveTurn(ctx context.Context, req ChatRequest, question entity.ChatMessage, answer *ChatResponse) {
	entries := []*entity.ChatHistoryEntry{
		{
			UserID:     req.UserID,
			ContractID: req.ContractID,
			Role:       entity.ChatRoleUser,
			Content:    question.Content,
			Provider:   answer.Provider,
			Model:      answer.Model,
		},
		{
			UserID:     req.UserID,
			ContractID: req.ContractID,
			Role:       entity.ChatRoleAssistant,
			Content:    answer.Content,
			Provider:   answer.Provider,
			Model:      answer.Model,
			LatencyMS:  answer.LatencyMS,
		},
	}
	for _, e := range entries {
		if err := s.history.Create(ctx, e); err != nil {
			s.logger.Error("Failed to save chat history", "error", err, "role", e.Role)
			return
		}
	}
}

// buildMessages prepends the system prompt and the contract context, replacing
// any system messages sent by the client
func (s *assistantServiceImpl) buildMessages(ctx context.Context, settings *entity.AISettings, req ChatRequest) ([]entity.ChatMessage, error) {
	system := settings.SystemPrompt
	if system == "" {
		system = s.prompts.System
	}

	if req.ContractID != nil {
		contextText, err := s.contractContext(ctx, *req.ContractID)
		if err != nil {
			return nil, err
		}
		system = strings.TrimSpace(system + "\n\n" + contextText)
	}

	messages := make([]entity.ChatMessage, 0, len(req.Messages)+1)
	if system != "" {
		messages = append(messages, entity.ChatMessage{Role: entity.ChatRoleSystem, Content: system})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case entity.ChatRoleUser, entity.ChatRoleAssistant:
			messages = append(messages, m)
		case entity.ChatRoleSystem:
		default:
			return nil, fmt.Errorf("%w: unknown message role %q", entity.ErrValidation, m.Role)
		}
	}
	return messages, nil
}

type contextDocument struct {
	Name string
	Text string
}

func (s *assistantServiceImpl) contractContext(ctx context.Context, contractID int64) (string, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return "", err
	}
	docs, err := s.documents.List(ctx, contractID)
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}

	limit := s.prompts.DocumentLimit
	data := struct {
		Contract  *entity.Contract
		Documents []contextDocument
	}{Contract: contract}
	for _, d := range docs {
		if d.ExtractedText == "" {
			continue
		}
		text := d.ExtractedText
		if limit > 0 && len([]rune(text)) > limit {
			text = string([]rune(text)[:limit]) + "..."
		}
		data.Documents = append(data.Documents, contextDocument{Name: d.Name, Text: text})
	}

	return renderTemplate(s.prompts.ContractContext, data)
}

func (s *assistantServiceImpl) ListModels(ctx context.Context, provider string, refresh bool) ([]string, error) {
	settings, err := s.resolveSettings(ctx, provider)
	if err != nil {
		return nil, err
	}

	key := modelCacheKey(settings.Provider)
	if !refresh {
		models, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Error("Model cache read failed", "error", err, "provider", settings.Provider)
		} else if ok {
			return models, nil
		}
	}

	client, err := s.factory.Build(*settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	models, err := client.ListModels(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list %s models: %w", settings.Provider, err)
	}
	if err := s.cache.Set(ctx, key, models, s.cfg.ModelCacheTTL); err != nil {
		s.logger.Error("Model cache write failed", "error", err, "provider", settings.Provider)
	}
	return models, nil
}

func (s *assistantServiceImpl) TestConnection(ctx context.Context, settings *entity.AISettings) (*port.ProbeResult, error) {
	saved, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = saved
	} else {
		settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
		if !entity.IsKnownProvider(settings.Provider) {
			return nil, fmt.Errorf("%w: unknown provider %q", entity.ErrValidation, settings.Provider)
		}
		settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
		s.fillDefaults(settings)
	}
	// the model cache belongs to the saved endpoint; trial settings must not replace it
	cacheable := sameEndpoint(settings, saved)

	client, err := s.factory.Build(*settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	result := client.Probe(callCtx)
	s.stats.Record(settings.Provider, time.Duration(result.LatencyMS)*time.Millisecond, !result.OK)
	if cacheable && result.OK && len(result.Models) > 0 {
		if err := s.cache.Set(ctx, modelCacheKey(settings.Provider), result.Models, s.cfg.ModelCacheTTL); err != nil {
			s.logger.Error("Model cache write failed", "error", err, "provider", settings.Provider)
		}
	}

	s.logger.Info("Connection test finished",
		"provider", result.Provider,
		"ok", result.OK,
		"path", result.Path,
		"latency_ms", result.LatencyMS,
	)
	return result, nil
}

func (s *assistantServiceImpl) Stats() StatsReport {
	return StatsReport{Since: s.stats.Since(), Providers: s.stats.Snapshot()}
}

func (s *assistantServiceImpl) ResetStats() {
	s.stats.Reset()
	s.logger.Info("Assistant stats reset")
}

func (s *assistantServiceImpl) History(ctx context.Context, filter entity.ChatHistoryFilter) ([]*entity.ChatHistoryEntry, error) {
	if filter.Limit <= 0 || filter.Limit > s.cfg.HistoryLimit {
		filter.Limit = s.cfg.HistoryLimit
	}
	return s.history.List(ctx, filter)
}

func (s *assistantServiceImpl) ClearHistory(ctx context.Context, filter entity.ChatHistoryFilter) (int64, error) {
	n, err := s.history.Delete(ctx, filter)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Chat history cleared", "user_id", filter.UserID, "contract_id", filter.ContractID, "deleted", n)
	return n, nil
}

// resolveSettings returns the settings to use for a call. A provider different
// from the saved one starts from that provider's configured defaults.
func (s *assistantServiceImpl) resolveSettings(ctx context.Context, provider string) (*entity.AISettings, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == settings.Provider {
		return settings, nil
	}
	if !entity.IsKnownProvider(provider) {
		return nil, fmt.Errorf("%w: unknown provider %q", entity.ErrValidation, provider)
	}

	override := &entity.AISettings{
		Provider:     provider,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		SystemPrompt: settings.SystemPrompt,
	}
	s.fillDefaults(override)
	return override, nil
}

func (s *assistantServiceImpl) fillDefaults(settings *entity.AISettings) {
	d := s.cfg.Providers[settings.Provider]
	if settings.BaseURL == "" {
		settings.BaseURL = d.BaseURL
	}
	if settings.APIKey == "" {
		settings.APIKey = d.APIKey
	}
	if settings.Model == "" {
		settings.Model = d.Model
	}
	if settings.MaxTokens == 0 {
		settings.MaxTokens = s.cfg.MaxTokens
	}
}

func modelCacheKey(provider string) string {
	return "models:" + provider
}

func sameEndpoint(a, b *entity.AISettings) bool {
	return a.Provider == b.Provider && a.BaseURL == b.BaseURL && a.APIKey == b.APIKey
}
