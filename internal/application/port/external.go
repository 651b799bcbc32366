package port

import (
	"context"
	"time"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// CompletionRequest is a provider-neutral chat completion request
type CompletionRequest struct {
	Model       string
	Messages    []entity.ChatMessage
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is a provider-neutral chat completion result
type CompletionResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ProbeResult reports how a provider answered a connection test
type ProbeResult struct {
	OK        bool     `json:"ok"`
	Provider  string   `json:"provider"`
	BaseURL   string   `json:"base_url,omitempty"`
	Path      string   `json:"path,omitempty"`
	LatencyMS int64    `json:"latency_ms"`
	Models    []string `json:"models,omitempty"`
	Tried     []string `json:"tried,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// LLMProvider is a chat-completion backend
type LLMProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	ListModels(ctx context.Context) ([]string, error)
	Probe(ctx context.Context) *ProbeResult
}

// LLMProviderFactory builds a provider client from settings
type LLMProviderFactory interface {
	Build(settings entity.AISettings) (LLMProvider, error)
}

// ModelCache holds model listings per provider with a TTL
type ModelCache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, models []string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MessageSender delivers a text message to a user of an external messenger
type MessageSender interface {
	SendText(ctx context.Context, openID string, content string) error
}

// ExtractedText is the readable content of a document
type ExtractedText struct {
	Text     string
	MimeType string
	Pages    int
}

// TextExtractor pulls plain text out of a document on disk
type TextExtractor interface {
	Extract(ctx context.Context, path string) (*ExtractedText, error)
}

// RegistryWriter renders the contract registry workbook
type RegistryWriter interface {
	Write(ctx context.Context, path string, contracts []*entity.Contract, approvals []*entity.Approval) error
}
