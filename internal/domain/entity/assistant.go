package entity

import "time"

// LLM provider identifiers
const (
	ProviderLMStudio  = "lmstudio"
	ProviderZAI       = "zai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// IsKnownProvider reports whether p is a supported provider
func IsKnownProvider(p string) bool {
	switch p {
	case ProviderLMStudio, ProviderZAI, ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// AISettings is the persisted assistant configuration (single row)
type AISettings struct {
	Provider     string    `json:"provider"`
	BaseURL      string    `json:"base_url,omitempty"`
	APIKey       string    `json:"api_key,omitempty"`
	Model        string    `json:"model"`
	Temperature  float32   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chat message roles
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistoryEntry is a persisted conversation turn
type ChatHistoryEntry struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id,omitempty"`
	ContractID *int64    `json:"contract_id,omitempty"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	LatencyMS  int64     `json:"latency_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatHistoryFilter narrows history listings
type ChatHistoryFilter struct {
	UserID     int64
	ContractID int64
	Limit      int
}
