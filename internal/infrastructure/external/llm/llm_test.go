package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

const (
	modelsJSON = `{"object":"list","data":[{"id":"qwen2.5-7b-instruct","object":"model"},{"id":"llama-3","object":"model"}]}`
	chatJSON   = `{"id":"x","object":"chat.completion","model":"qwen2.5-7b-instruct","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":1,"total_tokens":8}}`
)

type recorder struct {
	mu      sync.Mutex
	paths   []string
	headers []http.Header
	bodies  []map[string]interface{}
}

func (r *recorder) record(req *http.Request) {
	var body map[string]interface{}
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &body)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, req.URL.Path)
	r.headers = append(r.headers, req.Header.Clone())
	r.bodies = append(r.bodies, body)
}

func newServer(t *testing.T, rec *recorder, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompatible_Complete(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{"/v1/chat/completions": chatJSON})

	p := NewOpenAICompatible(entity.ProviderOpenAI, srv.URL+"/v1", "sk-test", "gpt-4o-mini", nil, zap.NewNop())
	resp, err := p.Complete(context.Background(), port.CompletionRequest{
		Messages: []entity.ChatMessage{
			{Role: entity.ChatRoleSystem, Content: "You review contracts."},
			{Role: entity.ChatRoleUser, Content: "ping"},
		},
		Temperature: 0.2,
		MaxTokens:   64,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, 7, resp.PromptTokens)
	assert.Equal(t, 1, resp.CompletionTokens)

	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "Bearer sk-test", rec.headers[0].Get("Authorization"))
	assert.Equal(t, "gpt-4o-mini", rec.bodies[0]["model"])
	messages := rec.bodies[0]["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
}

func TestOpenAICompatible_ListModelsAndProbe(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{"/api/paas/v4/models": modelsJSON})

	p := NewOpenAICompatible(entity.ProviderZAI, srv.URL+"/api/paas/v4", "zai-key", "glm-4.5", nil, zap.NewNop())
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3", "qwen2.5-7b-instruct"}, models)

	result := p.Probe(context.Background())
	assert.True(t, result.OK)
	assert.Equal(t, "/models", result.Path)
	assert.Equal(t, entity.ProviderZAI, result.Provider)

	broken := NewOpenAICompatible(entity.ProviderZAI, srv.URL+"/missing", "zai-key", "glm-4.5", nil, zap.NewNop())
	result = broken.Probe(context.Background())
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)
}

func TestLMStudio_ProbeFallsBackToUnversionedChat(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{
		"/v1/models":        modelsJSON,
		"/chat/completions": chatJSON,
	})

	p := NewLMStudio(srv.URL+"/v1/", "", "", nil, zap.NewNop())
	result := p.Probe(context.Background())

	require.True(t, result.OK, result.Error)
	assert.Equal(t, "/chat/completions", result.Path)
	assert.Equal(t, srv.URL, result.BaseURL)
	assert.Equal(t, []string{"/v1/models", "/v1/chat/completions", "/chat/completions"}, result.Tried)
	assert.Equal(t, []string{"llama-3", "qwen2.5-7b-instruct"}, result.Models)
	assert.Empty(t, result.Error)

	// later completions use the path that answered
	resp, err := p.Complete(context.Background(), port.CompletionRequest{
		Messages: []entity.ChatMessage{{Role: entity.ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, "/chat/completions", rec.paths[len(rec.paths)-1])
	assert.Equal(t, "llama-3", rec.bodies[len(rec.bodies)-1]["model"])
}

func TestLMStudio_ProbeFailures(t *testing.T) {
	tests := []struct {
		name      string
		routes    map[string]string
		wantTried []string
	}{
		{"server down", map[string]string{}, []string{"/v1/models", "/models"}},
		{"no models loaded", map[string]string{"/v1/models": `{"object":"list","data":[]}`}, []string{"/v1/models"}},
		{"chat unavailable", map[string]string{"/v1/models": modelsJSON}, []string{"/v1/models", "/v1/chat/completions", "/chat/completions"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &recorder{}, tt.routes)
			result := NewLMStudio(srv.URL, "", "", nil, zap.NewNop()).Probe(context.Background())
			assert.False(t, result.OK)
			assert.NotEmpty(t, result.Error)
			assert.Equal(t, tt.wantTried, result.Tried)
		})
	}
}

func TestLMStudio_ConnectsWithoutVersionPrefix(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{
		"/models":           modelsJSON,
		"/chat/completions": chatJSON,
	})

	result := NewLMStudio(srv.URL, "", "", nil, zap.NewNop()).Probe(context.Background())

	require.True(t, result.OK, result.Error)
	assert.Equal(t, "/chat/completions", result.Path)
	assert.Equal(t, []string{"/v1/models", "/models", "/v1/chat/completions", "/chat/completions"}, result.Tried)
	assert.Equal(t, []string{"llama-3", "qwen2.5-7b-instruct"}, result.Models)
}

func TestLMStudio_UsesConfiguredModelWhenListingFails(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{"/v1/chat/completions": chatJSON})

	result := NewLMStudio(srv.URL, "", "qwen2.5-7b-instruct", nil, zap.NewNop()).Probe(context.Background())

	require.True(t, result.OK, result.Error)
	assert.Equal(t, "/v1/chat/completions", result.Path)
	assert.Empty(t, result.Models)
	assert.Equal(t, "qwen2.5-7b-instruct", rec.bodies[len(rec.bodies)-1]["model"])
}

func TestFactory_RemembersLMStudioPath(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{
		"/models":           modelsJSON,
		"/chat/completions": chatJSON,
	})
	f := NewFactory(5*time.Second, zap.NewNop())
	settings := entity.AISettings{Provider: entity.ProviderLMStudio, BaseURL: srv.URL, Model: "llama-3"}

	probe, err := f.Build(settings)
	require.NoError(t, err)
	require.True(t, probe.Probe(context.Background()).OK)

	chat, err := f.Build(settings)
	require.NoError(t, err)
	resp, err := chat.Complete(context.Background(), port.CompletionRequest{
		Messages: []entity.ChatMessage{{Role: entity.ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, "/chat/completions", rec.paths[len(rec.paths)-1])

	models, err := chat.ListModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestAnthropic_Complete(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec, map[string]string{
		"/v1/messages": `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-latest",
			"content":[{"type":"text","text":"The penalty clause "},{"type":"text","text":"is one-sided."}],
			"usage":{"input_tokens":42,"output_tokens":6}}`,
	})

	p := NewAnthropic(srv.URL, "sk-ant", "claude-3-5-sonnet-latest", nil, zap.NewNop())
	resp, err := p.Complete(context.Background(), port.CompletionRequest{
		Messages: []entity.ChatMessage{
			{Role: entity.ChatRoleSystem, Content: "You review contracts."},
			{Role: entity.ChatRoleUser, Content: "Any risks?"},
			{Role: entity.ChatRoleAssistant, Content: "Let me check."},
			{Role: entity.ChatRoleUser, Content: "Go on."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "The penalty clause is one-sided.", resp.Content)
	assert.Equal(t, 42, resp.PromptTokens)
	assert.Equal(t, 6, resp.CompletionTokens)

	require.Len(t, rec.headers, 1)
	assert.Equal(t, "sk-ant", rec.headers[0].Get("x-api-key"))
	assert.Equal(t, "2023-06-01", rec.headers[0].Get("anthropic-version"))
	assert.Empty(t, rec.headers[0].Get("Authorization"))
	assert.Equal(t, "/v1/messages", rec.paths[0])

	body := rec.bodies[0]
	system, ok := body["system"].([]interface{})
	require.True(t, ok, "system prompt is sent as text blocks")
	require.Len(t, system, 1)
	assert.Equal(t, "You review contracts.", system[0].(map[string]interface{})["text"])
	assert.Equal(t, float64(anthropicDefaultMaxTokens), body["max_tokens"])
	assert.NotContains(t, body, "temperature")
	assert.Len(t, body["messages"], 3)
}

func TestAnthropic_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	t.Cleanup(srv.Close)

	p := NewAnthropic(srv.URL+"/v1", "bad", "claude-3-5-sonnet-latest", nil, zap.NewNop())

	_, err := p.Complete(context.Background(), port.CompletionRequest{
		Messages: []entity.ChatMessage{{Role: entity.ChatRoleSystem, Content: "only system"}},
	})
	assert.Error(t, err)

	_, err = p.Complete(context.Background(), port.CompletionRequest{
		Messages: []entity.ChatMessage{{Role: entity.ChatRoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")

	result := p.Probe(context.Background())
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "status=401")
}

func TestAnthropic_ListModels(t *testing.T) {
	srv := newServer(t, &recorder{}, map[string]string{
		"/v1/models": `{"data":[{"id":"claude-3-5-sonnet-latest","type":"model"},{"id":"claude-3-5-haiku-latest","type":"model"}]}`,
	})
	p := NewAnthropic(srv.URL, "sk-ant", "", nil, zap.NewNop())

	result := p.Probe(context.Background())
	require.True(t, result.OK)
	assert.Equal(t, "/v1/models", result.Path)
	assert.Equal(t, []string{"claude-3-5-haiku-latest", "claude-3-5-sonnet-latest"}, result.Models)
}

func TestFactory_Build(t *testing.T) {
	f := NewFactory(5*time.Second, zap.NewNop())

	tests := []struct {
		name     string
		settings entity.AISettings
		wantName string
		wantErr  bool
	}{
		{"lmstudio without key", entity.AISettings{Provider: entity.ProviderLMStudio}, entity.ProviderLMStudio, false},
		{"openai", entity.AISettings{Provider: entity.ProviderOpenAI, APIKey: "sk"}, entity.ProviderOpenAI, false},
		{"zai custom url", entity.AISettings{Provider: entity.ProviderZAI, APIKey: "k", BaseURL: "https://open.bigmodel.cn/api/paas/v4/"}, entity.ProviderZAI, false},
		{"anthropic", entity.AISettings{Provider: entity.ProviderAnthropic, APIKey: "sk-ant"}, entity.ProviderAnthropic, false},
		{"openai without key", entity.AISettings{Provider: entity.ProviderOpenAI}, "", true},
		{"anthropic without key", entity.AISettings{Provider: entity.ProviderAnthropic}, "", true},
		{"unknown", entity.AISettings{Provider: "gemini", BaseURL: "http://x"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.Build(tt.settings)
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}

	assert.Equal(t, DefaultZAIBaseURL, DefaultBaseURL(entity.ProviderZAI))
	assert.Empty(t, DefaultBaseURL("gemini"))
}
