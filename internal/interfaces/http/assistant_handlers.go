package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/contract-approvals/internal/application/service"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

const maskMarker = "****"

// maskKey keeps the first and last four characters of an API key
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return maskMarker
	}
	return key[:4] + maskMarker + key[len(key)-4:]
}

func isMasked(key string) bool {
	return strings.Contains(key, maskMarker)
}

// restoreKey replaces a masked key echoed back by the UI with the saved one
func (h *Handlers) restoreKey(c *gin.Context, settings *entity.AISettings) error {
	if !isMasked(settings.APIKey) {
		return nil
	}
	saved, err := h.svc.Assistant.GetSettings(c.Request.Context())
	if err != nil {
		return err
	}
	masked := settings.APIKey
	settings.APIKey = ""
	if saved.Provider == settings.Provider && maskKey(saved.APIKey) == masked {
		settings.APIKey = saved.APIKey
	}
	return nil
}

// GetAISettings handles GET /api/ai-settings
func (h *Handlers) GetAISettings(c *gin.Context) {
	settings, err := h.svc.Assistant.GetSettings(c.Request.Context())
	if err != nil {
		h.fail(c, "get ai settings", err)
		return
	}
	out := *settings
	out.APIKey = maskKey(out.APIKey)
	respond(c, http.StatusOK, out)
}

// SaveAISettings handles PUT /api/ai-settings
func (h *Handlers) SaveAISettings(c *gin.Context) {
	var settings entity.AISettings
	if !bindJSON(c, &settings) {
		return
	}
	if err := h.restoreKey(c, &settings); err != nil {
		h.fail(c, "save ai settings", err)
		return
	}
	if err := h.svc.Assistant.SaveSettings(c.Request.Context(), &settings); err != nil {
		h.fail(c, "save ai settings", err)
		return
	}
	settings.APIKey = maskKey(settings.APIKey)
	respond(c, http.StatusOK, settings)
}

// TestAIConnection handles POST /api/ai-settings/test. Without a body the
// saved settings are probed.
func (h *Handlers) TestAIConnection(c *gin.Context) {
	var settings *entity.AISettings
	if c.Request.ContentLength != 0 {
		settings = &entity.AISettings{}
		if !bindJSON(c, settings) {
			return
		}
		if err := h.restoreKey(c, settings); err != nil {
			h.fail(c, "test ai connection", err)
			return
		}
	}

	result, err := h.svc.Assistant.TestConnection(c.Request.Context(), settings)
	if err != nil {
		h.fail(c, "test ai connection", err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Chat handles POST /api/ai-assistant
func (h *Handlers) Chat(c *gin.Context) {
	var req service.ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Assistant.Chat(c.Request.Context(), req)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			// provider failures are shown to the user verbatim
			h.logger.Error("Assistant chat failed", "error", err)
			c.JSON(http.StatusBadGateway, Response{Error: err.Error()})
			return
		}
		h.fail(c, "assistant chat", err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// ListModels handles GET /api/ai-assistant/models
func (h *Handlers) ListModels(c *gin.Context) {
	refresh, ok := queryBool(c, "refresh")
	if !ok {
		return
	}
	models, err := h.svc.Assistant.ListModels(c.Request.Context(), c.Query("provider"), refresh)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("Model listing failed", "error", err)
			c.JSON(http.StatusBadGateway, Response{Error: err.Error()})
			return
		}
		h.fail(c, "list models", err)
		return
	}
	respond(c, http.StatusOK, models)
}

func (h *Handlers) historyFilter(c *gin.Context) (entity.ChatHistoryFilter, bool) {
	userID, ok := queryInt64(c, "userId")
	if !ok {
		return entity.ChatHistoryFilter{}, false
	}
	contractID, ok := queryInt64(c, "contractId")
	if !ok {
		return entity.ChatHistoryFilter{}, false
	}
	limit, ok := queryInt64(c, "limit")
	if !ok {
		return entity.ChatHistoryFilter{}, false
	}
	return entity.ChatHistoryFilter{UserID: userID, ContractID: contractID, Limit: int(limit)}, true
}

// ChatHistory handles GET /api/ai-assistant/history
func (h *Handlers) ChatHistory(c *gin.Context) {
	filter, ok := h.historyFilter(c)
	if !ok {
		return
	}
	entries, err := h.svc.Assistant.History(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "chat history", err)
		return
	}
	respond(c, http.StatusOK, entries)
}

// ClearChatHistory handles DELETE /api/ai-assistant/history
func (h *Handlers) ClearChatHistory(c *gin.Context) {
	filter, ok := h.historyFilter(c)
	if !ok {
		return
	}
	n, err := h.svc.Assistant.ClearHistory(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "clear chat history", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": n})
}

// AssistantStats handles GET /api/ai-assistant/stats
func (h *Handlers) AssistantStats(c *gin.Context) {
	respond(c, http.StatusOK, h.svc.Assistant.Stats())
}

// ResetAssistantStats handles POST /api/ai-assistant/stats/reset
func (h *Handlers) ResetAssistantStats(c *gin.Context) {
	h.svc.Assistant.ResetStats()
	respond(c, http.StatusOK, h.svc.Assistant.Stats())
}
