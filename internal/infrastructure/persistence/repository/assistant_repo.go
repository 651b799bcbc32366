package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AISettingsRepository implements port.AISettingsRepository over a single-row table
type AISettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAISettingsRepository creates a new settings repository
func NewAISettingsRepository(db *sql.DB, logger *zap.Logger) port.AISettingsRepository {
	return &AISettingsRepository{db: db, logger: logger}
}

func (r *AISettingsRepository) Get(ctx context.Context) (*entity.AISettings, error) {
	var s entity.AISettings
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT provider, base_url, api_key, model, temperature, max_tokens, system_prompt, updated_at
		FROM ai_settings WHERE id = 1`).
		Scan(&s.Provider, &s.BaseURL, &s.APIKey, &s.Model, &s.Temperature, &s.MaxTokens, &s.SystemPrompt, &s.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "ai settings", 1)
	}
	return &s, nil
}

func (r *AISettingsRepository) Save(ctx context.Context, s *entity.AISettings) error {
	s.UpdatedAt = time.Now().UTC()
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO ai_settings (id, provider, base_url, api_key, model, temperature, max_tokens, system_prompt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			base_url = excluded.base_url,
			api_key = excluded.api_key,
			model = excluded.model,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			system_prompt = excluded.system_prompt,
			updated_at = excluded.updated_at`,
		s.Provider, s.BaseURL, s.APIKey, s.Model, s.Temperature, s.MaxTokens, s.SystemPrompt, s.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to save ai settings", zap.Error(err))
		return fmt.Errorf("failed to save ai settings: %w", err)
	}
	return nil
}

// ChatHistoryRepository implements port.ChatHistoryRepository
type ChatHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChatHistoryRepository creates a new chat history repository
func NewChatHistoryRepository(db *sql.DB, logger *zap.Logger) port.ChatHistoryRepository {
	return &ChatHistoryRepository{db: db, logger: logger}
}

func (r *ChatHistoryRepository) Create(ctx context.Context, e *entity.ChatHistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO chat_history (user_id, contract_id, role, content, provider, model, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(e.UserID), nullInt64(e.ContractID), e.Role, e.Content, e.Provider, e.Model, e.LatencyMS, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

func historyWhere(filter entity.ChatHistoryFilter) where {
	var w where
	if filter.UserID > 0 {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.ContractID > 0 {
		w.add("contract_id = ?", filter.ContractID)
	}
	return w
}

// List returns history in conversation order, limited to the most recent entries
func (r *ChatHistoryRepository) List(ctx context.Context, filter entity.ChatHistoryFilter) ([]*entity.ChatHistoryEntry, error) {
	w := historyWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, user_id, contract_id, role, content, provider, model, latency_ms, created_at
		FROM chat_history`+w.String()+` ORDER BY id DESC LIMIT ?`, append(w.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var out []*entity.ChatHistoryEntry
	for rows.Next() {
		var e entity.ChatHistoryEntry
		var userID, contractID sql.NullInt64
		if err := rows.Scan(&e.ID, &userID, &contractID, &e.Role, &e.Content, &e.Provider, &e.Model, &e.LatencyMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat history: %w", err)
		}
		e.UserID = int64Ptr(userID)
		e.ContractID = int64Ptr(contractID)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *ChatHistoryRepository) Delete(ctx context.Context, filter entity.ChatHistoryFilter) (int64, error) {
	w := historyWhere(filter)
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM chat_history`+w.String(), w.args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chat history: %w", err)
	}
	return res.RowsAffected()
}

var (
	_ port.AISettingsRepository  = (*AISettingsRepository)(nil)
	_ port.ChatHistoryRepository = (*ChatHistoryRepository)(nil)
)
