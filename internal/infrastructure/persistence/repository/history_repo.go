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

// ContractHistoryRepository implements port.ContractHistoryRepository
type ContractHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewContractHistoryRepository creates a new history repository
func NewContractHistoryRepository(db *sql.DB, logger *zap.Logger) port.ContractHistoryRepository {
	return &ContractHistoryRepository{db: db, logger: logger}
}

// Create appends a history record
func (r *ContractHistoryRepository) Create(ctx context.Context, h *entity.ContractHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO contract_history (contract_id, previous_status, new_status, actor_id, action, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ContractID, h.PreviousStatus, h.NewStatus, nullInt64(h.ActorID), h.Action, h.Comment, h.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create contract history",
			zap.Int64("contract_id", h.ContractID),
			zap.String("action", h.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByContract returns the contract's history in chronological order
func (r *ContractHistoryRepository) ListByContract(ctx context.Context, contractID int64) ([]*entity.ContractHistory, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, contract_id, previous_status, new_status, actor_id, action, comment, created_at
		FROM contract_history WHERE contract_id = ? ORDER BY id`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []*entity.ContractHistory
	for rows.Next() {
		var h entity.ContractHistory
		var actor sql.NullInt64
		if err := rows.Scan(&h.ID, &h.ContractID, &h.PreviousStatus, &h.NewStatus, &actor, &h.Action, &h.Comment, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.ActorID = int64Ptr(actor)
		out = append(out, &h)
	}
	return out, rows.Err()
}

var _ port.ContractHistoryRepository = (*ContractHistoryRepository)(nil)
