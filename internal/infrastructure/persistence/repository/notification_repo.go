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

const notificationColumns = `id, user_id, contract_id, approval_id, type, title, message, dedup_key,
	is_read, delivery_status, attempts, last_error, created_at, delivered_at`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification; duplicates by dedup key are dropped
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.DeliveryStatus == "" {
		n.DeliveryStatus = entity.DeliveryStatusPending
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notifications (
			user_id, contract_id, approval_id, type, title, message, dedup_key,
			is_read, delivery_status, attempts, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 0, '', ?)
		ON CONFLICT DO NOTHING`,
		n.UserID, nullInt64(n.ContractID), nullInt64(n.ApprovalID), n.Type, n.Title, n.Message,
		nullString(n.DedupKey), n.DeliveryStatus, n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if n.ID, err = result.LastInsertId(); err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return true, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*entity.Notification, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, wrapNotFound(err, "notification", id)
	}
	return n, nil
}

// List returns a user's notifications, newest first
func (r *NotificationRepository) List(ctx context.Context, filter entity.NotificationFilter) ([]*entity.Notification, error) {
	var w where
	if filter.UserID > 0 {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.UnreadOnly {
		w.add("is_read = 0")
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications` + w.String() + ` ORDER BY id DESC`
	args := w.args
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return r.query(ctx, query, args...)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireAffected(res, "notification", id)
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	return r.query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE delivery_status IN (?, ?) AND attempts < ?
		ORDER BY id LIMIT ?`,
		entity.DeliveryStatusPending, entity.DeliveryStatusFailed, maxAttempts, limit)
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET delivery_status = ?, attempts = attempts + 1, last_error = '', delivered_at = ?
		WHERE id = ?`, entity.DeliveryStatusSent, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	return requireAffected(res, "notification", id)
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET delivery_status = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		entity.DeliveryStatusFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return requireAffected(res, "notification", id)
}

func (r *NotificationRepository) MarkSkipped(ctx context.Context, id int64, reason string) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET delivery_status = ?, last_error = ? WHERE id = ?`,
		entity.DeliveryStatusSkipped, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification skipped: %w", err)
	}
	return requireAffected(res, "notification", id)
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(s rowScanner) (*entity.Notification, error) {
	var (
		n           entity.Notification
		contractID  sql.NullInt64
		approvalID  sql.NullInt64
		dedupKey    sql.NullString
		deliveredAt sql.NullTime
	)
	if err := s.Scan(&n.ID, &n.UserID, &contractID, &approvalID, &n.Type, &n.Title, &n.Message, &dedupKey,
		&n.Read, &n.DeliveryStatus, &n.Attempts, &n.LastError, &n.CreatedAt, &deliveredAt); err != nil {
		return nil, err
	}
	n.ContractID = int64Ptr(contractID)
	n.ApprovalID = int64Ptr(approvalID)
	n.DedupKey = dedupKey.String
	n.DeliveredAt = timePtr(deliveredAt)
	return &n, nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
