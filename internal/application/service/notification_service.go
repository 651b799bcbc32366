package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// NotificationService exposes the in-app notification sink and delivers the outbox
type NotificationService interface {
	List(ctx context.Context, filter entity.NotificationFilter) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)

	// DeliverPending pushes undelivered notifications to Lark and records the outcome
	DeliverPending(ctx context.Context) (*DeliveryReport, error)
}

// DeliveryReport summarises one outbox pass
type DeliveryReport struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// DeliveryConfig bounds outbox delivery
type DeliveryConfig struct {
	MaxAttempts int
	BatchSize   int
}

type notificationServiceImpl struct {
	notifications port.NotificationRepository
	users         port.UserRepository
	sender        port.MessageSender
	cfg           DeliveryConfig
	logger        Logger
	opts          options
}

// NewNotificationService creates a new NotificationService. sender may be nil when
// external delivery is disabled.
func NewNotificationService(
	notifications port.NotificationRepository,
	users port.UserRepository,
	sender port.MessageSender,
	cfg DeliveryConfig,
	logger Logger,
	opts ...Option,
) NotificationService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &notificationServiceImpl{
		notifications: notifications,
		users:         users,
		sender:        sender,
		cfg:           cfg,
		logger:        logger,
		opts:          buildOptions(opts),
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, filter entity.NotificationFilter) ([]*entity.Notification, error) {
	if filter.UserID == 0 {
		return nil, fmt.Errorf("%w: userId is required", entity.ErrValidation)
	}
	return s.notifications.List(ctx, filter)
}

func (s *notificationServiceImpl) CountUnread(ctx context.Context, userID int64) (int, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, id int64) error {
	return s.notifications.MarkRead(ctx, id)
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("%w: userId is required", entity.ErrValidation)
	}
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *notificationServiceImpl) DeliverPending(ctx context.Context) (*DeliveryReport, error) {
	report := &DeliveryReport{}
	if s.sender == nil {
		return report, nil
	}

	batch, err := s.notifications.ListUndelivered(ctx, s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list undelivered notifications: %w", err)
	}

	for _, n := range batch {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		user, err := s.users.GetByID(ctx, n.UserID)
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			return report, fmt.Errorf("load recipient %d: %w", n.UserID, err)
		}
		if user == nil || user.LarkOpenID == "" || !user.Active {
			if err := s.notifications.MarkSkipped(ctx, n.ID, "recipient has no Lark account"); err != nil {
				return report, err
			}
			report.Skipped++
			continue
		}

		if err := s.sender.SendText(ctx, user.LarkOpenID, formatNotification(n)); err != nil {
			s.logger.Error("Failed to deliver notification",
				"error", err,
				"notification_id", n.ID,
				"attempt", n.Attempts+1,
			)
			if err := s.notifications.MarkFailed(ctx, n.ID, err.Error()); err != nil {
				return report, err
			}
			report.Failed++
			continue
		}

		if err := s.notifications.MarkDelivered(ctx, n.ID, s.opts.now().UTC()); err != nil {
			return report, err
		}
		report.Sent++
	}

	if len(batch) > 0 {
		s.logger.Info("Outbox pass completed",
			"sent", report.Sent,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}
	return report, nil
}

func formatNotification(n *entity.Notification) string {
	if n.Message == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Message
}

// notifier writes notifications inside the caller's transaction, so they commit
// or roll back with the state change that produced them
type notifier struct {
	repo port.NotificationRepository
}

func (n *notifier) push(ctx context.Context, note *entity.Notification) (bool, error) {
	created, err := n.repo.Create(ctx, note)
	if err != nil {
		return false, fmt.Errorf("queue %s notification for user %d: %w", note.Type, note.UserID, err)
	}
	return created, nil
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
