package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/service"
)

// DefaultOutboxInterval is how often undelivered notifications are pushed
const DefaultOutboxInterval = 30 * time.Second

// OutboxWorker delivers pending notifications to the messenger
type OutboxWorker struct {
	*periodic
	notifications service.NotificationService
}

// NewOutboxWorker creates the outbox delivery worker
func NewOutboxWorker(config PeriodicConfig, notifications service.NotificationService, logger *zap.Logger) *OutboxWorker {
	if config.Interval == 0 {
		config.Interval = DefaultOutboxInterval
	}
	w := &OutboxWorker{notifications: notifications}
	w.periodic = newPeriodic("OutboxWorker", config, w.deliver, logger)
	return w
}

func (w *OutboxWorker) deliver(ctx context.Context) error {
	report, err := w.notifications.DeliverPending(ctx)
	if err != nil {
		return err
	}
	if report.Sent > 0 || report.Failed > 0 {
		w.logger.Info("Outbox delivery completed",
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped))
	}
	return nil
}
