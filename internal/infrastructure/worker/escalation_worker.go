package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/service"
)

// DefaultEscalationInterval is how often overdue approvals are scanned
const DefaultEscalationInterval = 5 * time.Minute

// EscalationWorker periodically reminds approvers of approaching deadlines
// and escalates overdue approvals
type EscalationWorker struct {
	*periodic
	escalation service.EscalationService
}

// NewEscalationWorker creates the escalation scanner
func NewEscalationWorker(config PeriodicConfig, escalation service.EscalationService, logger *zap.Logger) *EscalationWorker {
	if config.Interval == 0 {
		config.Interval = DefaultEscalationInterval
	}
	w := &EscalationWorker{escalation: escalation}
	w.periodic = newPeriodic("EscalationWorker", config, w.scan, logger)
	return w
}

func (w *EscalationWorker) scan(ctx context.Context) error {
	report, err := w.escalation.Scan(ctx)
	if err != nil {
		return err
	}
	if report.Reminded > 0 || report.Escalated > 0 {
		w.logger.Info("Escalation scan completed",
			zap.Int("checked", report.Checked),
			zap.Int("reminded", report.Reminded),
			zap.Int("escalated", report.Escalated))
	}
	return nil
}
