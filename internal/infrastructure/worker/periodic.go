package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicConfig holds the schedule of a periodic worker
type PeriodicConfig struct {
	Interval   time.Duration
	Timeout    time.Duration // per run; zero means Interval
	RunOnStart bool
}

// Status is a point-in-time view of a worker for health reporting
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// periodic runs a job on a ticker until stopped. Runs never overlap.
type periodic struct {
	name   string
	config PeriodicConfig
	job    func(ctx context.Context) error
	logger *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	kick      chan struct{}
	isRunning bool
	runs      int
	failures  int
	lastRun   time.Time
	lastError error
}

func newPeriodic(name string, config PeriodicConfig, job func(ctx context.Context) error, logger *zap.Logger) *periodic {
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}
	return &periodic{
		name:   name,
		config: config,
		job:    job,
		logger: logger.With(zap.String("worker", name)),
		kick:   make(chan struct{}, 1),
	}
}

func (p *periodic) Name() string {
	return p.name
}

// Start begins the polling loop in a background goroutine
func (p *periodic) Start(ctx context.Context) error {
	if p.config.Interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", p.name)
	}

	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("%s already running", p.name)
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.isRunning = true
	p.mu.Unlock()

	p.logger.Info("Worker started", zap.Duration("interval", p.config.Interval))

	go p.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (p *periodic) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.RLock()
	p.logger.Info("Worker stopped", zap.Int("runs", p.runs), zap.Int("failures", p.failures))
	p.mu.RUnlock()
	return nil
}

// Trigger requests a run ahead of the next tick. Requests made while a run is
// pending are coalesced.
func (p *periodic) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *periodic) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		Name:     p.name,
		Running:  p.isRunning,
		Runs:     p.runs,
		Failures: p.failures,
		LastRun:  p.lastRun,
	}
	if p.lastError != nil {
		s.LastError = p.lastError.Error()
	}
	return s
}

func (p *periodic) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.kick:
			p.runOnce(ctx)
		}
	}
}

func (p *periodic) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	err := p.job(runCtx)

	p.mu.Lock()
	p.runs++
	p.lastRun = time.Now()
	p.lastError = err
	if err != nil {
		p.failures++
	}
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		p.logger.Error("Worker run failed", zap.Error(err))
	}
}
