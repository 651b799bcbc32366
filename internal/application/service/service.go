package service

import (
	"context"
	"time"

	"github.com/garyjia/contract-approvals/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher receives domain events once the producing transaction has committed
type EventPublisher interface {
	Publish(ctx context.Context, events ...*event.Event)
}

type options struct {
	now func() time.Time
}

// Option configures a service
type Option func(*options)

// WithClock overrides the time source used for due dates and timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
