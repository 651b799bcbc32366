package dispatcher

import (
	"context"

	"github.com/garyjia/contract-approvals/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// Wildcard subscribes a handler to every event type
const Wildcard event.Type = "*"
