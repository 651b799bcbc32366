package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised after a contract or approval changes
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ContractID    int64                  `json:"contract_id"`
	ActorID       *int64                 `json:"actor_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with a fresh ID and correlation chain
func NewEvent(eventType Type, contractID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, contractID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, contractID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ContractID:    contractID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// Follow creates an event in the same correlation chain as e
func (e *Event) Follow(eventType Type, payload map[string]interface{}) *Event {
	next := NewEventWithCorrelation(eventType, e.ContractID, payload, e.CorrelationID)
	next.ActorID = e.ActorID
	return next
}

// WithActor returns a copy of the event attributed to the given user
func (e *Event) WithActor(actorID int64) *Event {
	cp := *e
	cp.ActorID = &actorID
	return &cp
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
