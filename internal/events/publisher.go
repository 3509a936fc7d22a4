// Package events publishes conversation lifecycle events for host
// applications that want to observe the module (audit trails, cache
// invalidation, analytics). Publishing is best-effort and never blocks or
// fails a turn.
package events

import (
	"context"
	"time"

	"github.com/dialogkit/dialogkit/internal/model"
)

// EventType identifies a conversation lifecycle event.
type EventType string

const (
	EventTurnCompleted       EventType = "turn_completed"
	EventTurnFailed          EventType = "turn_failed"
	EventConversationDeleted EventType = "conversation_deleted"
)

// Event is the published payload.
type Event struct {
	ID             string            `json:"id"`
	Type           EventType         `json:"type"`
	TenantID       string            `json:"tenant_id"`
	ConversationID string            `json:"conversation_id"`
	ContextType    model.ContextType `json:"context_type,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Publisher emits conversation events.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close()
}

// NopPublisher discards all events. Used when no event bus is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// Close is a no-op.
func (NopPublisher) Close() {}
