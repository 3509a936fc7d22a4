// Package store persists conversations and messages.
package store

import (
	"context"
	"errors"

	"github.com/dialogkit/dialogkit/internal/model"
)

// ErrNotFound is returned when a requested conversation does not exist for
// the calling tenant.
var ErrNotFound = errors.New("conversation not found")

// PreviewLength bounds the latest-message preview carried on listing rows.
const PreviewLength = 120

// Store is the persistence boundary for conversations and their messages.
// Every operation is scoped by tenant id and atomic with respect to partial
// writes. Implementations must keep message order stable: messages are
// returned in append order and timestamps are non-decreasing within a
// conversation.
type Store interface {
	// CreateConversation persists a new conversation. The caller supplies
	// id and timestamps.
	CreateConversation(ctx context.Context, conv *model.Conversation) error

	// GetConversation returns a conversation and its full ordered message
	// sequence, or ErrNotFound.
	GetConversation(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error)

	// AppendMessage appends a message to its conversation and advances the
	// conversation's updated_at in the same transaction. Returns
	// ErrNotFound if the conversation does not exist for the tenant.
	AppendMessage(ctx context.Context, tenantID string, msg *model.Message) error

	// ListConversations returns summaries ordered most-recently-updated
	// first, plus the total count matching the filter before pagination.
	ListConversations(ctx context.Context, tenantID string, filter model.ListFilter, limit, offset int) ([]model.ConversationSummary, int, error)

	// SearchConversations matches query against conversation titles and
	// message content. Results are ordered by recency and are deterministic
	// for a fixed store state.
	SearchConversations(ctx context.Context, tenantID, query string, limit int) ([]model.ConversationSummary, int, error)

	// DeleteConversation removes a conversation and cascades to all of its
	// messages. Returns ErrNotFound if it does not exist for the tenant.
	DeleteConversation(ctx context.Context, tenantID, conversationID string) error

	// Close releases the underlying resources.
	Close() error
}
