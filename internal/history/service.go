// Package history exposes read, export, and delete operations over stored
// conversations, independent of live messaging.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialogkit/dialogkit/internal/events"
	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/internal/store"
	"github.com/dialogkit/dialogkit/pkg/logger"
)

const (
	// DefaultPageSize is used when the caller does not specify one.
	DefaultPageSize = 50
	// MaxPageSize is the enforced upper bound on page size.
	MaxPageSize = 100
	// DefaultSearchLimit bounds search result sets.
	DefaultSearchLimit = 20
)

// Service is a stateless façade over the conversation store.
type Service struct {
	store     store.Store
	publisher events.Publisher
	logger    *logger.Logger
}

// NewService creates a history service. publisher may be nil.
func NewService(st store.Store, publisher events.Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: st, publisher: publisher, logger: log}
}

// Page is one page of conversation summaries.
type Page struct {
	Conversations []model.ConversationSummary
	Total         int
	Page          int
	PageSize      int
}

// ListPaginated returns 1-indexed pages of conversation summaries, most
// recently updated first. Page sizes are clamped to MaxPageSize.
func (s *Service) ListPaginated(ctx context.Context, caller model.Caller, page, pageSize int, filter model.ListFilter) (*Page, error) {
	if page < 1 {
		page = 1
	}
	pageSize = ClampPageSize(pageSize)
	offset := (page - 1) * pageSize

	summaries, total, err := s.store.ListConversations(ctx, caller.TenantID, filter, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return &Page{
		Conversations: summaries,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

// List returns conversation summaries with raw limit/offset pagination.
func (s *Service) List(ctx context.Context, caller model.Caller, filter model.ListFilter, limit, offset int) ([]model.ConversationSummary, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListConversations(ctx, caller.TenantID, filter, limit, offset)
}

// Get returns a conversation with its full message sequence.
func (s *Service) Get(ctx context.Context, caller model.Caller, conversationID string) (*model.Conversation, error) {
	return s.store.GetConversation(ctx, caller.TenantID, conversationID)
}

// Search matches free text against conversation titles and message content.
func (s *Service) Search(ctx context.Context, caller model.Caller, query string, limit int) ([]model.ConversationSummary, int, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.store.SearchConversations(ctx, caller.TenantID, query, limit)
}

// Delete irreversibly removes a conversation and all of its messages.
// Confirmation is the caller's concern.
func (s *Service) Delete(ctx context.Context, caller model.Caller, conversationID string) error {
	conv, err := s.store.GetConversation(ctx, caller.TenantID, conversationID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteConversation(ctx, caller.TenantID, conversationID); err != nil {
		return err
	}

	s.logger.Info("conversation deleted",
		zap.String("conversation_id", conversationID),
		zap.String("tenant_id", caller.TenantID),
	)

	pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, &events.Event{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Type:           events.EventConversationDeleted,
		TenantID:       caller.TenantID,
		ConversationID: conversationID,
		ContextType:    conv.ContextType,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
	return nil
}

// Export serializes a conversation transcript. Output is stable for
// unchanged data.
func (s *Service) Export(ctx context.Context, caller model.Caller, conversationID string) (*model.Transcript, error) {
	conv, err := s.store.GetConversation(ctx, caller.TenantID, conversationID)
	if err != nil {
		return nil, err
	}
	return model.NewTranscript(conv), nil
}

// ExportJSON renders the transcript as indented JSON.
func (s *Service) ExportJSON(ctx context.Context, caller model.Caller, conversationID string) ([]byte, error) {
	transcript, err := s.Export(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding transcript: %w", err)
	}
	return data, nil
}

// Import recreates a conversation from an exported transcript, preserving
// message order, roles, content, and timestamps. Returns the new
// conversation id.
func (s *Service) Import(ctx context.Context, caller model.Caller, transcript *model.Transcript) (string, error) {
	if transcript == nil || len(transcript.Messages) == 0 && transcript.Conversation.Title == "" {
		return "", fmt.Errorf("transcript is empty")
	}
	if transcript.SchemaVersion != model.ExportSchemaVersion {
		return "", fmt.Errorf("unsupported transcript schema version %d", transcript.SchemaVersion)
	}

	header := transcript.Conversation
	now := time.Now().UTC()
	createdAt := header.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	conv := &model.Conversation{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    caller.TenantID,
		UserID:      caller.UserID,
		Title:       header.Title,
		ContextType: header.ContextType,
		ContextID:   header.ContextID,
		ContextName: header.ContextName,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		Metadata:    header.Metadata,
	}
	if conv.Title == "" {
		conv.Title = conv.DefaultTitle()
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}

	for _, record := range transcript.Messages {
		ts := record.Timestamp
		if ts.IsZero() {
			ts = now
		}
		msg := &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conv.ID,
			Role:           record.Role,
			Content:        record.Content,
			CreatedAt:      ts,
			Metadata:       record.Metadata,
		}
		if err := s.store.AppendMessage(ctx, caller.TenantID, msg); err != nil {
			return "", fmt.Errorf("importing message: %w", err)
		}
	}

	return conv.ID, nil
}

// ClampPageSize applies the default and upper bound to a requested page
// size.
func ClampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}
