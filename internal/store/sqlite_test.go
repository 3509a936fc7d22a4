package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/pkg/logger"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newConversation(tenantID string, at time.Time) *model.Conversation {
	return &model.Conversation{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    tenantID,
		UserID:      "user-1",
		Title:       "Billing question",
		ContextType: model.ContextTypeWorld,
		ContextID:   "acme",
		ContextName: "Acme",
		CreatedAt:   at,
		UpdatedAt:   at,
		Metadata:    map[string]string{"channel": "web"},
	}
}

func newMessage(conversationID string, role model.Role, content string, at time.Time) *model.Message {
	return &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestCreateAndGetConversation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	require.NoError(t, s.CreateConversation(ctx, conv))

	got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, "Billing question", got.Title)
	assert.Equal(t, model.ContextTypeWorld, got.ContextType)
	assert.Equal(t, "Acme", got.ContextName)
	assert.Equal(t, map[string]string{"channel": "web"}, got.Metadata)
	assert.Empty(t, got.Messages)
}

func TestGetConversationNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetConversation(context.Background(), "tenant-a", uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConversationWrongTenant(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	conv := newConversation("tenant-a", time.Now().UTC())
	require.NoError(t, s.CreateConversation(ctx, conv))

	_, err := s.GetConversation(ctx, "tenant-b", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	require.NoError(t, s.CreateConversation(ctx, conv))

	// Identical timestamps: insertion order must still hold.
	for i := 0; i < 5; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msg := newMessage(conv.ID, role, fmt.Sprintf("message %d", i), now)
		require.NoError(t, s.AppendMessage(ctx, "tenant-a", msg))
	}

	got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 5)
	for i, msg := range got.Messages {
		assert.Equal(t, fmt.Sprintf("message %d", i), msg.Content)
	}
}

func TestAppendMessageMissingConversation(t *testing.T) {
	s := setupTestStore(t)

	msg := newMessage(uuid.NewString(), model.RoleUser, "hello", time.Now().UTC())
	err := s.AppendMessage(context.Background(), "tenant-a", msg)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	conv := newConversation("tenant-a", created)
	require.NoError(t, s.CreateConversation(ctx, conv))

	later := created.Add(30 * time.Minute)
	require.NoError(t, s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleUser, "hi", later)))

	got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later), "updated_at should follow the message timestamp")

	// A message with an older timestamp must not move updated_at backwards.
	earlier := created.Add(10 * time.Minute)
	require.NoError(t, s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleAssistant, "hello", earlier)))

	got, err = s.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later), "updated_at moved backwards")
}

func TestAppendMessagePersistsLLMMetadata(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	require.NoError(t, s.CreateConversation(ctx, conv))

	llmModel := "claude-3-5-sonnet-20241022"
	tokensIn, tokensOut := 120, 34
	latency := int64(850)
	msg := newMessage(conv.ID, model.RoleAssistant, "here is the answer", now)
	msg.Model = &llmModel
	msg.TokensIn = &tokensIn
	msg.TokensOut = &tokensOut
	msg.LatencyMs = &latency
	require.NoError(t, s.AppendMessage(ctx, "tenant-a", msg))

	got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.NotNil(t, got.Messages[0].Model)
	assert.Equal(t, llmModel, *got.Messages[0].Model)
	require.NotNil(t, got.Messages[0].TokensIn)
	assert.Equal(t, tokensIn, *got.Messages[0].TokensIn)
	require.NotNil(t, got.Messages[0].LatencyMs)
	assert.Equal(t, latency, *got.Messages[0].LatencyMs)
}

func TestListConversations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		conv := newConversation("tenant-a", base.Add(time.Duration(i)*time.Minute))
		conv.Title = fmt.Sprintf("conversation %d", i)
		require.NoError(t, s.CreateConversation(ctx, conv))
		ids = append(ids, conv.ID)
	}
	// Another tenant's conversation must not leak into the listing.
	require.NoError(t, s.CreateConversation(ctx, newConversation("tenant-b", base)))

	summaries, total, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, summaries, 3)

	// Most recently updated first.
	assert.Equal(t, ids[2], summaries[0].ID)
	assert.Equal(t, ids[0], summaries[2].ID)
}

func TestListConversationsPagination(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateConversation(ctx, newConversation("tenant-a", base.Add(time.Duration(i)*time.Minute))))
	}

	first, total, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, first, 2)

	second, _, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	last, _, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last, 1)

	empty, _, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Same page, no intervening writes: identical results.
	again, againTotal, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, total, againTotal)
	assert.Equal(t, first, again)
}

func TestListConversationsContextFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	var worldID string
	for i := 0; i < 2; i++ {
		world := newConversation("tenant-a", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateConversation(ctx, world))
		worldID = world.ID
	}
	for i := 0; i < 3; i++ {
		persona := newConversation("tenant-a", now.Add(time.Duration(10+i)*time.Minute))
		persona.ContextType = model.ContextTypePersona
		persona.ContextID = "guide"
		persona.ContextName = "Guide"
		require.NoError(t, s.CreateConversation(ctx, persona))
	}

	summaries, total, err := s.ListConversations(ctx, "tenant-a",
		model.ListFilter{ContextType: model.ContextTypePersona}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, summaries, 3)
	for _, sum := range summaries {
		assert.Equal(t, model.ContextTypePersona, sum.ContextType)
	}

	summaries, total, err = s.ListConversations(ctx, "tenant-a",
		model.ListFilter{ContextType: model.ContextTypeWorld, ContextID: "acme"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, summaries, 2)
	assert.Equal(t, worldID, summaries[0].ID)
}

func TestSummaryCountAndPreview(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	require.NoError(t, s.CreateConversation(ctx, conv))

	require.NoError(t, s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleUser, "first", now)))
	require.NoError(t, s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleAssistant, "latest reply", now.Add(time.Second))))

	summaries, _, err := s.ListConversations(ctx, "tenant-a", model.ListFilter{}, 50, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].MessageCount)
	assert.Equal(t, "latest reply", summaries[0].Preview)
}

func TestSearchConversations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	billing := newConversation("tenant-a", now)
	billing.Title = "Refund policy"
	require.NoError(t, s.CreateConversation(ctx, billing))

	shipping := newConversation("tenant-a", now.Add(time.Minute))
	shipping.Title = "Shipping times"
	require.NoError(t, s.CreateConversation(ctx, shipping))
	require.NoError(t, s.AppendMessage(ctx, "tenant-a",
		newMessage(shipping.ID, model.RoleUser, "how long does delivery take", now.Add(time.Minute))))

	// Title match.
	results, count, err := s.SearchConversations(ctx, "tenant-a", "refund", 20)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, results, 1)
	assert.Equal(t, billing.ID, results[0].ID)

	// Message content match.
	results, count, err = s.SearchConversations(ctx, "tenant-a", "delivery", 20)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, results, 1)
	assert.Equal(t, shipping.ID, results[0].ID)

	// No match.
	results, count, err = s.SearchConversations(ctx, "tenant-a", "nonexistent", 20)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, results)
}

func TestSearchEscapesLikeWildcards(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	conv.Title = "Discount codes"
	require.NoError(t, s.CreateConversation(ctx, conv))

	literal := newConversation("tenant-a", now.Add(time.Minute))
	literal.Title = "100% coverage"
	require.NoError(t, s.CreateConversation(ctx, literal))

	results, count, err := s.SearchConversations(ctx, "tenant-a", "100%", 20)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, results, 1)
	assert.Equal(t, literal.ID, results[0].ID)
}

func TestDeleteConversationCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	require.NoError(t, s.CreateConversation(ctx, conv))
	require.NoError(t, s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleUser, "hello", now)))

	require.NoError(t, s.DeleteConversation(ctx, "tenant-a", conv.ID))

	_, err := s.GetConversation(ctx, "tenant-a", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Appending to a deleted conversation must fail cleanly.
	err = s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleUser, "ghost", now))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteCascadesOnFreshConnection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := newConversation("tenant-a", now)
	require.NoError(t, s.CreateConversation(ctx, conv))
	require.NoError(t, s.AppendMessage(ctx, "tenant-a", newMessage(conv.ID, model.RoleUser, "hello", now)))

	// Force the delete onto a connection the pool has not used yet;
	// foreign_keys must still be on there for the cascade to fire.
	s.db.SetMaxIdleConns(0)
	require.NoError(t, s.DeleteConversation(ctx, "tenant-a", conv.ID))

	var orphans int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conv.ID,
	).Scan(&orphans))
	assert.Equal(t, 0, orphans)
}

func TestDeleteConversationNotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.DeleteConversation(context.Background(), "tenant-a", uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
