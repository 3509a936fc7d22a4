package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/internal/store"
	"github.com/dialogkit/dialogkit/pkg/logger"
)

func setupService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewService(st, nil, logger.NewNop()), st
}

func testCaller() model.Caller {
	return model.Caller{TenantID: "tenant-a", UserID: "user-1"}
}

func seedConversation(t *testing.T, st store.Store, title string, at time.Time) *model.Conversation {
	t.Helper()

	conv := &model.Conversation{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    "tenant-a",
		UserID:      "user-1",
		Title:       title,
		ContextType: model.ContextTypeWorld,
		ContextID:   "acme",
		ContextName: "Acme",
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, st.CreateConversation(context.Background(), conv))
	return conv
}

func seedMessage(t *testing.T, st store.Store, conversationID string, role model.Role, content string, at time.Time) {
	t.Helper()

	require.NoError(t, st.AppendMessage(context.Background(), "tenant-a", &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}))
}

func TestListPaginated(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 7; i++ {
		seedConversation(t, st, fmt.Sprintf("conversation %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	page, err := svc.ListPaginated(ctx, testCaller(), 1, 3, model.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.PageSize)
	require.Len(t, page.Conversations, 3)
	assert.Equal(t, "conversation 6", page.Conversations[0].Title)

	last, err := svc.ListPaginated(ctx, testCaller(), 3, 3, model.ListFilter{})
	require.NoError(t, err)
	require.Len(t, last.Conversations, 1)
	assert.Equal(t, "conversation 0", last.Conversations[0].Title)

	beyond, err := svc.ListPaginated(ctx, testCaller(), 9, 3, model.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, beyond.Conversations)
	assert.Equal(t, 7, beyond.Total)
}

func TestListPaginatedClampsInput(t *testing.T) {
	svc, _ := setupService(t)

	page, err := svc.ListPaginated(context.Background(), testCaller(), 0, 0, model.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = svc.ListPaginated(context.Background(), testCaller(), 1, 10000, model.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
}

func TestSearch(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := seedConversation(t, st, "Refund policy", now)
	seedConversation(t, st, "Other topic", now.Add(time.Minute))

	results, count, err := svc.Search(ctx, testCaller(), "refund", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, results, 1)
	assert.Equal(t, conv.ID, results[0].ID)
}

func TestDelete(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := seedConversation(t, st, "Doomed", now)
	seedMessage(t, st, conv.ID, model.RoleUser, "hello", now)

	require.NoError(t, svc.Delete(ctx, testCaller(), conv.ID))

	_, err := svc.Get(ctx, testCaller(), conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteNotFound(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.Delete(context.Background(), testCaller(), uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := seedConversation(t, st, "Round trip", now)
	seedMessage(t, st, conv.ID, model.RoleUser, "what is the refund window", now)
	seedMessage(t, st, conv.ID, model.RoleAssistant, "thirty days from delivery", now.Add(time.Second))

	transcript, err := svc.Export(ctx, testCaller(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportSchemaVersion, transcript.SchemaVersion)
	assert.Equal(t, "Round trip", transcript.Conversation.Title)
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, model.RoleUser, transcript.Messages[0].Role)

	newID, err := svc.Import(ctx, testCaller(), transcript)
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, newID)

	imported, err := svc.Get(ctx, testCaller(), newID)
	require.NoError(t, err)
	assert.Equal(t, "Round trip", imported.Title)
	assert.Equal(t, model.ContextTypeWorld, imported.ContextType)
	require.Len(t, imported.Messages, 2)
	assert.Equal(t, "what is the refund window", imported.Messages[0].Content)
	assert.Equal(t, "thirty days from delivery", imported.Messages[1].Content)
	assert.True(t, imported.Messages[0].CreatedAt.Equal(now))
}

func TestExportDeterministic(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := seedConversation(t, st, "Stable", now)
	seedMessage(t, st, conv.ID, model.RoleUser, "hello", now)

	first, err := svc.ExportJSON(ctx, testCaller(), conv.ID)
	require.NoError(t, err)
	second, err := svc.ExportJSON(ctx, testCaller(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestImportRejectsUnknownSchema(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Import(context.Background(), testCaller(), &model.Transcript{
		SchemaVersion: 99,
		Conversation:  model.TranscriptHeader{Title: "Future"},
		Messages:      []model.TranscriptRecord{{Role: model.RoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}

func TestImportRejectsEmptyTranscript(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Import(context.Background(), testCaller(), nil)
	assert.Error(t, err)

	_, err = svc.Import(context.Background(), testCaller(), &model.Transcript{SchemaVersion: model.ExportSchemaVersion})
	assert.Error(t, err)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampPageSize(0))
	assert.Equal(t, DefaultPageSize, ClampPageSize(-5))
	assert.Equal(t, 10, ClampPageSize(10))
	assert.Equal(t, MaxPageSize, ClampPageSize(MaxPageSize+1))
}
