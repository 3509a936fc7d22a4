package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/pkg/logger"
)

// SQLiteStore implements Store using modernc.org/sqlite. The schema is
// created automatically on open.
type SQLiteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path. Parent
// directories are created if needed.
func NewSQLiteStore(path string, log *logger.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas go through the DSN so every pooled connection gets them.
	// foreign_keys in particular is per-connection; without it a delete on
	// a fresh connection would skip the message cascade. WAL improves
	// concurrent read/write behavior.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info("sqlite store initialized")
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL,
			user_id      TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			context_type TEXT NOT NULL DEFAULT '',
			context_id   TEXT NOT NULL DEFAULT '',
			context_name TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL,
			metadata     TEXT NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_tenant_updated
			ON conversations(tenant_id, updated_at);

		CREATE INDEX IF NOT EXISTS idx_conversations_context
			ON conversations(tenant_id, context_type, context_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      DATETIME NOT NULL,
			metadata        TEXT NOT NULL DEFAULT '{}',
			model           TEXT,
			tokens_in       INTEGER,
			tokens_out      INTEGER,
			latency_ms      INTEGER,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation inserts a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	meta, err := marshalMetadata(conv.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, tenant_id, user_id, title, context_type, context_id, context_name, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.TenantID, conv.UserID, conv.Title,
		string(conv.ContextType), conv.ContextID, conv.ContextName,
		conv.CreatedAt, conv.UpdatedAt, meta,
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation loads a conversation and its ordered messages.
func (s *SQLiteStore) GetConversation(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	var (
		conv        model.Conversation
		contextType string
		meta        string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, title, context_type, context_id, context_name, created_at, updated_at, metadata
		FROM conversations
		WHERE id = ? AND tenant_id = ?`,
		conversationID, tenantID,
	).Scan(&conv.ID, &conv.TenantID, &conv.UserID, &conv.Title,
		&contextType, &conv.ContextID, &conv.ContextName,
		&conv.CreatedAt, &conv.UpdatedAt, &meta)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	conv.ContextType = model.ContextType(contextType)
	if conv.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, fmt.Errorf("decoding conversation metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at, metadata, model, tokens_in, tokens_out, latency_ms
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, rowid`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg      model.Message
			role     string
			meta     string
			llmModel sql.NullString
			tokIn    sql.NullInt64
			tokOut   sql.NullInt64
			latency  sql.NullInt64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
			&msg.CreatedAt, &meta, &llmModel, &tokIn, &tokOut, &latency); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = model.Role(role)
		if msg.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, fmt.Errorf("decoding message metadata: %w", err)
		}
		if llmModel.Valid {
			v := llmModel.String
			msg.Model = &v
		}
		if tokIn.Valid {
			v := int(tokIn.Int64)
			msg.TokensIn = &v
		}
		if tokOut.Valid {
			v := int(tokOut.Int64)
			msg.TokensOut = &v
		}
		if latency.Valid {
			v := latency.Int64
			msg.LatencyMs = &v
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return &conv, nil
}

// AppendMessage inserts a message and bumps the conversation's updated_at in
// one transaction. updated_at never moves backwards.
func (s *SQLiteStore) AppendMessage(ctx context.Context, tenantID string, msg *model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var conv struct {
		id        string
		updatedAt sql.NullTime
	}
	err = tx.QueryRowContext(ctx,
		`SELECT id, updated_at FROM conversations WHERE id = ? AND tenant_id = ?`,
		msg.ConversationID, tenantID,
	).Scan(&conv.id, &conv.updatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}

	meta, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, role, content, created_at, metadata, model, tokens_in, tokens_out, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		msg.CreatedAt, meta,
		nullableString(msg.Model), nullableInt(msg.TokensIn), nullableInt(msg.TokensOut), nullableInt64(msg.LatencyMs),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	updated := msg.CreatedAt
	if conv.updatedAt.Valid && conv.updatedAt.Time.After(updated) {
		updated = conv.updatedAt.Time
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		updated, msg.ConversationID,
	); err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	return tx.Commit()
}

const summaryColumns = `
	c.id, c.title, c.context_type, c.context_id, c.context_name,
	c.created_at, c.updated_at, c.metadata,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
	COALESCE((SELECT substr(m.content, 1, 120)
		FROM messages m WHERE m.conversation_id = c.id
		ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1), '')`

// ListConversations returns summaries ordered most-recently-updated first
// and the total count matching the filter.
func (s *SQLiteStore) ListConversations(ctx context.Context, tenantID string, filter model.ListFilter, limit, offset int) ([]model.ConversationSummary, int, error) {
	where := []string{"c.tenant_id = ?"}
	args := []any{tenantID}
	if filter.ContextType != model.ContextTypeNone {
		where = append(where, "c.context_type = ?")
		args = append(args, string(filter.ContextType))
	}
	if filter.ContextID != "" {
		where = append(where, "c.context_id = ?")
		args = append(args, filter.ContextID)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations c WHERE "+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}

	query := "SELECT " + summaryColumns + " FROM conversations c WHERE " + cond +
		" ORDER BY c.updated_at DESC, c.id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// SearchConversations matches the query against titles and message content.
func (s *SQLiteStore) SearchConversations(ctx context.Context, tenantID, query string, limit int) ([]model.ConversationSummary, int, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM conversations c
		WHERE c.tenant_id = ?
			AND (c.title LIKE ? ESCAPE '\'
				OR EXISTS (SELECT 1 FROM messages m
					WHERE m.conversation_id = c.id AND m.content LIKE ? ESCAPE '\'))
		ORDER BY c.updated_at DESC, c.id
		LIMIT ?`,
		tenantID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("searching conversations: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return summaries, len(summaries), nil
}

// DeleteConversation removes a conversation; messages cascade.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, tenantID, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND tenant_id = ?`,
		conversationID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSummaries(rows *sql.Rows) ([]model.ConversationSummary, error) {
	summaries := []model.ConversationSummary{}
	for rows.Next() {
		var (
			sum         model.ConversationSummary
			contextType string
			meta        string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &contextType, &sum.ContextID, &sum.ContextName,
			&sum.CreatedAt, &sum.UpdatedAt, &meta, &sum.MessageCount, &sum.Preview); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		sum.ContextType = model.ContextType(contextType)
		var err error
		if sum.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, fmt.Errorf("decoding summary metadata: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}
	return summaries, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
