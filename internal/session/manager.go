// Package session orchestrates conversation turns: context resolution,
// message persistence, and LLM invocation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialogkit/dialogkit/internal/events"
	"github.com/dialogkit/dialogkit/internal/llm"
	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/internal/source"
	"github.com/dialogkit/dialogkit/internal/store"
	"github.com/dialogkit/dialogkit/pkg/logger"
	"github.com/dialogkit/dialogkit/pkg/metrics"
)

// ErrInvalidTurn is returned for turn requests that fail validation before
// reaching any adapter.
var ErrInvalidTurn = errors.New("invalid turn request")

// transcriptWindow bounds how many trailing messages are sent to the
// backend per turn.
const transcriptWindow = 50

// Options configure a Manager. Options are immutable after construction.
type Options struct {
	// TurnTimeout bounds each LLM invocation.
	TurnTimeout time.Duration
	// Model overrides the provider default model when non-empty.
	Model string
	// MaxTokens caps the completion length. Zero uses the adapter default.
	MaxTokens int
	// AllowContextless lets a turn proceed when its context id does not
	// resolve. When false, such turns fail.
	AllowContextless bool
	// WelcomeMessage, when non-empty, is appended as an assistant message
	// to explicitly started conversations.
	WelcomeMessage string
}

// Manager owns conversation lifecycle and brokers turns to the LLM adapter.
// Turns targeting the same conversation are serialized; distinct
// conversations proceed in parallel.
type Manager struct {
	store     store.Store
	resolvers *source.Registry
	llmClient llm.Client
	suggester *llm.Suggester
	publisher events.Publisher
	logger    *logger.Logger
	opts      Options

	locks conversationLocks
}

// NewManager creates a session manager. llmClient may be nil, in which case
// turns fail with an unavailable error; publisher may be nil for no event
// fan-out.
func NewManager(
	st store.Store,
	resolvers *source.Registry,
	llmClient llm.Client,
	suggester *llm.Suggester,
	publisher events.Publisher,
	log *logger.Logger,
	opts Options,
) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 60 * time.Second
	}
	return &Manager{
		store:     st,
		resolvers: resolvers,
		llmClient: llmClient,
		suggester: suggester,
		publisher: publisher,
		logger:    log,
		opts:      opts,
	}
}

// TurnInput is a validated turn request. An empty ConversationID starts a
// new conversation.
type TurnInput struct {
	ConversationID string
	Message        string
	ContextType    model.ContextType
	ContextID      string
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	ConversationID   string
	Reply            string
	Suggestions      []string
	UserMessage      *model.Message
	AssistantMessage *model.Message
}

// Turn executes one conversation turn: resolve context, persist the user
// message, invoke the LLM, persist the reply. If the LLM call fails the user
// message is retained and no assistant message is written.
func (m *Manager) Turn(ctx context.Context, caller model.Caller, input TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidTurn)
	}

	resolved, err := m.resolveContext(ctx, input.ContextType, input.ContextID)
	if err != nil {
		return nil, err
	}

	// Serialize the whole turn per conversation so message pairs from
	// concurrent turns cannot interleave. The lock is taken before the
	// conversation is loaded: a turn that waited here must build its
	// transcript from the messages the preceding turn persisted.
	var conv *model.Conversation
	if input.ConversationID != "" {
		unlock := m.locks.lock(input.ConversationID)
		defer unlock()

		conv, err = m.store.GetConversation(ctx, caller.TenantID, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("loading conversation: %w", err)
		}
	} else {
		conv, err = m.create(ctx, caller, "", resolved)
		if err != nil {
			return nil, err
		}
		unlock := m.locks.lock(conv.ID)
		defer unlock()
	}

	userMsg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        input.Message,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.store.AppendMessage(ctx, caller.TenantID, userMsg); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(caller.TenantID, string(model.RoleUser)).Inc()

	transcript := buildTranscript(conv.Messages, userMsg)
	system := systemPrompt(conv, resolved)

	resp, err := m.invoke(ctx, system, transcript)
	if err != nil {
		m.logger.Warn("turn failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		m.publish(caller, conv, events.EventTurnFailed, err.Error())
		return nil, err
	}

	assistantMsg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        resp.Content,
		CreatedAt:      time.Now().UTC(),
		Model:          &resp.Model,
		TokensIn:       &resp.TokensIn,
		TokensOut:      &resp.TokensOut,
		LatencyMs:      &resp.LatencyMs,
	}
	if err := m.store.AppendMessage(ctx, caller.TenantID, assistantMsg); err != nil {
		return nil, fmt.Errorf("persisting assistant message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(caller.TenantID, string(model.RoleAssistant)).Inc()
	metrics.RecordLLMRequest(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)

	suggestions := m.suggest(ctx, system, append(transcript, llm.ChatMessage{
		Role:    string(model.RoleAssistant),
		Content: resp.Content,
	}))

	m.publish(caller, conv, events.EventTurnCompleted, "")

	return &TurnResult{
		ConversationID:   conv.ID,
		Reply:            resp.Content,
		Suggestions:      suggestions,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// StartInput explicitly starts a fresh conversation.
type StartInput struct {
	Title       string
	ContextType model.ContextType
	ContextID   string
}

// StartConversation creates a new conversation without running a turn. When
// a welcome message is configured it is appended as the first assistant
// message.
func (m *Manager) StartConversation(ctx context.Context, caller model.Caller, input StartInput) (*model.Conversation, error) {
	resolved, err := m.resolveContext(ctx, input.ContextType, input.ContextID)
	if err != nil {
		return nil, err
	}

	conv, err := m.create(ctx, caller, input.Title, resolved)
	if err != nil {
		return nil, err
	}

	if m.opts.WelcomeMessage != "" {
		welcome := &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conv.ID,
			Role:           model.RoleAssistant,
			Content:        m.opts.WelcomeMessage,
			CreatedAt:      time.Now().UTC(),
		}
		if err := m.store.AppendMessage(ctx, caller.TenantID, welcome); err != nil {
			return nil, fmt.Errorf("persisting welcome message: %w", err)
		}
		conv.Messages = append(conv.Messages, *welcome)
	}

	return conv, nil
}

// Suggestions produces follow-up prompts for an existing conversation
// without running a turn.
func (m *Manager) Suggestions(ctx context.Context, caller model.Caller, conversationID string) ([]string, error) {
	conv, err := m.store.GetConversation(ctx, caller.TenantID, conversationID)
	if err != nil {
		return nil, err
	}
	transcript := buildTranscript(conv.Messages, nil)
	return m.suggest(ctx, systemPrompt(conv, nil), transcript), nil
}

func (m *Manager) resolveContext(ctx context.Context, contextType model.ContextType, contextID string) (*model.ResolvedContext, error) {
	if contextType == model.ContextTypeNone {
		if contextID != "" {
			return nil, fmt.Errorf("%w: context_id requires context_type", ErrInvalidTurn)
		}
		return nil, nil
	}

	resolved, err := m.resolvers.Resolve(ctx, contextType, contextID)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) && m.opts.AllowContextless {
			m.logger.Warn("context did not resolve, proceeding without it",
				zap.String("context_type", string(contextType)),
				zap.String("context_id", contextID),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("resolving context %s/%s: %w", contextType, contextID, err)
	}
	return resolved, nil
}

func (m *Manager) create(ctx context.Context, caller model.Caller, title string, resolved *model.ResolvedContext) (*model.Conversation, error) {
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  caller.TenantID,
		UserID:    caller.UserID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if resolved != nil {
		conv.ContextType = resolved.Type
		conv.ContextID = resolved.ID
		conv.ContextName = resolved.Name
	}
	if conv.Title == "" {
		conv.Title = conv.DefaultTitle()
	}

	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues(caller.TenantID).Inc()

	m.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("tenant_id", caller.TenantID),
		zap.String("context_type", string(conv.ContextType)),
	)
	return conv, nil
}

func (m *Manager) invoke(ctx context.Context, system string, transcript []llm.ChatMessage) (*llm.CompletionResponse, error) {
	if m.llmClient == nil {
		return nil, fmt.Errorf("invoking llm: %w", llm.ErrUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.opts.TurnTimeout)
	defer cancel()

	resp, err := m.llmClient.Complete(callCtx, &llm.CompletionRequest{
		Model:     m.opts.Model,
		System:    system,
		Messages:  transcript,
		MaxTokens: m.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking llm: %w", err)
	}
	return resp, nil
}

func (m *Manager) suggest(ctx context.Context, system string, transcript []llm.ChatMessage) []string {
	if m.suggester == nil {
		return llm.DefaultSuggestions
	}
	return m.suggester.Suggest(ctx, system, transcript)
}

func (m *Manager) publish(caller model.Caller, conv *model.Conversation, eventType events.EventType, reason string) {
	// Event fan-out must not block or fail the turn; use a detached
	// short-lived context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	event := &events.Event{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Type:           eventType,
		TenantID:       caller.TenantID,
		ConversationID: conv.ID,
		ContextType:    conv.ContextType,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("event publish failed", zap.Error(err))
	}
}

// buildTranscript converts stored messages plus the pending user message
// into adapter form, windowed to the trailing transcriptWindow entries.
func buildTranscript(history []model.Message, pending *model.Message) []llm.ChatMessage {
	transcript := make([]llm.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		transcript = append(transcript, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	if pending != nil {
		transcript = append(transcript, llm.ChatMessage{
			Role:    string(pending.Role),
			Content: pending.Content,
		})
	}
	if len(transcript) > transcriptWindow {
		transcript = transcript[len(transcript)-transcriptWindow:]
	}
	return transcript
}

// systemPrompt scopes the backend to the conversation's context. Prompt
// strategy beyond naming the context is the host's concern.
func systemPrompt(conv *model.Conversation, resolved *model.ResolvedContext) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant embedded in a host application.")

	name := conv.ContextName
	contextType := conv.ContextType
	if resolved != nil {
		name = resolved.Name
		contextType = resolved.Type
	}
	if name != "" {
		fmt.Fprintf(&b, " The conversation is scoped to the %s %q.", contextType, name)
	}
	if resolved != nil && len(resolved.Metadata) > 0 {
		keys := make([]string, 0, len(resolved.Metadata))
		for key := range resolved.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "\n%s: %s", key, resolved.Metadata[key])
		}
	}
	return b.String()
}
