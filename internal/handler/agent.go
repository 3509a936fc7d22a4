// Package handler provides the HTTP surface of the conversation module.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dialogkit/dialogkit/internal/llm"
	"github.com/dialogkit/dialogkit/internal/middleware"
	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/internal/session"
	"github.com/dialogkit/dialogkit/internal/source"
	"github.com/dialogkit/dialogkit/internal/store"
	"github.com/dialogkit/dialogkit/pkg/logger"
	"github.com/dialogkit/dialogkit/pkg/metrics"
)

// AgentHandler handles live messaging endpoints.
type AgentHandler struct {
	sessions *session.Manager
	logger   *logger.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(sessions *session.Manager, log *logger.Logger) *AgentHandler {
	return &AgentHandler{sessions: sessions, logger: log}
}

// Message handles POST /api/v1/agent/message — one conversation turn.
func (h *AgentHandler) Message(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var req model.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	contextType, ok := model.ParseContextType(req.ContextType)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown context_type")
		return
	}

	result, err := h.sessions.Turn(ctx, caller, session.TurnInput{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		ContextType:    contextType,
		ContextID:      req.ContextID,
	})
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(caller.TenantID, "failure").Inc()
		status, message := turnErrorStatus(err)
		writeError(w, status, message)
		return
	}
	metrics.TurnsTotal.WithLabelValues(caller.TenantID, "success").Inc()

	writeJSON(w, http.StatusOK, model.TurnResponse{
		Status:         "success",
		ConversationID: result.ConversationID,
		Reply:          result.Reply,
		Suggestions:    result.Suggestions,
	})
}

// Start handles POST /api/v1/agent/conversations — explicitly start a new
// conversation.
func (h *AgentHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var req model.StartConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contextType, ok := model.ParseContextType(req.ContextType)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown context_type")
		return
	}

	conv, err := h.sessions.StartConversation(ctx, caller, session.StartInput{
		Title:       req.Title,
		ContextType: contextType,
		ContextID:   req.ContextID,
	})
	if err != nil {
		status, message := turnErrorStatus(err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusCreated, model.StartConversationResponse{
		Status:       "success",
		Conversation: conv,
	})
}

// Suggestions handles GET /api/v1/agent/suggestions — follow-up prompts for
// a conversation without running a turn.
func (h *AgentHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	conversationID := r.URL.Query().Get("conversation_id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	suggestions, err := h.sessions.Suggestions(ctx, caller, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to get suggestions")
		writeError(w, http.StatusInternalServerError, "failed to get suggestions")
		return
	}

	writeJSON(w, http.StatusOK, model.SuggestionsResponse{
		Status:      "success",
		Suggestions: suggestions,
	})
}

// turnErrorStatus maps session errors onto HTTP statuses and caller-safe
// messages.
func turnErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidTurn):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, source.ErrNotFound):
		return http.StatusNotFound, "context not found"
	case errors.Is(err, llm.ErrAuthentication):
		return http.StatusBadGateway, "llm backend rejected credentials"
	case errors.Is(err, llm.ErrMalformedResponse):
		return http.StatusBadGateway, "llm backend returned an unusable response"
	case errors.Is(err, llm.ErrRateLimited), errors.Is(err, llm.ErrUnavailable):
		return http.StatusServiceUnavailable, "llm backend unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "llm request timed out"
	default:
		return http.StatusInternalServerError, "turn failed"
	}
}
