package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dialogkit/dialogkit/internal/history"
	"github.com/dialogkit/dialogkit/internal/middleware"
	"github.com/dialogkit/dialogkit/internal/model"
	"github.com/dialogkit/dialogkit/internal/store"
	"github.com/dialogkit/dialogkit/pkg/logger"
)

// HistoryHandler handles conversation history endpoints.
type HistoryHandler struct {
	service *history.Service
	logger  *logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(svc *history.Service, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{service: svc, logger: log}
}

// List handles GET /api/v1/history/conversations. Accepts either
// page/page_size or limit/offset, plus optional context filters.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)
	q := r.URL.Query()

	contextType, ok := model.ParseContextType(q.Get("context_type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown context_type")
		return
	}
	filter := model.ListFilter{
		ContextType: contextType,
		ContextID:   q.Get("context_id"),
	}

	if q.Get("page") != "" {
		page := intParam(q.Get("page"), 1)
		pageSize := intParam(q.Get("page_size"), history.DefaultPageSize)

		result, err := h.service.ListPaginated(ctx, caller, page, pageSize, filter)
		if err != nil {
			h.logger.Error("failed to list conversations")
			writeError(w, http.StatusInternalServerError, "failed to list conversations")
			return
		}
		writeJSON(w, http.StatusOK, model.ListConversationsResponse{
			Status:        "success",
			Conversations: result.Conversations,
			Total:         result.Total,
			Page:          result.Page,
			PageSize:      result.PageSize,
		})
		return
	}

	limit := intParam(q.Get("limit"), history.DefaultPageSize)
	offset := intParam(q.Get("offset"), 0)

	summaries, total, err := h.service.List(ctx, caller, filter, limit, offset)
	if err != nil {
		h.logger.Error("failed to list conversations")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Status:        "success",
		Conversations: summaries,
		Total:         total,
	})
}

// Get handles GET /api/v1/history/conversations/{id}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Get(ctx, caller, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to get conversation")
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	writeJSON(w, http.StatusOK, model.ConversationResponse{
		Status:       "success",
		Conversation: conv,
	})
}

// Search handles GET /api/v1/history/conversations/search?q=.
func (h *HistoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)
	q := r.URL.Query()

	query := q.Get("q")
	if err := middleware.ValidateSearchQuery(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := intParam(q.Get("limit"), history.DefaultSearchLimit)

	summaries, count, err := h.service.Search(ctx, caller, query, limit)
	if err != nil {
		h.logger.Error("failed to search conversations")
		writeError(w, http.StatusInternalServerError, "failed to search conversations")
		return
	}

	writeJSON(w, http.StatusOK, model.SearchConversationsResponse{
		Status:        "success",
		Conversations: summaries,
		Count:         count,
	})
}

// Delete handles DELETE /api/v1/history/conversations/{id}. Deletion is
// irreversible; confirmation is a UI concern.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(ctx, caller, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to delete conversation")
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("conversation %s deleted", conversationID),
	})
}

// Export handles GET /api/v1/history/conversations/{id}/export, returning a
// downloadable transcript.
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transcript, err := h.service.Export(ctx, caller, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to export conversation")
		writeError(w, http.StatusInternalServerError, "failed to export conversation")
		return
	}

	filename := exportFilename(transcript.Conversation.Title, conversationID)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(transcript)
}

// Import handles POST /api/v1/history/conversations/import.
func (h *HistoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var transcript model.Transcript
	if err := json.NewDecoder(r.Body).Decode(&transcript); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transcript body")
		return
	}

	conversationID, err := h.service.Import(ctx, caller, &transcript)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, model.ImportConversationResponse{
		Status:         "success",
		ConversationID: conversationID,
	})
}

// exportFilename derives a download filename from the conversation title,
// keeping only filesystem-safe characters.
func exportFilename(title, conversationID string) string {
	if title == "" {
		return fmt.Sprintf("conversation_%s.json", conversationID)
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, title)
	return fmt.Sprintf("%s_%s.json", safe, conversationID)
}

func intParam(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return fallback
}
