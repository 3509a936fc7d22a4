package model

// TurnRequest is the inbound request for a single conversation turn. A
// missing ConversationID starts a new conversation.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	ContextType    string `json:"context_type,omitempty"`
	ContextID      string `json:"context_id,omitempty"`
}

// TurnResponse is the reply to a successful turn.
type TurnResponse struct {
	Status         string   `json:"status"`
	ConversationID string   `json:"conversation_id"`
	Reply          string   `json:"reply"`
	Suggestions    []string `json:"suggestions"`
}

// StartConversationRequest explicitly starts a fresh conversation.
type StartConversationRequest struct {
	Title       string `json:"title,omitempty"`
	ContextType string `json:"context_type,omitempty"`
	ContextID   string `json:"context_id,omitempty"`
}

// StartConversationResponse returns the new conversation.
type StartConversationResponse struct {
	Status       string        `json:"status"`
	Conversation *Conversation `json:"conversation"`
}

// SuggestionsResponse carries pre-populated follow-up prompts.
type SuggestionsResponse struct {
	Status      string   `json:"status"`
	Suggestions []string `json:"suggestions"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Status        string                `json:"status"`
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page,omitempty"`
	PageSize      int                   `json:"page_size,omitempty"`
}

// SearchConversationsResponse is the response for free-text search.
type SearchConversationsResponse struct {
	Status        string                `json:"status"`
	Conversations []ConversationSummary `json:"conversations"`
	Count         int                   `json:"count"`
}

// ConversationResponse wraps a single conversation with its messages.
type ConversationResponse struct {
	Status       string        `json:"status"`
	Conversation *Conversation `json:"conversation"`
}

// ImportConversationResponse returns the id assigned to an imported
// transcript.
type ImportConversationResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id"`
}

// StatusResponse is the generic success/error envelope.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
