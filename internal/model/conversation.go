// Package model defines data structures for the conversation module.
package model

import (
	"fmt"
	"time"
)

// Conversation represents a conversation thread and its ordered messages.
type Conversation struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	UserID      string            `json:"user_id,omitempty"`
	Title       string            `json:"title"`
	ContextType ContextType       `json:"context_type"`
	ContextID   string            `json:"context_id,omitempty"`
	ContextName string            `json:"context_name,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Messages    []Message         `json:"messages,omitempty"`
}

// ConversationSummary is a listing row without message bodies. Preview holds
// a short prefix of the latest message content.
type ConversationSummary struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	ContextType  ContextType       `json:"context_type"`
	ContextID    string            `json:"context_id,omitempty"`
	ContextName  string            `json:"context_name,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	MessageCount int               `json:"message_count"`
	Preview      string            `json:"preview,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// DefaultTitle derives a title from the conversation's context and creation
// time when the caller did not supply one.
func (c *Conversation) DefaultTitle() string {
	ts := c.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.Format("2006-01-02 15:04")

	switch {
	case c.ContextName != "":
		return fmt.Sprintf("%s - %s", c.ContextName, stamp)
	case c.ContextType != ContextTypeNone && c.ContextID != "":
		return fmt.Sprintf("%s %s - %s", c.ContextType.Title(), c.ContextID, stamp)
	default:
		return fmt.Sprintf("Conversation - %s", stamp)
	}
}

// ListFilter narrows conversation listings by context.
type ListFilter struct {
	ContextType ContextType
	ContextID   string
}
