package llm

import (
	"context"
	"strings"
)

const (
	suggestionPrompt = "Generate 3 possible user messages that would be natural continuations of this conversation. Make them concise, diverse, and numbered (1-3)."

	maxSuggestions       = 3
	suggestionsMaxTokens = 200
)

// DefaultSuggestions are returned when the backend cannot produce
// suggestions.
var DefaultSuggestions = []string{
	"Tell me more about this topic",
	"How does this relate to my current task?",
	"Can you provide an example?",
}

// Suggester produces follow-up prompt suggestions for a conversation.
type Suggester struct {
	client Client
	model  string
}

// NewSuggester creates a suggester that uses the given client and model.
// An empty model uses the provider default.
func NewSuggester(client Client, model string) *Suggester {
	return &Suggester{client: client, model: model}
}

// Suggest asks the backend for follow-up prompts based on the transcript and
// optional system context. Any backend failure falls back to
// DefaultSuggestions; suggestions are never load-bearing.
func (s *Suggester) Suggest(ctx context.Context, system string, transcript []ChatMessage) []string {
	if s.client == nil {
		return DefaultSuggestions
	}

	messages := make([]ChatMessage, 0, len(transcript)+1)
	messages = append(messages, transcript...)
	messages = append(messages, ChatMessage{Role: "user", Content: suggestionPrompt})

	resp, err := s.client.Complete(ctx, &CompletionRequest{
		Model:     s.model,
		System:    system,
		Messages:  messages,
		MaxTokens: suggestionsMaxTokens,
	})
	if err != nil {
		return DefaultSuggestions
	}

	suggestions := ParseSuggestions(resp.Content)
	if len(suggestions) == 0 {
		return DefaultSuggestions
	}
	return suggestions
}

// ParseSuggestions extracts up to three suggestions from a numbered-list
// completion.
func ParseSuggestions(content string) []string {
	var suggestions []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = stripListMarker(line)
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

// stripListMarker removes a leading "1. ", "2) " or "- " style marker.
func stripListMarker(line string) string {
	trimmed := strings.TrimLeft(line, "0123456789")
	if trimmed != line {
		trimmed = strings.TrimLeft(trimmed, ".)")
		return strings.TrimSpace(trimmed)
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "- "))
}
