package model

import "strings"

// ContextType identifies the kind of host domain object a conversation is
// scoped to. The zero value means the conversation has no context.
type ContextType string

const (
	ContextTypeNone    ContextType = ""
	ContextTypeWorld   ContextType = "world"
	ContextTypePersona ContextType = "persona"
	ContextTypeProblem ContextType = "problem"
)

// ParseContextType normalizes a wire value into a ContextType. The second
// return value is false for unknown types.
func ParseContextType(s string) (ContextType, bool) {
	switch ContextType(strings.ToLower(strings.TrimSpace(s))) {
	case ContextTypeNone, ContextType("none"):
		return ContextTypeNone, true
	case ContextTypeWorld:
		return ContextTypeWorld, true
	case ContextTypePersona:
		return ContextTypePersona, true
	case ContextTypeProblem:
		return ContextTypeProblem, true
	default:
		return ContextTypeNone, false
	}
}

// Title returns the type with its first letter upper-cased, for display.
func (t ContextType) Title() string {
	if t == ContextTypeNone {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ResolvedContext is the host domain object a conversation is scoped to,
// resolved through a source adapter. The module never stores these; it only
// carries the resolved name and metadata into prompt construction and onto
// the conversation for display.
type ResolvedContext struct {
	Type     ContextType       `json:"type"`
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
