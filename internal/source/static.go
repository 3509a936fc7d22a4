package source

import (
	"context"

	"github.com/dialogkit/dialogkit/internal/model"
)

// StaticResolver resolves contexts from a fixed in-process table. Hosts
// without their own resolver seed one of these at startup; tests use it as a
// stand-in for host storage.
type StaticResolver struct {
	entries map[string]model.ResolvedContext
}

// NewStaticResolver creates a resolver over the given contexts, keyed by
// (type, id).
func NewStaticResolver(contexts []model.ResolvedContext) *StaticResolver {
	entries := make(map[string]model.ResolvedContext, len(contexts))
	for _, c := range contexts {
		entries[staticKey(c.Type, c.ID)] = c
	}
	return &StaticResolver{entries: entries}
}

// Resolve looks up the context or returns ErrNotFound.
func (r *StaticResolver) Resolve(_ context.Context, contextType model.ContextType, contextID string) (*model.ResolvedContext, error) {
	c, ok := r.entries[staticKey(contextType, contextID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func staticKey(t model.ContextType, id string) string {
	return string(t) + "/" + id
}
