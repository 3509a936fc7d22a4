// Package source resolves conversation contexts against the host
// application's domain objects.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/dialogkit/dialogkit/internal/model"
)

// ErrNotFound is returned when a context id does not resolve for the
// requested type.
var ErrNotFound = errors.New("context not found")

// Resolver resolves a context handle into a named host domain object. The
// module treats the result as opaque: it is carried into prompt construction
// and denormalized onto the conversation for display, never stored as the
// source of truth.
type Resolver interface {
	Resolve(ctx context.Context, contextType model.ContextType, contextID string) (*model.ResolvedContext, error)
}

// Registry dispatches resolution by context type. Resolvers are registered
// once at startup; there is no runtime type inspection beyond the declared
// type key.
type Registry struct {
	resolvers map[model.ContextType]Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[model.ContextType]Resolver)}
}

// Register binds a resolver to a context type. The last registration for a
// type wins.
func (r *Registry) Register(contextType model.ContextType, resolver Resolver) {
	r.resolvers[contextType] = resolver
}

// Resolve dispatches to the resolver registered for the context type.
func (r *Registry) Resolve(ctx context.Context, contextType model.ContextType, contextID string) (*model.ResolvedContext, error) {
	if contextType == model.ContextTypeNone {
		return nil, fmt.Errorf("resolving context: type is required")
	}
	resolver, ok := r.resolvers[contextType]
	if !ok {
		return nil, fmt.Errorf("no resolver registered for context type %q: %w", contextType, ErrNotFound)
	}
	return resolver.Resolve(ctx, contextType, contextID)
}
