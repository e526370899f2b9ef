// Package reqid carries run and request identifiers in a context so that events
// emitted from concurrent operations can be correlated.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

type (
	requestKey struct{}
	runKey     struct{}
)

// NewContext returns a copy of parent with a new request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, requestKey{}, id), id
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestKey{}).(string)
	return id, ok
}

// NewRunContext returns a copy of parent carrying a new sourcing run ID.
func NewRunContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, runKey{}, id), id
}

// RunFromContext extracts the run ID from ctx.
func RunFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runKey{}).(string)
	return id, ok
}
