package sourcing

import (
	"context"

	schema "github.com/hanpama/graphsource/internal/schema"
)

// SchemaSource describes the remote API. *upstream.Client implements it.
type SchemaSource interface {
	Introspect(ctx context.Context) (*schema.Schema, error)
	// Locales lists available locale codes. Implementations return an empty list
	// rather than an error when discovery is not possible.
	Locales(ctx context.Context) ([]string, error)
	// ContentTypes maps schema type names to upstream content-type uids.
	ContentTypes(ctx context.Context) (map[string]string, error)
}

// Transport executes one GraphQL request. *gqlclient.Client implements it.
type Transport interface {
	Execute(ctx context.Context, query string, vars map[string]any) (map[string]any, error)
}

// ManifestHook receives a manifest for every record upserted in live-preview mode.
type ManifestHook interface {
	CreateManifest(ctx context.Context, m Manifest) error
}
