// Package normalize rewrites fetched records into node form: relation wrappers become
// node id references and embedded assets are resolved.
package normalize

import (
	"context"
	"fmt"
	"strings"

	logging "github.com/hanpama/graphsource/internal/logging"
	querygen "github.com/hanpama/graphsource/internal/querygen"
)

// NodeTypePrefix is prepended to content type names to form node types.
const NodeTypePrefix = "Strapi"

// NodeType returns the node type of a content type, e.g. StrapiArticle.
func NodeType(contentType string) string { return NodeTypePrefix + contentType }

// NodeKey is the namespace string a node id is derived from. Records and the
// references pointing at them use the same key, so references resolve.
func NodeKey(contentType, documentID, locale string) string {
	return NodeType(contentType) + "-" + documentID + "-" + locale
}

// UploadLookup resolves an upload URL (as stored upstream, without the API origin) to
// the id of the node sourced for it.
type UploadLookup interface {
	Lookup(url string) (nodeID string, ok bool)
}

// Materializer downloads an asset and returns a local file reference. An empty
// reference with a nil error means nothing was materialized.
type Materializer interface {
	Materialize(ctx context.Context, url, parentID string, headers map[string]string) (string, error)
}

type Options struct {
	APIURL string
	// InlineImages maps a __typename to the markdown fields scanned for images.
	InlineImages map[string][]string
	Uploads      UploadLookup
	Materializer Materializer
	Download     DownloadPolicy
	Headers      map[string]string
	// NodeID derives a stable node id from a NodeKey.
	NodeID func(key string) string
	Logger *logging.Deduper
}

type Option func(*Options)

func WithAPIURL(u string) Option { return func(o *Options) { o.APIURL = strings.TrimRight(u, "/") } }

func WithInlineImages(typesToParse map[string][]string) Option {
	return func(o *Options) { o.InlineImages = typesToParse }
}

func WithUploads(l UploadLookup) Option { return func(o *Options) { o.Uploads = l } }

func WithMaterializer(m Materializer) Option { return func(o *Options) { o.Materializer = m } }

func WithDownloadPolicy(p DownloadPolicy) Option { return func(o *Options) { o.Download = p } }

func WithHeaders(h map[string]string) Option { return func(o *Options) { o.Headers = h } }

func WithNodeID(fn func(key string) string) Option { return func(o *Options) { o.NodeID = fn } }

func WithLogger(l *logging.Deduper) Option { return func(o *Options) { o.Logger = l } }

// Normalizer is safe for concurrent use when its UploadLookup and Materializer are.
type Normalizer struct {
	opts Options
}

func New(opts ...Option) *Normalizer {
	o := Options{NodeID: func(key string) string { return key }}
	for _, opt := range opts {
		opt(&o)
	}
	return &Normalizer{opts: o}
}

// Normalize returns a normalized copy of record. nodeID is the id of the node the
// record becomes; it is the parent of any asset materialized on its behalf.
func (n *Normalizer) Normalize(ctx context.Context, record map[string]any, nodeID string) map[string]any {
	return n.record(ctx, record, nodeID)
}

func (n *Normalizer) record(ctx context.Context, rec map[string]any, nodeID string) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = n.value(ctx, v, nodeID)
	}
	typename, _ := rec["__typename"].(string)
	if typename == querygen.UploadFileType {
		n.attachFile(ctx, rec, out, nodeID)
	}
	if fields := n.opts.InlineImages[typename]; len(fields) > 0 {
		n.attachImages(ctx, rec, out, fields, nodeID)
	}
	return out
}

func (n *Normalizer) value(ctx context.Context, v any, nodeID string) any {
	switch v := v.(type) {
	case map[string]any:
		typename, _ := v["__typename"].(string)
		if typename == "" {
			return deepCopy(v)
		}
		if entity, ok := querygen.RelationEntityType(typename); ok {
			return n.reference(entity, v)
		}
		return n.record(ctx, v, nodeID)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if m, ok := item.(map[string]any); ok {
				if typename, _ := m["__typename"].(string); typename != "" {
					out[i] = n.value(ctx, m, nodeID)
				} else {
					out[i] = n.record(ctx, m, nodeID)
				}
				continue
			}
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

// reference turns a relation wrapper into {nodeId} or {nodeIds}. It returns nil when
// the wrapper holds no related record.
func (n *Normalizer) reference(entity string, wrapper map[string]any) any {
	inner, ok := wrapper["nodes"]
	if !ok {
		inner = wrapper["data"]
	}
	switch inner := inner.(type) {
	case []any:
		ids := make([]any, 0, len(inner))
		for _, item := range inner {
			if m, ok := item.(map[string]any); ok {
				if id := itemID(m); id != "" {
					ids = append(ids, n.nodeID(entity, m, id))
				}
			}
		}
		if len(ids) == 0 {
			return nil
		}
		return map[string]any{"nodeIds": ids}
	case map[string]any:
		id := itemID(inner)
		if id == "" {
			return nil
		}
		return map[string]any{"nodeId": n.nodeID(entity, inner, id)}
	}
	return nil
}

func (n *Normalizer) nodeID(entity string, item map[string]any, id string) string {
	locale, _ := item["locale"].(string)
	return n.opts.NodeID(NodeKey(entity, id, locale))
}

// itemID returns documentId, falling back to id.
func itemID(item map[string]any) string {
	for _, key := range []string{"documentId", "id"} {
		switch v := item[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func (n *Normalizer) attachFile(ctx context.Context, rec, out map[string]any, nodeID string) {
	u, _ := rec["url"].(string)
	if u == "" || !n.opts.Download.Allows(u) {
		return
	}
	if strings.HasPrefix(u, "/") {
		u = n.opts.APIURL + u
	}
	if file := n.materialize(ctx, u, nodeID); file != "" {
		out["file"] = file
	}
}

func (n *Normalizer) attachImages(ctx context.Context, rec, out map[string]any, fields []string, nodeID string) {
	for _, field := range fields {
		src, _ := rec[field].(string)
		uris := ExtractImages(src, n.opts.APIURL)
		if len(uris) == 0 {
			continue
		}
		images := make([]any, len(uris))
		for i, uri := range uris {
			key := uploadKey(uri, n.opts.APIURL)
			entry := map[string]any{"uri": uri, "url": key}
			if id, ok := n.lookup(key); ok {
				entry["nodeId"] = id
			} else if n.opts.Download.Allows(uri) {
				if file := n.materialize(ctx, uri, nodeID); file != "" {
					entry["file"] = file
				}
			}
			images[i] = entry
		}
		out[field+"_images"] = images
	}
}

func (n *Normalizer) lookup(url string) (string, bool) {
	if n.opts.Uploads == nil {
		return "", false
	}
	return n.opts.Uploads.Lookup(url)
}

func (n *Normalizer) materialize(ctx context.Context, url, parentID string) string {
	if n.opts.Materializer == nil {
		return ""
	}
	file, err := n.opts.Materializer.Materialize(ctx, url, parentID, n.opts.Headers)
	if err != nil {
		n.opts.Logger.Logger().Warn("asset not materialized", "url", url, "parent", parentID, "error", err)
		return ""
	}
	return file
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
