package sourcing

import (
	"context"
	"fmt"
	"os"

	nodestore "github.com/hanpama/graphsource/internal/nodestore"
)

// PreviewEnv enables live-preview manifests when set to "true".
const PreviewEnv = "GRAPHSOURCE_IS_PREVIEW"

// Manifest tells a preview host that a record reached a given revision.
type Manifest struct {
	// ID is "<uid>-<documentId>-<updatedAt>".
	ID        string
	UID       string
	Node      *nodestore.Node
	UpdatedAt string
}

func (s *Source) livePreview() bool {
	return s.opts.LivePreview || os.Getenv(PreviewEnv) == "true"
}

// manifest reports n to the manifest hook. Records without an uid or an updatedAt
// value are skipped.
func (s *Source) manifest(ctx context.Context, uid, documentID string, n *nodestore.Node) {
	if !s.livePreview() {
		return
	}
	if s.opts.Manifests == nil {
		s.opts.Logger.WarnOnce("manifest-unsupported",
			"live preview is enabled but no manifest hook is configured; content sync is unavailable")
		return
	}
	updatedAt, _ := n.Fields["updatedAt"].(string)
	if uid == "" || documentID == "" || updatedAt == "" {
		return
	}
	m := Manifest{
		ID:        fmt.Sprintf("%s-%s-%s", uid, documentID, updatedAt),
		UID:       uid,
		Node:      n,
		UpdatedAt: updatedAt,
	}
	if err := s.opts.Manifests.CreateManifest(ctx, m); err != nil {
		s.opts.Logger.Logger().Warn("manifest not created", "manifest", m.ID, "error", err)
	}
}
