// Package nodestore persists normalized records as nodes owned by a source.
package nodestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotFound is returned by Get when no node has the requested id.
var ErrNotFound = errors.New("nodestore: node not found")

// Node is a stored record. Fields holds the normalized record, including the
// id, strapiId, parent and internal keys added by the orchestrator.
type Node struct {
	ID     string
	Type   string
	Owner  string
	Digest string
	Fields map[string]any
}

// Change reports what an upsert did.
type Change int

const (
	Unchanged Change = iota
	Created
	Updated
)

func (c Change) String() string {
	switch c {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

// Store is the record store contract used by the orchestrator.
type Store interface {
	Upsert(ctx context.Context, n *Node) (Change, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Node, error)
	ListOwnedIDs(ctx context.Context, owner string) ([]string, error)
	GenerateID(namespace string) string
}

// idSpace scopes generated ids so they never collide with other UUIDv5 users.
var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hanpama/graphsource/node"))

// GenerateID derives a stable UUIDv5 from namespace.
func GenerateID(namespace string) string {
	return uuid.NewSHA1(idSpace, []byte(namespace)).String()
}

// Digest hashes fields into a hex string that is stable across map iteration order.
// Values the protobuf struct model cannot hold fall back to their JSON encoding,
// which also sorts map keys.
func Digest(fields map[string]any) (string, error) {
	var raw []byte
	st, err := structpb.NewStruct(fields)
	if err == nil {
		raw, err = proto.MarshalOptions{Deterministic: true}.Marshal(st)
	}
	if err != nil {
		if raw, err = json.Marshal(fields); err != nil {
			return "", fmt.Errorf("digest: %w", err)
		}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
