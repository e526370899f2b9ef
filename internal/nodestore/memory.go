package nodestore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	touched map[string]int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{nodes: make(map[string]*Node), touched: make(map[string]int)}
}

func (m *Memory) Upsert(_ context.Context, n *Node) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.nodes[n.ID]
	m.nodes[n.ID] = clone(n)
	switch {
	case !ok:
		return Created, nil
	case prev.Digest != n.Digest:
		return Updated, nil
	}
	return Unchanged, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return ErrNotFound
	}
	delete(m.nodes, id)
	delete(m.touched, id)
	return nil
}

func (m *Memory) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return ErrNotFound
	}
	m.touched[id]++
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(n), nil
}

func (m *Memory) ListOwnedIDs(_ context.Context, owner string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, n := range m.nodes {
		if n.Owner == owner {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) GenerateID(namespace string) string { return GenerateID(namespace) }

// Touches reports how many times id was touched.
func (m *Memory) Touches(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.touched[id]
}

// Len reports the number of stored nodes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

func clone(n *Node) *Node {
	c := *n
	c.Fields = maps.Clone(n.Fields)
	return &c
}
