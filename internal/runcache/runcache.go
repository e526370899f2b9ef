// Package runcache stores small values that must survive between sourcing runs,
// such as the instant of the last successful run.
package runcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is a key/value store for run-scoped state. Values are msgpack encoded.
type Cache interface {
	// Get decodes the value stored under key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Memory keeps encoded values in a map.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemory() *Memory { return &Memory{values: make(map[string][]byte)} }

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, decode(key, raw, dst)
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[key] = raw
	m.mu.Unlock()
	return nil
}

// Nop never stores anything. It backs runs with incremental mode disabled.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error         { return nil }

func encode(key string, v any) ([]byte, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("runcache: encode %q: %w", key, err)
	}
	return raw, nil
}

func decode(key string, raw []byte, dst any) error {
	if err := msgpack.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("runcache: decode %q: %w", key, err)
	}
	return nil
}
