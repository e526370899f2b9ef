package gqlclient

import (
	"strings"
	"sync"
)

// Registry hands out one Client per API URL. A sourcing run owns its registry and
// closes it when done, so no client outlives the run that created it.
type Registry struct {
	opts []Option

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// NewRegistry creates a registry whose clients are built with opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts, clients: make(map[string]*Client)}
}

// Client returns the client for apiURL, creating it on first use. Extra opts are
// applied after the registry's own, and only when the client is created.
func (r *Registry) Client(apiURL string, opts ...Option) (*Client, error) {
	key := strings.TrimRight(apiURL, "/")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c := New(key, append(append([]Option(nil), r.opts...), opts...)...)
	r.clients[key] = c
	return c, nil
}

// Close closes every client handed out.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = nil
	return nil
}
