package sourcing

import (
	"slices"
	"sync"
)

// RetentionSet holds the ids of owned records not yet confirmed upstream during a
// run. Operations remove ids concurrently; Drain is called once, after every
// operation has returned, and whatever remains is stale.
type RetentionSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewRetentionSet(ids []string) *RetentionSet {
	r := &RetentionSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

// Retain confirms id and reports whether it was still pending.
func (r *RetentionSet) Retain(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	delete(r.ids, id)
	return ok
}

func (r *RetentionSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Drain empties the set and returns its ids in sorted order.
func (r *RetentionSet) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	r.ids = map[string]struct{}{}
	slices.Sort(ids)
	return ids
}
