package sourcing

import (
	"sync"

	normalize "github.com/hanpama/graphsource/internal/normalize"
)

var _ normalize.UploadLookup = (*UploadMap)(nil)

// UploadMap maps upload URLs, as stored upstream, to the ids of their nodes. It is
// filled while uploads are sourced and read by the normalizer afterwards.
type UploadMap struct {
	mu    sync.RWMutex
	byURL map[string]string
}

func NewUploadMap() *UploadMap { return &UploadMap{byURL: make(map[string]string)} }

func (u *UploadMap) Put(url, nodeID string) {
	u.mu.Lock()
	u.byURL[url] = nodeID
	u.mu.Unlock()
}

// Lookup implements normalize.UploadLookup.
func (u *UploadMap) Lookup(url string) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	id, ok := u.byURL[url]
	return id, ok
}

func (u *UploadMap) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.byURL)
}
