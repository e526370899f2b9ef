// Package assets downloads remote files referenced by records into a local directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
	normalize "github.com/hanpama/graphsource/internal/normalize"
)

// ErrSkipped is returned for URLs the download policy rejects.
var ErrSkipped = errors.New("assets: skipped by download policy")

// fileSpace namespaces the file names derived from asset URLs.
var fileSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("graphsource/assets"))

// Materializer stores each asset URL once under dir. File names are derived from
// the URL, so a file downloaded by an earlier process is reused. It is safe for
// concurrent use; concurrent requests for one URL share a single download.
type Materializer struct {
	dir   string
	opts  *Options
	memo  *lru.Cache[string, string]
	group singleflight.Group
}

var _ normalize.Materializer = (*Materializer)(nil)

// New creates a Materializer writing into dir, which is created if needed.
func New(dir string, opts ...Option) (*Materializer, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.MemoSize <= 0 {
		o.MemoSize = DefaultMemoSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	memo, err := lru.New[string, string](o.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return &Materializer{dir: dir, opts: o, memo: memo}, nil
}

// FileName returns the name under which url is stored.
func FileName(url string) string {
	name := uuid.NewSHA1(fileSpace, []byte(url)).String()
	if ext := normalize.ExtensionOf(url); ext != "" {
		name += "." + ext
	}
	return name
}

// Materialize returns the local path of url, downloading it first if needed.
// parentID names the record the asset belongs to and is used for logging only.
func (m *Materializer) Materialize(ctx context.Context, url, parentID string, headers map[string]string) (string, error) {
	if !m.opts.Policy.Allows(url) {
		return "", ErrSkipped
	}
	start := time.Now()
	if path, ok := m.memo.Get(url); ok {
		eventbus.Publish(ctx, events.AssetMaterialized{URL: url, Cached: true, Duration: time.Since(start)})
		return path, nil
	}

	type result struct {
		path   string
		bytes  int64
		cached bool
	}
	v, err, _ := m.group.Do(url, func() (any, error) {
		path := filepath.Join(m.dir, FileName(url))
		if _, err := os.Stat(path); err == nil {
			return result{path: path, cached: true}, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		n, err := m.download(ctx, url, path, headers)
		if err != nil {
			return nil, err
		}
		return result{path: path, bytes: n}, nil
	})
	ev := events.AssetMaterialized{URL: url, Err: err}
	defer func() {
		ev.Duration = time.Since(start)
		eventbus.Publish(ctx, ev)
	}()
	if err != nil {
		m.opts.Logger.Warn("asset download failed", "url", url, "parent", parentID, "error", err)
		return "", fmt.Errorf("assets: %s: %w", url, err)
	}
	res := v.(result)
	ev.Bytes, ev.Cached = res.bytes, res.cached
	m.memo.Add(url, res.path)
	return res.path, nil
}

func (m *Materializer) download(ctx context.Context, url, path string, headers map[string]string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
