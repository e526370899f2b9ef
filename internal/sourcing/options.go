package sourcing

import (
	"maps"
	"time"

	logging "github.com/hanpama/graphsource/internal/logging"
	normalize "github.com/hanpama/graphsource/internal/normalize"
	querygen "github.com/hanpama/graphsource/internal/querygen"
	runcache "github.com/hanpama/graphsource/internal/runcache"
)

// DefaultOwner tags the records a Source owns.
const DefaultOwner = "graphsource"

// Options configures a Source.
//
// Defaults:
// - Owner:           "graphsource"
// - Cache:           runcache.Nop (incremental mode off)
// - ItemConcurrency: 8
// - Concurrency:     0 (every operation of a phase at once)
type Options struct {
	Owner   string
	Targets querygen.Targets
	// Locales as configured; nil or a list containing "all" means every locale.
	Locales []string
	// Preview sources drafts by binding publicationState to PREVIEW.
	Preview bool
	// LivePreview emits manifests. The PreviewEnv variable enables it too.
	LivePreview bool

	APIURL       string
	Headers      map[string]string
	InlineImages map[string][]string
	Download     normalize.DownloadPolicy
	Materializer normalize.Materializer
	Manifests    ManifestHook

	// Cache persists the last-run instant. With runcache.Nop every run is a full run.
	Cache runcache.Cache

	Concurrency     int
	ItemConcurrency int
	QueryOptions    []querygen.Option

	Logger *logging.Deduper
	Now    func() time.Time
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Owner:           DefaultOwner,
		Cache:           runcache.Nop{},
		ItemConcurrency: 8,
		Now:             time.Now,
	}
}

func WithOwner(owner string) Option                        { return func(o *Options) { o.Owner = owner } }
func WithTargets(t querygen.Targets) Option                { return func(o *Options) { o.Targets = t } }
func WithLocales(locales ...string) Option                 { return func(o *Options) { o.Locales = locales } }
func WithPreview(on bool) Option                           { return func(o *Options) { o.Preview = on } }
func WithLivePreview(on bool) Option                       { return func(o *Options) { o.LivePreview = on } }
func WithAPIURL(u string) Option                           { return func(o *Options) { o.APIURL = u } }
func WithDownloadPolicy(p normalize.DownloadPolicy) Option { return func(o *Options) { o.Download = p } }
func WithMaterializer(m normalize.Materializer) Option     { return func(o *Options) { o.Materializer = m } }
func WithManifestHook(h ManifestHook) Option               { return func(o *Options) { o.Manifests = h } }
func WithCache(c runcache.Cache) Option                    { return func(o *Options) { o.Cache = c } }
func WithConcurrency(n int) Option                         { return func(o *Options) { o.Concurrency = n } }
func WithItemConcurrency(n int) Option                     { return func(o *Options) { o.ItemConcurrency = n } }
func WithQueryOptions(opts ...querygen.Option) Option      { return func(o *Options) { o.QueryOptions = opts } }
func WithLogger(l *logging.Deduper) Option                 { return func(o *Options) { o.Logger = l } }
func WithClock(now func() time.Time) Option                { return func(o *Options) { o.Now = now } }

func WithHeaders(h map[string]string) Option {
	return func(o *Options) { o.Headers = maps.Clone(h) }
}

func WithInlineImages(typesToParse map[string][]string) Option {
	return func(o *Options) { o.InlineImages = typesToParse }
}
