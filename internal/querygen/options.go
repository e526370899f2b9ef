package querygen

import (
	logging "github.com/hanpama/graphsource/internal/logging"
)

const (
	// MaxDepth caps the nesting of field selection sets in a synthesized document.
	MaxDepth = 16
	// DefaultPageLimit is the page size injected into paginated fields and root windows.
	DefaultPageLimit = 1000

	// The root content selection starts below the operation, root field and
	// wrapper levels, so the whole document stays within MaxDepth.
	rootDepth = 4
)

type Options struct {
	MaxDepth      int
	PageLimit     int
	ExcludedTypes []string
	Logger        *logging.Deduper
}

type Option func(*Options)

func WithMaxDepth(n int) Option {
	return func(o *Options) { o.MaxDepth = n }
}

func WithPageLimit(n int) Option {
	return func(o *Options) { o.PageLimit = n }
}

// WithExcludedTypes replaces the list of field types that are never selected.
func WithExcludedTypes(names ...string) Option {
	return func(o *Options) { o.ExcludedTypes = names }
}

func WithLogger(l *logging.Deduper) Option {
	return func(o *Options) { o.Logger = l }
}

func defaultOptions() *Options {
	return &Options{
		MaxDepth:      MaxDepth,
		PageLimit:     DefaultPageLimit,
		ExcludedTypes: DefaultExcludedTypes,
	}
}

func newOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = MaxDepth
	}
	if o.PageLimit <= 0 {
		o.PageLimit = DefaultPageLimit
	}
	return o
}
