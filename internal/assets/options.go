package assets

import (
	"log/slog"
	"net/http"

	normalize "github.com/hanpama/graphsource/internal/normalize"
)

// DefaultMemoSize bounds the in-memory URL memo.
const DefaultMemoSize = 4096

// Options configures a Materializer.
//
// Defaults:
// - HTTPClient: http.DefaultClient
// - Policy:     every URL
// - MemoSize:   DefaultMemoSize
type Options struct {
	HTTPClient *http.Client
	Policy     normalize.DownloadPolicy
	MemoSize   int
	Logger     *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{HTTPClient: http.DefaultClient, MemoSize: DefaultMemoSize, Logger: slog.Default()}
}

func WithHTTPClient(c *http.Client) Option         { return func(o *Options) { o.HTTPClient = c } }
func WithPolicy(p normalize.DownloadPolicy) Option { return func(o *Options) { o.Policy = p } }
func WithMemoSize(n int) Option                    { return func(o *Options) { o.MemoSize = n } }
func WithLogger(l *slog.Logger) Option             { return func(o *Options) { o.Logger = l } }
