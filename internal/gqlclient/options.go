package gqlclient

import (
	"maps"
	"net/http"
	"time"
)

// Options configures a Client.
//
// Defaults:
// - Timeout:    60s (used only if the context has no deadline)
// - HTTPClient: http.DefaultClient
//
// Token, when set, is sent as a bearer authorization header and takes precedence
// over an Authorization entry in Headers.
type Options struct {
	Headers    map[string]string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{Timeout: 60 * time.Second, HTTPClient: http.DefaultClient}
}

func WithHeaders(h map[string]string) Option {
	return func(o *Options) { o.Headers = maps.Clone(h) }
}
func WithToken(token string) Option        { return func(o *Options) { o.Token = token } }
func WithHTTPClient(c *http.Client) Option { return func(o *Options) { o.HTTPClient = c } }
func WithTimeout(d time.Duration) Option   { return func(o *Options) { o.Timeout = d } }
