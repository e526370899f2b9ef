package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
	reqid "github.com/hanpama/graphsource/internal/reqid"
	sourcing "github.com/hanpama/graphsource/internal/sourcing"
)

// Runner is the sourcing side of the server.
type Runner interface {
	Run(ctx context.Context) (*sourcing.Result, error)
	LastResult() *sourcing.Result
}

// Handler serves the control endpoints of a running source:
//
//	POST /__refresh  runs a sync; 409 while another one is in progress
//	GET  /reports    the error reports of the last run, filterable by type, locale and phase
//	GET  /metrics    the metrics handler, when one is configured
type Handler struct {
	runner  Runner
	opt     Options
	mux     *http.ServeMux
	running atomic.Bool
}

type Options struct {
	// Timeout bounds a refresh run. 0 means no limit.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits how much of a webhook body is read. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Commit is called after a refresh run finished without a fatal error.
	Commit func(context.Context) error
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMetrics(h http.Handler) Option  { return func(o *Options) { o.Metrics = h } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithCommit(fn func(context.Context) error) Option {
	return func(o *Options) { o.Commit = fn }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates the control handler for runner.
func New(runner Runner, opts ...Option) *Handler {
	op := Options{MaxBodyBytes: 1 << 20}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{runner: runner, opt: op, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /__refresh", h.refresh)
	h.mux.HandleFunc("GET /reports", h.reports)
	if op.Metrics != nil {
		h.mux.Handle("GET /metrics", op.Metrics)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, _ := reqid.NewContext(r.Context())
	r = r.WithContext(ctx)
	_, route := h.mux.Handler(r)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Route: route, Status: rec.status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(rec, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		rec.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(rec, r)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	// The webhook payload is not needed; drain it so the connection can be reused.
	body := io.Reader(r.Body)
	if h.opt.MaxBodyBytes > 0 {
		body = io.LimitReader(r.Body, h.opt.MaxBodyBytes)
	}
	_, _ = io.Copy(io.Discard, body)

	if !h.running.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "a sync is already in progress"}, h.opt.Pretty)
		return
	}
	defer h.running.Store(false)

	// A disconnecting caller must not abort the run halfway.
	ctx := context.WithoutCancel(r.Context())
	if h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	res, err := h.runner.Run(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()}, h.opt.Pretty)
		return
	}
	if h.opt.Commit != nil {
		if err := h.opt.Commit(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()}, h.opt.Pretty)
			return
		}
	}
	writeJSON(w, http.StatusOK, summarize(res), h.opt.Pretty)
}

func (h *Handler) reports(w http.ResponseWriter, r *http.Request) {
	res := h.runner.LastResult()
	out := reportList{Reports: []sourcing.Report{}}
	if res == nil {
		writeJSON(w, http.StatusOK, out, h.opt.Pretty)
		return
	}
	out.Run = summarize(res)
	q := r.URL.Query()
	for _, rep := range res.Reports {
		if !matches(q.Get("type"), rep.Type) || !matches(q.Get("locale"), rep.Locale) || !matches(q.Get("phase"), rep.Phase) {
			continue
		}
		out.Reports = append(out.Reports, rep)
	}
	writeJSON(w, http.StatusOK, out, h.opt.Pretty)
}

func matches(filter, v string) bool { return filter == "" || filter == v }

type errorBody struct {
	Error string `json:"error"`
}

type runSummary struct {
	RunID       string    `json:"runId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Incremental bool      `json:"incremental"`
	Operations  int       `json:"operations"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Touched     int       `json:"touched"`
	Deleted     int       `json:"deleted"`
	Reports     int       `json:"reports"`
}

type reportList struct {
	Run     *runSummary       `json:"run"`
	Reports []sourcing.Report `json:"reports"`
}

func summarize(res *sourcing.Result) *runSummary {
	return &runSummary{
		RunID:       res.RunID,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Incremental: res.Incremental,
		Operations:  res.Operations,
		Created:     res.Created,
		Updated:     res.Updated,
		Unchanged:   res.Unchanged,
		Touched:     res.Touched,
		Deleted:     res.Deleted,
		Reports:     len(res.Reports),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if !slices.Contains(opts.AllowedOrigins, "*") && !slices.Contains(opts.AllowedOrigins, origin) {
		return
	}
	if slices.Contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
