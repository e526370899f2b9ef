// Package sourcing drives a sourcing run: it synthesizes operations for the remote
// schema, fetches and normalizes every record, upserts it into the record store and
// deletes the owned records that were not confirmed upstream.
package sourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
	nodestore "github.com/hanpama/graphsource/internal/nodestore"
	normalize "github.com/hanpama/graphsource/internal/normalize"
	querygen "github.com/hanpama/graphsource/internal/querygen"
	reqid "github.com/hanpama/graphsource/internal/reqid"
	schema "github.com/hanpama/graphsource/internal/schema"
)

// TimestampKey is the cache key of the last-run instant, in unix milliseconds.
const TimestampKey = "timestamp"

// timeLayout formats the incremental filter the way the API prints DateTime values.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Result summarizes a finished run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Incremental bool
	Operations  int
	Created     int
	Updated     int
	Unchanged   int
	Touched     int
	Deleted     int
	Errors      []*OperationError
	Reports     []Report
}

// Source reconciles the records of one owner against the remote API. Runs are
// serialized; concurrency happens inside a run.
type Source struct {
	schema    SchemaSource
	transport Transport
	store     nodestore.Store
	opts      *Options

	runMu sync.Mutex

	mu      sync.Mutex
	pending time.Time // start of the last run without any failed operation
	last    *Result
}

// New creates a Source.
func New(src SchemaSource, transport Transport, store nodestore.Store, opts ...Option) *Source {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Cache == nil {
		o.Cache = defaultOptions().Cache
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Source{schema: src, transport: transport, store: store, opts: o}
}

// Operations introspects the API and synthesizes the operations a run would execute.
func (s *Source) Operations(ctx context.Context) ([]*querygen.Operation, error) {
	_, ops, err := s.plan(ctx)
	return ops, err
}

// Schema introspects the API.
func (s *Source) Schema(ctx context.Context) (*schema.Schema, error) {
	return s.schema.Introspect(ctx)
}

func (s *Source) plan(ctx context.Context) (*schema.Schema, []*querygen.Operation, error) {
	sch, err := s.schema.Introspect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("sourcing: %w", err)
	}
	available, err := s.schema.Locales(ctx)
	if err != nil {
		s.opts.Logger.Logger().Warn("locale discovery failed", "error", err)
		available = nil
	}
	locales := ResolveLocales(s.opts.Locales, available)
	qopts := append([]querygen.Option{querygen.WithLogger(s.opts.Logger)}, s.opts.QueryOptions...)
	ops, err := querygen.Synthesize(sch, s.opts.Targets, locales, qopts...)
	if err != nil {
		return sch, nil, fmt.Errorf("sourcing: %w", err)
	}
	return sch, ops, nil
}

// LastResult returns the result of the most recent run, or nil.
func (s *Source) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Commit stores the start instant of the last completed run as the incremental
// baseline. Callers commit once the records of that run have been consumed. It is a
// no-op when the last run had a failed operation.
func (s *Source) Commit(ctx context.Context) error {
	s.mu.Lock()
	at := s.pending
	s.mu.Unlock()
	if at.IsZero() {
		return nil
	}
	if err := s.opts.Cache.Set(ctx, TimestampKey, at.UnixMilli()); err != nil {
		return fmt.Errorf("sourcing: commit: %w", err)
	}
	return nil
}

// run is the state of one Run call.
type run struct {
	id         string
	lastRun    *time.Time
	retention  *RetentionSet
	uploads    *UploadMap
	normalizer *normalize.Normalizer
	uids       map[string]string

	claimed sync.Map // node id -> struct{}, first upsert wins

	created, updated, unchanged, touched, deleted atomic.Int64

	mu      sync.Mutex
	errs    []*OperationError
	reports []Report
}

// Run executes one sourcing run. Failures of single operations are contained and
// reported in the result; only failures that make deletion unsafe are returned.
func (s *Source) Run(ctx context.Context) (res *Result, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, runID := reqid.NewRunContext(ctx)
	started := s.opts.Now()
	log := s.opts.Logger.Logger().With("run", runID)
	r := &run{id: runID, uploads: NewUploadMap()}

	// INIT
	var ms int64
	if ok, cerr := s.opts.Cache.Get(ctx, TimestampKey, &ms); cerr != nil {
		log.Warn("last-run timestamp unreadable, running a full fetch", "error", cerr)
	} else if ok && ms > 0 {
		t := time.UnixMilli(ms).UTC()
		r.lastRun = &t
	}
	eventbus.Publish(ctx, events.RunStart{RunID: runID, Owner: s.opts.Owner, Incremental: r.lastRun != nil})
	var ops []*querygen.Operation
	defer func() {
		fin := events.RunFinish{RunID: runID, Operations: len(ops), Err: err, Duration: s.opts.Now().Sub(started)}
		if res != nil {
			fin.Upserted = res.Created + res.Updated
			fin.Unchanged = res.Unchanged
			fin.Touched = res.Touched
			fin.Deleted = res.Deleted
			fin.Reports = len(res.Reports)
		}
		eventbus.Publish(ctx, fin)
	}()

	owned, err := s.store.ListOwnedIDs(ctx, s.opts.Owner)
	if err != nil {
		return nil, fmt.Errorf("sourcing: list owned records: %w", err)
	}
	r.retention = NewRetentionSet(owned)

	_, ops, err = s.plan(ctx)
	if err != nil {
		return nil, err
	}
	if s.livePreview() {
		uids, cerr := s.schema.ContentTypes(ctx)
		if cerr != nil {
			log.Warn("content types unavailable, manifests disabled", "error", cerr)
		}
		r.uids = uids
	}
	r.normalizer = normalize.New(
		normalize.WithAPIURL(s.opts.APIURL),
		normalize.WithInlineImages(s.opts.InlineImages),
		normalize.WithUploads(r.uploads),
		normalize.WithMaterializer(s.opts.Materializer),
		normalize.WithDownloadPolicy(s.opts.Download),
		normalize.WithHeaders(s.opts.Headers),
		normalize.WithNodeID(s.store.GenerateID),
		normalize.WithLogger(s.opts.Logger),
	)
	log.Info("sourcing run started", "operations", len(ops), "incremental", r.lastRun != nil, "owned", len(owned))

	// FETCH_UPLOADS, then FETCH_REST. Other types resolve inline images against the
	// upload map, so uploads must be complete first.
	var uploads, rest []*querygen.Operation
	for _, op := range ops {
		if op.TypeName() == querygen.UploadFileType {
			uploads = append(uploads, op)
		} else {
			rest = append(rest, op)
		}
	}
	for _, phase := range [][]*querygen.Operation{uploads, rest} {
		if err := s.fanOut(ctx, r, phase); err != nil {
			return nil, fmt.Errorf("sourcing: %w", err)
		}
	}

	// DELETE_STALE. Every operation has returned, so the remainder is final.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sourcing: run aborted before deletion: %w", err)
	}
	for _, id := range r.retention.Drain() {
		s.deleteStale(ctx, r, id)
	}

	res = &Result{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  s.opts.Now(),
		Incremental: r.lastRun != nil,
		Operations:  len(ops),
		Created:     int(r.created.Load()),
		Updated:     int(r.updated.Load()),
		Unchanged:   int(r.unchanged.Load()),
		Touched:     int(r.touched.Load()),
		Deleted:     int(r.deleted.Load()),
		Errors:      r.errs,
		Reports:     r.reports,
	}
	// Records of a failed operation were deleted above. They predate any baseline,
	// so the next run must fetch everything to restore them.
	if len(r.errs) > 0 && r.lastRun != nil {
		if cerr := s.opts.Cache.Set(ctx, TimestampKey, int64(0)); cerr != nil {
			log.Warn("last-run timestamp not cleared", "error", cerr)
		}
	}
	s.mu.Lock()
	if len(r.errs) == 0 {
		s.pending = started
	} else {
		s.pending = time.Time{}
	}
	s.last = res
	s.mu.Unlock()
	log.Info("sourcing run finished",
		"created", res.Created, "updated", res.Updated, "unchanged", res.Unchanged,
		"touched", res.Touched, "deleted", res.Deleted, "reports", len(res.Reports))
	return res, nil
}

// fanOut runs every operation of a phase concurrently and waits for all of them.
// Operation failures are recorded on r; only cancellation is returned.
func (s *Source) fanOut(ctx context.Context, r *run, ops []*querygen.Operation) error {
	var g errgroup.Group
	if s.opts.Concurrency > 0 {
		g.SetLimit(s.opts.Concurrency)
	}
	for _, op := range ops {
		g.Go(func() error {
			s.execute(ctx, r, op)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// execute runs the full phase of op and, in incremental runs, its sync phase. The
// sync phase starts only after every upsert of the full phase has returned.
func (s *Source) execute(ctx context.Context, r *run, op *querygen.Operation) {
	overrides := map[string]any{}
	if s.opts.Preview {
		overrides[querygen.VarPublicationState] = querygen.PublicationPreview
	}
	if r.lastRun != nil {
		overrides[querygen.VarUpdatedAt] = r.lastRun.Format(timeLayout)
	}
	vars := op.BindVariables(overrides)

	err := s.phase(ctx, r, op, PhaseFull, op.Query, vars, func(ctx context.Context, item map[string]any) {
		s.upsert(ctx, r, op, item)
	})
	if err != nil || r.lastRun == nil {
		return
	}
	_ = s.phase(ctx, r, op, PhaseSync, op.SyncQuery, op.SyncVariables(vars), func(ctx context.Context, item map[string]any) {
		s.confirm(ctx, r, op, item)
	})
}

// phase fetches every page of query and hands each item to handle. Items of a page
// are handled concurrently; pages are fetched one after another.
func (s *Source) phase(ctx context.Context, r *run, op *querygen.Operation, phase, query string, vars map[string]any, handle func(context.Context, map[string]any)) (err error) {
	ctx, _ = reqid.NewContext(ctx)
	start := time.Now()
	items := 0
	eventbus.Publish(ctx, events.OperationStart{Operation: op.Name, Type: op.TypeName(), Locale: op.Locale, Phase: phase})
	defer func() {
		eventbus.Publish(ctx, events.OperationFinish{
			Operation: op.Name,
			Type:      op.TypeName(),
			Locale:    op.Locale,
			Phase:     phase,
			Items:     items,
			Err:       err,
			Duration:  time.Since(start),
		})
	}()

	pageVars := vars
	for {
		data, xerr := s.transport.Execute(ctx, query, pageVars)
		if xerr != nil {
			oe := &OperationError{Operation: op.Name, Phase: phase, Query: query, Variables: pageVars, Err: xerr}
			s.fail(r, op, oe)
			return oe
		}
		page := op.Page(data)
		items += len(page.Items)

		var g errgroup.Group
		if s.opts.ItemConcurrency > 0 {
			g.SetLimit(s.opts.ItemConcurrency)
		}
		for _, item := range page.Items {
			g.Go(func() error {
				handle(ctx, item)
				return nil
			})
		}
		_ = g.Wait()

		next, ok := nextPage(op, pageVars, page)
		if !ok {
			return nil
		}
		pageVars = next
	}
}

// nextPage returns the variables of the page after page, if there is one.
func nextPage(op *querygen.Operation, vars map[string]any, page querygen.Page) (map[string]any, bool) {
	if !op.Paginated() || !page.HasTotal || len(page.Items) == 0 {
		return nil, false
	}
	window, _ := vars[querygen.VarPagination].(map[string]any)
	start, _ := asInt(window["start"])
	limit, ok := asInt(window["limit"])
	if !ok || limit <= 0 || start+limit >= page.Total {
		return nil, false
	}
	next := maps.Clone(vars)
	w := maps.Clone(window)
	w["start"] = start + limit
	next[querygen.VarPagination] = w
	return next, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// nodeID derives the id of an upstream item, or "" if it carries no identifier.
func (s *Source) nodeID(op *querygen.Operation, item map[string]any) (id, documentID string) {
	documentID = identifier(item, op.IDField)
	if documentID == "" {
		return "", ""
	}
	locale, _ := item["locale"].(string)
	return s.store.GenerateID(normalize.NodeKey(op.TypeName(), documentID, locale)), documentID
}

func identifier(item map[string]any, field string) string {
	for _, key := range []string{field, "documentId", "id"} {
		switch v := item[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func (s *Source) upsert(ctx context.Context, r *run, op *querygen.Operation, item map[string]any) {
	id, documentID := s.nodeID(op, item)
	if id == "" {
		s.opts.Logger.WarnOnce("no-identifier:"+op.TypeName(), "item without identifier skipped", "type", op.TypeName())
		return
	}
	r.retention.Retain(id)
	if _, dup := r.claimed.LoadOrStore(id, struct{}{}); dup {
		return
	}

	fields := r.normalizer.Normalize(ctx, item, id)
	if op.TypeName() == querygen.UploadFileType {
		if u, ok := fields["url"].(string); ok && u != "" {
			r.uploads.Put(u, id)
		}
	}
	digest, err := nodestore.Digest(fields)
	if err != nil {
		s.opts.Logger.Logger().Error("record not stored", "id", id, "error", err)
		return
	}

	nodeType := normalize.NodeType(op.TypeName())
	fields["id"] = id
	fields["strapiId"] = documentID
	if ref, ok := fields["parent"].(map[string]any); ok {
		fields["parent"] = ref["nodeId"]
	} else {
		fields["parent"] = nil
	}
	fields["internal"] = map[string]any{
		"type":          nodeType,
		"contentDigest": digest,
		"owner":         s.opts.Owner,
	}
	n := &nodestore.Node{ID: id, Type: nodeType, Owner: s.opts.Owner, Digest: digest, Fields: fields}

	change, err := s.store.Upsert(ctx, n)
	ev := events.Record{ID: id, Type: nodeType, Err: err}
	switch {
	case err != nil:
		s.opts.Logger.Logger().Error("record not stored", "id", id, "type", nodeType, "error", err)
	case change == nodestore.Created:
		ev.Action = events.RecordCreated
		r.created.Add(1)
	case change == nodestore.Updated:
		ev.Action = events.RecordUpdated
		r.updated.Add(1)
	default:
		ev.Action = events.RecordUnchanged
		r.unchanged.Add(1)
	}
	eventbus.Publish(ctx, ev)
	if err == nil {
		s.manifest(ctx, r.uids[op.TypeName()], documentID, n)
	}
}

// confirm marks an item listed by a sync query as retained.
func (s *Source) confirm(ctx context.Context, r *run, op *querygen.Operation, item map[string]any) {
	id, _ := s.nodeID(op, item)
	if id == "" {
		return
	}
	r.retention.Retain(id)
	if _, upserted := r.claimed.Load(id); upserted {
		return
	}
	err := s.store.Touch(ctx, id)
	if errors.Is(err, nodestore.ErrNotFound) {
		return
	}
	if err != nil {
		s.opts.Logger.Logger().Warn("record not touched", "id", id, "error", err)
	} else {
		r.touched.Add(1)
	}
	eventbus.Publish(ctx, events.Record{ID: id, Type: normalize.NodeType(op.TypeName()), Action: events.RecordTouched, Err: err})
}

func (s *Source) deleteStale(ctx context.Context, r *run, id string) {
	var nodeType string
	if n, err := s.store.Get(ctx, id); err == nil {
		nodeType = n.Type
	}
	err := s.store.Delete(ctx, id)
	if errors.Is(err, nodestore.ErrNotFound) {
		return
	}
	if err != nil {
		s.opts.Logger.Logger().Error("stale record not deleted", "id", id, "error", err)
	} else {
		r.deleted.Add(1)
	}
	eventbus.Publish(ctx, events.Record{ID: id, Type: nodeType, Action: events.RecordDeleted, Err: err})
}

// fail records a failed operation phase and logs each of its reports.
func (s *Source) fail(r *run, op *querygen.Operation, oe *OperationError) {
	reports := oe.Reports(op, s.opts.Now())
	vars, _ := json.Marshal(oe.Variables)
	log := s.opts.Logger.Logger()
	for _, rep := range reports {
		log.Error("operation failed",
			"run", r.id,
			"operation", rep.Operation,
			"locale", rep.Locale,
			"phase", rep.Phase,
			"error", rep.Message,
			"query", rep.Query,
			"variables", string(vars))
	}
	r.mu.Lock()
	r.errs = append(r.errs, oe)
	r.reports = append(r.reports, reports...)
	r.mu.Unlock()
}
