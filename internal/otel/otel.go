package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
	reqid "github.com/hanpama/graphsource/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := newSubscriber(otel.Tracer("graphsource")).register(eventbus.Current())
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// subscriber turns start/finish event pairs into spans. Runs are keyed by run id;
// operations, upstream requests and control-plane requests by request id.
type subscriber struct {
	tracer    trace.Tracer
	runSpans  sync.Map // run id -> trace.Span
	opSpans   sync.Map // rid -> trace.Span
	gqlSpans  sync.Map // rid -> trace.Span
	httpSpans sync.Map // rid -> trace.Span
}

func newSubscriber(t trace.Tracer) *subscriber { return &subscriber{tracer: t} }

func (s *subscriber) register(b *eventbus.Bus) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}
	unsubs := []func(){
		eventbus.SubscribeTo(b, s.runStart),
		eventbus.SubscribeTo(b, s.runFinish),
		eventbus.SubscribeTo(b, s.operationStart),
		eventbus.SubscribeTo(b, s.operationFinish),
		eventbus.SubscribeTo(b, s.graphqlStart),
		eventbus.SubscribeTo(b, s.graphqlFinish),
		eventbus.SubscribeTo(b, s.httpStart),
		eventbus.SubscribeTo(b, s.httpFinish),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *subscriber) runStart(ctx context.Context, e events.RunStart) {
	_, span := s.tracer.Start(ctx, "sourcing.run")
	span.SetAttributes(
		attribute.String("sourcing.run_id", e.RunID),
		attribute.String("sourcing.owner", e.Owner),
		attribute.Bool("sourcing.incremental", e.Incremental),
	)
	s.runSpans.Store(e.RunID, span)
}

func (s *subscriber) runFinish(_ context.Context, e events.RunFinish) {
	v, ok := s.runSpans.LoadAndDelete(e.RunID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.Int("sourcing.operations", e.Operations),
		attribute.Int("sourcing.upserted", e.Upserted),
		attribute.Int("sourcing.deleted", e.Deleted),
		attribute.Int("sourcing.reports", e.Reports),
	)
	endWithError(span, e.Err)
}

func (s *subscriber) operationStart(ctx context.Context, e events.OperationStart) {
	rid, _ := reqid.FromContext(ctx)
	parent := ctx
	if run, ok := reqid.RunFromContext(ctx); ok {
		if v, ok := s.runSpans.Load(run); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	_, span := s.tracer.Start(parent, "sourcing.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.Operation),
		attribute.String("sourcing.type", e.Type),
		attribute.String("sourcing.locale", e.Locale),
		attribute.String("sourcing.phase", e.Phase),
	)
	s.opSpans.Store(rid, span)
}

func (s *subscriber) operationFinish(ctx context.Context, e events.OperationFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.opSpans.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("sourcing.items", e.Items))
	endWithError(span, e.Err)
}

func (s *subscriber) graphqlStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	parent := ctx
	if v, ok := s.opSpans.Load(rid); ok {
		parent = trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	_, span := s.tracer.Start(parent, "graphql.request", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("http.url", e.Endpoint),
	)
	s.gqlSpans.Store(rid, span)
}

func (s *subscriber) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.gqlSpans.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(e.Status),
		attribute.Int("graphql.error_count", len(e.Errors)),
	)
	endWithError(span, e.Err)
}

func (s *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Request.Method),
		attribute.String("http.target", e.Request.URL.Path),
	)
	s.httpSpans.Store(rid, span)
}

func (s *subscriber) httpFinish(ctx context.Context, e events.HTTPFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.httpSpans.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
	span.End()
}

func endWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
