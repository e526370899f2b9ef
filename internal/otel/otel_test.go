package otel

import (
	"context"
	"errors"
	"testing"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
	reqid "github.com/hanpama/graphsource/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "graphsource")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSpansFollowRunHierarchy(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	unsubscribe := newSubscriber(tp.Tracer("test")).register(bus)
	defer unsubscribe()

	ctx, run := reqid.NewRunContext(context.Background())
	eventbus.PublishTo(bus, ctx, events.RunStart{RunID: run, Owner: "graphsource"})
	opCtx, _ := reqid.NewContext(ctx)
	eventbus.PublishTo(bus, opCtx, events.OperationStart{Operation: "articles_en", Type: "Article", Locale: "en", Phase: "full"})
	eventbus.PublishTo(bus, opCtx, events.GraphQLStart{Endpoint: "http://cms/graphql", OperationName: "articles_en"})
	eventbus.PublishTo(bus, opCtx, events.GraphQLFinish{Endpoint: "http://cms/graphql", OperationName: "articles_en", Status: 200})
	eventbus.PublishTo(bus, opCtx, events.OperationFinish{Operation: "articles_en", Items: 3, Err: errors.New("boom")})
	eventbus.PublishTo(bus, ctx, events.RunFinish{RunID: run, Operations: 1})

	spans := rec.Ended()
	require.Len(t, spans, 3)
	gql, op, runSpan := spans[0], spans[1], spans[2]
	require.Equal(t, "graphql.request", gql.Name())
	require.Equal(t, "sourcing.operation", op.Name())
	require.Equal(t, "sourcing.run", runSpan.Name())

	require.Equal(t, op.SpanContext().SpanID(), gql.Parent().SpanID())
	require.Equal(t, runSpan.SpanContext().SpanID(), op.Parent().SpanID())
	require.Equal(t, codes.Error, op.Status().Code)
	require.Equal(t, codes.Unset, runSpan.Status().Code)
}

func TestUnregisteredFinishIsIgnored(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	defer newSubscriber(tp.Tracer("test")).register(bus)()

	eventbus.PublishTo(bus, context.Background(), events.RunFinish{RunID: "missing"})
	eventbus.PublishTo(bus, context.Background(), events.GraphQLFinish{})
	require.Empty(t, rec.Ended())
}

