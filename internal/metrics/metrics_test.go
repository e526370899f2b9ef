package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsFollowEvents(t *testing.T) {
	m := New()
	bus := eventbus.New()
	defer m.Register(bus)()
	ctx := context.Background()

	eventbus.PublishTo(bus, ctx, events.RunFinish{Duration: time.Second})
	eventbus.PublishTo(bus, ctx, events.RunFinish{Err: context.Canceled})
	eventbus.PublishTo(bus, ctx, events.OperationFinish{Type: "Article", Phase: "full", Items: 4})
	eventbus.PublishTo(bus, ctx, events.OperationFinish{Type: "Article", Phase: "sync", Err: errors.New("down")})
	eventbus.PublishTo(bus, ctx, events.Record{Type: "StrapiArticle", Action: events.RecordCreated})
	eventbus.PublishTo(bus, ctx, events.Record{Type: "StrapiArticle", Action: events.RecordDeleted, Err: errors.New("locked")})
	eventbus.PublishTo(bus, ctx, events.GraphQLFinish{Errors: []error{errors.New("bad field")}})
	eventbus.PublishTo(bus, ctx, events.AssetMaterialized{Bytes: 128})
	eventbus.PublishTo(bus, ctx, events.AssetMaterialized{Cached: true})

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("canceled")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("Article", "sync", "error")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.operationItems.WithLabelValues("Article", "full")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("StrapiArticle", "created")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("StrapiArticle", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.graphqlRequests.WithLabelValues("graphql_error")))
	require.Equal(t, 128.0, testutil.ToFloat64(m.assetBytes))
	require.Equal(t, 1.0, testutil.ToFloat64(m.assets.WithLabelValues("cached")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	bus := eventbus.New()
	defer m.Register(bus)()
	eventbus.PublishTo(bus, context.Background(), events.RunFinish{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "graphsource_sourcing_runs_total"))
}
