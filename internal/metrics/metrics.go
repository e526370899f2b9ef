// Package metrics exposes Prometheus collectors fed from the event bus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphsource"

// Metrics holds the collectors for one process. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationItems    *prometheus.CounterVec
	records           *prometheus.CounterVec
	graphqlRequests   *prometheus.CounterVec
	graphqlDuration   prometheus.Histogram
	assets            *prometheus.CounterVec
	assetBytes        prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

// New creates the collectors and registers them along with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sourcing",
			Name:      "runs_total",
			Help:      "Sourcing runs by outcome",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sourcing",
			Name:      "run_duration_seconds",
			Help:      "Duration of sourcing runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sourcing",
			Name:      "operations_total",
			Help:      "Executed operations by type, phase and outcome",
		}, []string{"type", "phase", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sourcing",
			Name:      "operation_duration_seconds",
			Help:      "Duration of operation phases",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		operationItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sourcing",
			Name:      "items_total",
			Help:      "Items received from upstream by type and phase",
		}, []string{"type", "phase"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_total",
			Help:      "Record store mutations by node type and action",
		}, []string{"type", "action"}),
		graphqlRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "requests_total",
			Help:      "Upstream GraphQL requests by outcome",
		}, []string{"status"}),
		graphqlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "request_duration_seconds",
			Help:      "Upstream GraphQL request latency",
			Buckets:   prometheus.DefBuckets,
		}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "materialized_total",
			Help:      "Asset materializations by outcome",
		}, []string{"status"}),
		assetBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written by asset downloads",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Control server requests by route and status code",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration,
		m.operations, m.operationDuration, m.operationItems,
		m.records,
		m.graphqlRequests, m.graphqlDuration,
		m.assets, m.assetBytes,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Register subscribes the collectors to b.
func (m *Metrics) Register(b *eventbus.Bus) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}
	unsubs := []func(){
		eventbus.SubscribeTo(b, func(_ context.Context, e events.RunFinish) {
			m.runs.WithLabelValues(status(e.Err)).Inc()
			m.runDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.OperationFinish) {
			m.operations.WithLabelValues(e.Type, e.Phase, status(e.Err)).Inc()
			m.operationDuration.WithLabelValues(e.Phase).Observe(e.Duration.Seconds())
			m.operationItems.WithLabelValues(e.Type, e.Phase).Add(float64(e.Items))
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.Record) {
			action := string(e.Action)
			if e.Err != nil {
				action = "failed"
			}
			m.records.WithLabelValues(e.Type, action).Inc()
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.GraphQLFinish) {
			st := status(e.Err)
			if st == "ok" && len(e.Errors) > 0 {
				st = "graphql_error"
			}
			m.graphqlRequests.WithLabelValues(st).Inc()
			m.graphqlDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.AssetMaterialized) {
			switch {
			case e.Err != nil:
				m.assets.WithLabelValues("error").Inc()
			case e.Cached:
				m.assets.WithLabelValues("cached").Inc()
			default:
				m.assets.WithLabelValues("downloaded").Inc()
				m.assetBytes.Add(float64(e.Bytes))
			}
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(e.Route, strconv.Itoa(e.Status)).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
