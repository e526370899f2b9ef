package gqlclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
)

type recorded struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  []request
}

func server(t *testing.T, status int, reply string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body request
		_ = json.Unmarshal(raw, &body)
		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.bodies = append(rec.bodies, body)
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestExecuteSendsQueryAndHeaders(t *testing.T) {
	srv, rec := server(t, http.StatusOK, `{"data":{"articles":{"nodes":[{"documentId":"a1"}]}}}`)
	c := New(srv.URL+"/", WithToken("secret"), WithHeaders(map[string]string{"X-Site": "blog"}))
	require.Equal(t, srv.URL+"/graphql", c.Endpoint())

	data, err := c.Execute(context.Background(), "query articles_en($locale: I18NLocaleCode) { articles { nodes { documentId } } }", map[string]any{"locale": "en"})
	require.NoError(t, err)

	want := map[string]any{"articles": map[string]any{"nodes": []any{map[string]any{"documentId": "a1"}}}}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "Bearer secret", rec.headers[0].Get("Authorization"))
	require.Equal(t, "blog", rec.headers[0].Get("X-Site"))
	require.Equal(t, "articles_en", rec.bodies[0].OperationName)
	require.Equal(t, map[string]any{"locale": "en"}, rec.bodies[0].Variables)
}

func TestExecuteGraphQLErrors(t *testing.T) {
	srv, _ := server(t, http.StatusOK, `{"data":{"articles":null},"errors":[{"message":"Forbidden access","path":["articles"]}]}`)
	data, err := New(srv.URL).Execute(context.Background(), "{ articles { documentId } }", nil)

	var re *ResponseError
	require.ErrorAs(t, err, &re)
	require.Len(t, re.Errors, 1)
	require.Equal(t, "Forbidden access", re.Errors[0].Message)
	require.Equal(t, []any{"articles"}, re.Errors[0].Path)
	require.Contains(t, data, "articles")
	require.Equal(t, re.Errors, Errors(err))
}

func TestExecuteNetworkErrors(t *testing.T) {
	srv, _ := server(t, http.StatusBadRequest, `{"errors":[{"message":"Variable \"$locale\" got invalid value"}]}`)
	_, err := New(srv.URL).Execute(context.Background(), "{ a }", nil)

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	require.Equal(t, http.StatusBadRequest, ne.StatusCode)
	require.Len(t, Errors(err), 1)
	require.Contains(t, err.Error(), "invalid value")

	srv, _ = server(t, http.StatusOK, `<html>`)
	_, err = New(srv.URL).Execute(context.Background(), "{ a }", nil)
	require.ErrorAs(t, err, &ne)
	require.Equal(t, "<html>", ne.Body)
	require.Error(t, ne.Unwrap())

	_, err = New("http://127.0.0.1:1", WithTimeout(time.Second)).Execute(context.Background(), "{ a }", nil)
	require.ErrorAs(t, err, &ne)
	require.Zero(t, ne.StatusCode)
	require.Empty(t, Errors(err))
}

func TestExecutePublishesEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var finish events.GraphQLFinish
	var started int
	eventbus.Subscribe(func(context.Context, events.GraphQLStart) { started++ })
	eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) { finish = e })

	srv, _ := server(t, http.StatusOK, `{"data":null,"errors":[{"message":"boom"}]}`)
	_, err := New(srv.URL).Execute(context.Background(), "query sync_x { a }", nil)
	require.Error(t, err)
	require.Equal(t, 1, started)
	require.Equal(t, "sync_x", finish.OperationName)
	require.Equal(t, http.StatusOK, finish.Status)
	require.Len(t, finish.Errors, 1)
	require.Error(t, finish.Err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(WithToken("t"))
	a, err := r.Client("http://cms.local/")
	require.NoError(t, err)
	b, err := r.Client("http://cms.local")
	require.NoError(t, err)
	require.Same(t, a, b)

	other, err := r.Client("http://other.local")
	require.NoError(t, err)
	require.NotSame(t, a, other)

	require.NoError(t, r.Close())
	_, err = a.Execute(context.Background(), "{ a }", nil)
	require.True(t, errors.Is(err, ErrClosed))
	_, err = r.Client("http://cms.local")
	require.ErrorIs(t, err, ErrClosed)
}
