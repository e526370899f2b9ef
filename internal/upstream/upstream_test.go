package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	gqlclient "github.com/hanpama/graphsource/internal/gqlclient"
	introspection "github.com/hanpama/graphsource/internal/introspection"
)

type fakeExecutor struct {
	data    map[string]map[string]any
	err     error
	queries []string
}

func (f *fakeExecutor) Execute(_ context.Context, query string, _ map[string]any) (map[string]any, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.data[query], nil
}

func TestIntrospectOverHTTP(t *testing.T) {
	fixture, err := os.ReadFile("../introspection/testdata/strapi.json")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":`+string(fixture)+`}`)
	}))
	defer srv.Close()

	c := New(srv.URL, gqlclient.New(srv.URL))
	s, err := c.Introspect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s.GetQueryType())
	require.NotNil(t, s.GetQueryType().Field("articles_connection"))
}

func TestIntrospectFailure(t *testing.T) {
	c := New("http://cms", &fakeExecutor{err: errors.New("refused")})
	_, err := c.Introspect(context.Background())
	require.ErrorContains(t, err, "refused")

	c = New("http://cms", &fakeExecutor{data: map[string]map[string]any{introspection.Query: {}}})
	_, err = c.Introspect(context.Background())
	require.ErrorIs(t, err, introspection.ErrNoSchema)
}

func TestLocales(t *testing.T) {
	exec := &fakeExecutor{data: map[string]map[string]any{
		localesQuery: {"i18NLocales": []any{
			map[string]any{"code": "en"},
			map[string]any{"code": "fr"},
			map[string]any{"code": ""},
		}},
	}}
	codes, err := New("http://cms", exec).Locales(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"en", "fr"}, codes)

	codes, err = New("http://cms", &fakeExecutor{err: errors.New("no i18n")}).Locales(context.Background())
	require.NoError(t, err)
	require.Empty(t, codes)
}

func TestContentTypes(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/content-type-builder/content-types" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"data":[
			{"apiID":"article","uid":"api::article.article"},
			{"apiID":"blog-post","uid":"api::blog-post.blog-post"},
			{"apiID":"file","uid":"plugin::upload.file"},
			{"uid":"broken"}
		]}`)
	}))
	defer srv.Close()

	types, err := New(srv.URL+"/", nil, WithToken("tok")).ContentTypes(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", auth)
	require.Equal(t, map[string]string{
		"Article":  "api::article.article",
		"BlogPost": "api::blog-post.blog-post",
		"File":     "plugin::upload.file",
	}, types)
}

func TestContentTypesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ContentTypes(context.Background())
	require.ErrorContains(t, err, "status 403")
}
