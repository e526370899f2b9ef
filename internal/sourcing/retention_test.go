package sourcing

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gqlclient "github.com/hanpama/graphsource/internal/gqlclient"
	querygen "github.com/hanpama/graphsource/internal/querygen"
)

func TestResolveLocales(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		available  []string
		want       []string
	}{
		{"served subset", []string{"fr", "de", "fr"}, []string{"en", "fr"}, []string{"fr"}},
		{"nothing configured", nil, []string{"en", "fr"}, []string{"en", "fr"}},
		{"all requested", []string{"en", AllLocales}, []string{"en", "fr"}, []string{"en", "fr"}},
		{"none served", []string{"fr"}, []string{"en", "de"}, nil},
		{"no i18n", []string{"en"}, nil, []string{AllLocales}},
		{"nothing at all", nil, nil, []string{AllLocales}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveLocales(tt.configured, tt.available))
		})
	}
}

func TestRetentionSetConcurrentRetain(t *testing.T) {
	var ids []string
	for i := range 100 {
		ids = append(ids, fmt.Sprintf("n%03d", i))
	}
	set := NewRetentionSet(ids)

	var wg sync.WaitGroup
	var mu sync.Mutex
	first := 0
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.Retain(ids[i%50]) {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, first, "each id is confirmed exactly once")
	assert.Equal(t, 50, set.Len())
	rest := set.Drain()
	require.Equal(t, ids[50:], rest)
	require.Zero(t, set.Len())
	require.False(t, set.Retain("unknown"))
}

func TestUploadMap(t *testing.T) {
	m := NewUploadMap()
	m.Put("/uploads/a.png", "n1")
	id, ok := m.Lookup("/uploads/a.png")
	require.True(t, ok)
	require.Equal(t, "n1", id)
	_, ok = m.Lookup("/uploads/b.png")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())
}

func TestOperationErrorReports(t *testing.T) {
	op := &querygen.Operation{Name: "ArticleQuery", CollectionType: "Article", Locale: "en"}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vars := map[string]any{"locale": "en"}

	gql := &OperationError{Operation: op.Name, Phase: PhaseSync, Query: "query", Variables: vars,
		Err: &gqlclient.NetworkError{StatusCode: 400, Errors: []gqlclient.GraphQLError{{Message: "bad filter"}}}}
	reports := gql.Reports(op, at)
	require.Len(t, reports, 1)
	require.Equal(t, Report{
		Operation: "ArticleQuery",
		Type:      "Article",
		Locale:    "en",
		Phase:     PhaseSync,
		Message:   "bad filter",
		Query:     "query",
		Variables: vars,
		Time:      at,
	}, reports[0])

	plain := &OperationError{Operation: op.Name, Phase: PhaseFull, Err: errors.New("timeout")}
	reports = plain.Reports(op, at)
	require.Len(t, reports, 1)
	require.Equal(t, "timeout", reports[0].Message)
	require.ErrorContains(t, plain, "operation ArticleQuery (full): timeout")
}
