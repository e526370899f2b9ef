package sourcing

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	gqlclient "github.com/hanpama/graphsource/internal/gqlclient"
	language "github.com/hanpama/graphsource/internal/language"
	schema "github.com/hanpama/graphsource/internal/schema"
)

func named(n string) *schema.TypeRef   { return schema.NamedType(n) }
func nonNull(n string) *schema.TypeRef { return schema.NonNullType(schema.NamedType(n)) }
func listOf(n string) *schema.TypeRef {
	return schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType(n))))
}
func field(name string, typ *schema.TypeRef, args ...*schema.InputValue) *schema.Field {
	return schema.NewField(name, "", typ).WithArgs(args...)
}
func arg(name string, typ *schema.TypeRef) *schema.InputValue {
	return schema.NewInputValue(name, "", typ)
}

// cmsSchema has localized articles, uploads and a localized single type.
func cmsSchema() *schema.Schema {
	return schema.NewSchema("Query").
		AddType(schema.Object("Query",
			field("articles_connection", nonNull("ArticleEntityResponseCollection"),
				arg("filters", named("ArticleFiltersInput")),
				arg("pagination", named("PaginationArg")),
				arg("locale", named("I18NLocaleCode"))),
			field("uploadFiles_connection", nonNull("UploadFileEntityResponseCollection"),
				arg("filters", named("UploadFileFiltersInput")),
				arg("pagination", named("PaginationArg"))),
			field("homepage", named("Homepage"),
				arg("locale", named("I18NLocaleCode"))),
		)).
		AddType(schema.Object("ArticleEntityResponseCollection",
			field("nodes", listOf("Article")),
			field("pageInfo", nonNull("Pagination")))).
		AddType(schema.Object("UploadFileEntityResponseCollection",
			field("nodes", listOf("UploadFile")),
			field("pageInfo", nonNull("Pagination")))).
		AddType(schema.Object("Pagination", field("total", nonNull("Int")))).
		AddType(schema.Object("Article",
			field("documentId", nonNull("ID")),
			field("title", named("String")),
			field("body", named("String")),
			field("locale", named("String")),
			field("updatedAt", named("DateTime")),
			field("related", named("ArticleRelationResponseCollection")),
		)).
		AddType(schema.Object("ArticleRelationResponseCollection", field("nodes", listOf("Article")))).
		AddType(schema.Object("UploadFile",
			field("documentId", nonNull("ID")),
			field("url", nonNull("String")),
			field("updatedAt", named("DateTime")))).
		AddType(schema.Object("Homepage",
			field("documentId", nonNull("ID")),
			field("heading", named("String")),
			field("locale", named("String")))).
		AddType(schema.Input("PaginationArg", arg("start", named("Int")), arg("limit", named("Int")))).
		AddType(schema.Input("ArticleFiltersInput", arg("updatedAt", named("DateTimeFilterInput")))).
		AddType(schema.Input("UploadFileFiltersInput", arg("updatedAt", named("DateTimeFilterInput")))).
		AddType(schema.Input("DateTimeFilterInput", arg("gt", named("DateTime")))).
		AddType(schema.Scalar("DateTime")).
		AddType(schema.Scalar("I18NLocaleCode")).
		AddBuiltins()
}

type call struct {
	Field string
	Sync  bool
	Vars  map[string]any
}

// fakeAPI serves records per root field and honors the locale, updatedAt and
// pagination variables the way the content API does.
type fakeAPI struct {
	schema  *schema.Schema
	locales []string
	uids    map[string]string

	mu      sync.Mutex
	records map[string][]map[string]any
	fail    map[string]error
	calls   []call
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		schema:  cmsSchema(),
		locales: []string{"en", "fr"},
		uids:    map[string]string{"Article": "api::article.article"},
		records: map[string][]map[string]any{},
		fail:    map[string]error{},
	}
}

func (f *fakeAPI) Introspect(context.Context) (*schema.Schema, error) { return f.schema, nil }
func (f *fakeAPI) Locales(context.Context) ([]string, error)         { return f.locales, nil }
func (f *fakeAPI) ContentTypes(context.Context) (map[string]string, error) {
	return f.uids, nil
}

func (f *fakeAPI) set(field string, items ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[field] = items
}

func (f *fakeAPI) failWith(field string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[field] = err
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeAPI) Execute(_ context.Context, query string, vars map[string]any) (map[string]any, error) {
	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	root := doc.Operations[0].SelectionSet[0].(*language.Field).Name
	isSync := !strings.Contains(query, "__typename")

	f.mu.Lock()
	f.calls = append(f.calls, call{Field: root, Sync: isSync, Vars: maps.Clone(vars)})
	items, fail := f.records[root], f.fail[root]
	f.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	locale, _ := vars["locale"].(string)
	since, _ := vars["updatedAt"].(string)
	var matched []any
	for _, it := range items {
		if l, ok := it["locale"].(string); ok && locale != "" && l != locale {
			continue
		}
		if u, _ := it["updatedAt"].(string); since != "" && u <= since {
			continue
		}
		if isSync {
			it = map[string]any{"documentId": it["documentId"], "locale": it["locale"]}
		}
		matched = append(matched, it)
	}
	total := len(matched)
	if p, ok := vars["pagination"].(map[string]any); ok {
		start, limit := p["start"].(int), p["limit"].(int)
		matched = matched[min(start, total):min(start+limit, total)]
	}
	if root == "homepage" {
		if len(matched) == 0 {
			return map[string]any{root: nil}, nil
		}
		return map[string]any{root: matched[0]}, nil
	}
	return map[string]any{root: map[string]any{
		"nodes":    matched,
		"pageInfo": map[string]any{"total": total},
	}}, nil
}

func article(id, locale, title, updatedAt string, related ...string) map[string]any {
	nodes := make([]any, len(related))
	for i, r := range related {
		nodes[i] = map[string]any{"__typename": "Article", "documentId": r, "locale": locale}
	}
	return map[string]any{
		"__typename": "Article",
		"documentId": id,
		"title":      title,
		"locale":     locale,
		"updatedAt":  updatedAt,
		"related":    map[string]any{"__typename": "ArticleRelationResponseCollection", "nodes": nodes},
	}
}

func upload(id, url string) map[string]any {
	return map[string]any{"__typename": "UploadFile", "documentId": id, "url": url, "updatedAt": "2024-01-01T00:00:00.000Z"}
}

func graphQLFailure(msgs ...string) error {
	errs := make([]gqlclient.GraphQLError, len(msgs))
	for i, m := range msgs {
		errs[i] = gqlclient.GraphQLError{Message: m, Path: []any{"articles_connection"}}
	}
	return &gqlclient.ResponseError{Errors: errs}
}

type recordedManifests struct {
	mu   sync.Mutex
	list []Manifest
}

func (r *recordedManifests) CreateManifest(_ context.Context, m Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, m)
	return nil
}

type fakeMaterializer struct{}

func (fakeMaterializer) Materialize(_ context.Context, url, parentID string, _ map[string]string) (string, error) {
	return fmt.Sprintf("file:%s", url), nil
}
