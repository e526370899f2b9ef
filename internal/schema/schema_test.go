package schema

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTypeRefUnwrapIsIdempotentOnNamed(t *testing.T) {
	ref := NonNullType(ListType(NonNullType(NamedType("Article"))))

	require.True(t, ref.IsList())
	require.True(t, ref.IsNonNull())
	require.Equal(t, "Article", ref.GetNamedType())

	inner := ref.Unwrap().Unwrap().Unwrap()
	require.Equal(t, TypeRefKindNamed, inner.Kind)
	require.Same(t, inner, inner.Unwrap())
	require.Same(t, inner, inner.Unwrap().Unwrap())
	require.Equal(t, "[Article!]!", ref.String())
}

func TestLookupHelpers(t *testing.T) {
	field := NewField("articles", "", NamedType("ArticleEntityResponseCollection")).
		WithArgs(NewInputValue("pagination", "", NamedType("PaginationArg")))
	s := NewSchema("Query").
		AddType(Object("Query", field)).
		AddType(Input("ArticleFiltersInput", NewInputValue("updatedAt", "", NamedType("DateTimeFilterInput")))).
		AddBuiltins()

	require.Same(t, s.Types["Query"], s.GetQueryType())
	require.Same(t, field, s.GetQueryType().Field("articles"))
	require.Nil(t, s.GetQueryType().Field("missing"))
	require.True(t, field.HasArgument("pagination"))
	require.False(t, field.HasArgument("locale"))
	require.NotNil(t, s.Lookup("ArticleFiltersInput").InputField("updatedAt"))
	require.NotNil(t, s.Lookup("String"))
	require.Nil(t, s.Lookup(""))
}

func TestGetQueryTypeDefaultsToQuery(t *testing.T) {
	s := NewSchema("").AddType(Object("Query"))
	require.NotNil(t, s.GetQueryType())

	var nilSchema *Schema
	require.Nil(t, nilSchema.GetQueryType())
}

func TestRender(t *testing.T) {
	s := NewSchema("Query").
		AddType(Object("Query",
			NewField("articles", "", ListType(NamedType("Article"))).
				WithArgs(NewInputValue("pagination", "", NamedType("PaginationArg")).SetDefault(Literal("{}"))),
		)).
		AddType(Object("Article",
			NewField("title", "", NonNullType(NamedType("String"))),
			NewField("legacy", "", NamedType("String")).Deprecate("use title"),
		)).
		AddType(Union("Block", "Article")).
		AddType(Enum("PublicationState", "LIVE", "PREVIEW")).
		AddType(Input("PaginationArg", NewInputValue("limit", "", NamedType("Int")))).
		AddType(Object("__Type")).
		AddBuiltins()

	want := strings.Join([]string{
		"type Article {",
		"  title: String!",
		`  legacy: String @deprecated(reason: "use title")`,
		"}",
		"",
		"union Block = Article",
		"",
		"input PaginationArg {",
		"  limit: Int",
		"}",
		"",
		"enum PublicationState {",
		"  LIVE",
		"  PREVIEW",
		"}",
		"",
		"type Query {",
		"  articles(pagination: PaginationArg = {}): [Article]",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, Render(s)); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderValue(t *testing.T) {
	got := renderValue(map[string]any{"b": []any{1, "x"}, "a": true})
	require.Equal(t, `{a: true, b: [1, "x"]}`, got)
	require.Equal(t, "null", renderValue(nil))
}
