package querygen

import (
	"fmt"
	"testing"

	language "github.com/hanpama/graphsource/internal/language"
	schema "github.com/hanpama/graphsource/internal/schema"
	"github.com/stretchr/testify/require"
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

// contentSchema is a small content API with collections, a single type, a
// self-referential type, a dynamic zone and relation wrappers.
func contentSchema() *schema.Schema {
	pagination := func() *schema.InputValue {
		return arg("pagination", named("PaginationArg")).SetDefault(schema.Literal("{}"))
	}
	return schema.NewSchema("Query").
		AddType(schema.Object("Query",
			field("articles_connection", nonNull("ArticleEntityResponseCollection"),
				arg("filters", named("ArticleFiltersInput")),
				pagination(),
				arg("locale", named("I18NLocaleCode"))),
			field("uploadFiles_connection", nonNull("UploadFileEntityResponseCollection"),
				arg("filters", named("UploadFileFiltersInput")),
				pagination()),
			field("homepage", named("Homepage"),
				arg("locale", named("I18NLocaleCode"))),
			field("category", named("Category"),
				arg("documentId", nonNull("ID"))),
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
			field("locale", named("String")),
			field("updatedAt", named("DateTime")),
			field("status", named("ENUM_ARTICLE_STATUS")),
			field("tags", schema.ListType(named("String"))),
			field("category", named("Category")),
			field("blocks", schema.ListType(named("ArticleBlocksDynamicZone"))),
			field("related", named("ArticleRelationResponseCollection"),
				pagination(),
				arg("publicationState", named("PublicationState"))),
			field("morph", named("GenericMorph")),
		)).
		AddType(schema.Object("ArticleRelationResponseCollection", field("nodes", listOf("Article")))).
		AddType(schema.Object("Category",
			field("documentId", nonNull("ID")),
			field("name", named("String")),
			field("parent", named("Category")),
			field("children", schema.ListType(named("Category")), pagination()),
		)).
		AddType(schema.Union("ArticleBlocksDynamicZone", "ComponentSharedQuote", "ComponentSharedMedia")).
		AddType(schema.Object("ComponentSharedQuote", field("id", nonNull("ID")), field("body", named("String")))).
		AddType(schema.Object("ComponentSharedMedia", field("id", nonNull("ID")), field("file", named("UploadFile")))).
		AddType(schema.Union("GenericMorph", "Article", "Category")).
		AddType(schema.Object("Homepage", field("documentId", nonNull("ID")), field("heading", named("String")))).
		AddType(schema.Object("UploadFile",
			field("documentId", nonNull("ID")),
			field("url", nonNull("String")),
			field("name", nonNull("String")))).
		AddType(schema.Enum("ENUM_ARTICLE_STATUS", "draft", "published")).
		AddType(schema.Enum("PublicationState", "LIVE", "PREVIEW")).
		AddType(schema.Input("PaginationArg", arg("start", named("Int")), arg("limit", named("Int")))).
		AddType(schema.Input("ArticleFiltersInput", arg("updatedAt", named("DateTimeFilterInput")))).
		AddType(schema.Input("UploadFileFiltersInput", arg("updatedAt", named("DateTimeFilterInput")))).
		AddType(schema.Input("DateTimeFilterInput", arg("gt", named("DateTime")))).
		AddType(schema.Scalar("DateTime")).
		AddType(schema.Scalar("I18NLocaleCode")).
		AddBuiltins()
}

// chainSchema returns n object types T0..T(n-1), each pointing at the next.
func chainSchema(n int) *schema.Schema {
	s := schema.NewSchema("Query").
		AddType(schema.Object("Query", field("t0", named("T0")))).
		AddBuiltins()
	for i := 0; i < n; i++ {
		t := schema.Object(fmt.Sprintf("T%d", i), field("value", named("String")))
		if i+1 < n {
			t.AddField(field("next", named(fmt.Sprintf("T%d", i+1))))
		}
		s.AddType(t)
	}
	return s
}

// nesting counts nested field selection sets; inline fragments are transparent.
func nesting(set language.SelectionSet) int {
	deepest := 0
	for _, sel := range set {
		d := 0
		switch s := sel.(type) {
		case *language.Field:
			if len(s.SelectionSet) > 0 {
				d = 1 + nesting(s.SelectionSet)
			}
		case *language.InlineFragment:
			d = nesting(s.SelectionSet)
		}
		deepest = max(deepest, d)
	}
	return deepest
}

func documentNesting(t *testing.T, query string) int {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	return 1 + nesting(doc.Operations[0].SelectionSet)
}

// find walks a selection set by field name and returns the last field, or nil.
func find(set language.SelectionSet, path ...string) *language.Field {
	var cur *language.Field
	for _, name := range path {
		cur = nil
		for _, sel := range set {
			if f, ok := sel.(*language.Field); ok && f.Name == name {
				cur = f
				break
			}
		}
		if cur == nil {
			return nil
		}
		set = cur.SelectionSet
	}
	return cur
}

func fieldNames(set language.SelectionSet) []string {
	var names []string
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			names = append(names, s.Name)
		case *language.InlineFragment:
			names = append(names, "... on "+s.TypeCondition)
		}
	}
	return names
}

func opsFor(ops []*Operation, typeName string) []*Operation {
	var out []*Operation
	for _, op := range ops {
		if op.TypeName() == typeName {
			out = append(out, op)
		}
	}
	return out
}
