package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintRoundTrip(t *testing.T) {
	doc := &QueryDocument{Operations: OperationList{{
		Operation: Query,
		Name:      "ArticleQuery",
		VariableDefinitions: VariableDefinitionList{
			{Variable: "pagination", Type: NamedType("PaginationArg")},
		},
		SelectionSet: SelectionSet{
			&Field{
				Name:      "articles",
				Alias:     "articles",
				Arguments: ArgumentList{Arg("pagination", VariableRef("pagination"))},
				SelectionSet: SelectionSet{
					&Field{Name: "__typename", Alias: "__typename"},
					&Field{
						Name:         "seo",
						Alias:        "seo",
						Arguments:    ArgumentList{Arg("pagination", Object(Child("limit", Int(1000))))},
						SelectionSet: SelectionSet{&Field{Name: "title", Alias: "title"}},
					},
				},
			},
		},
	}}}

	text := Print(doc)
	parsed, err := ParseQuery(text)
	require.NoError(t, err, text)

	op := parsed.Operations.ForName("ArticleQuery")
	require.NotNil(t, op)
	require.Equal(t, "pagination", op.VariableDefinitions[0].Variable)
	root := op.SelectionSet[0].(*Field)
	require.Equal(t, "articles", root.Name)
	require.Equal(t, Variable, root.Arguments.ForName("pagination").Value.Kind)
	seo := root.SelectionSet[1].(*Field)
	limit := seo.Arguments.ForName("pagination").Value.Children.ForName("limit")
	require.Equal(t, "1000", limit.Raw)
}

func TestParseQueryError(t *testing.T) {
	_, err := ParseQuery("{ a ")
	require.Error(t, err)
}

func TestNonNullCopies(t *testing.T) {
	base := NamedType("DateTime")
	nn := NonNull(base)
	require.True(t, nn.NonNull)
	require.False(t, base.NonNull)
	require.Equal(t, "DateTime!", nn.String())
}
