package language

import (
	"bytes"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Print formats doc as GraphQL source text.
func Print(doc *QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatQueryDocument(doc)
	return buf.String()
}

// VariableRef is the value `$name`.
func VariableRef(name string) *Value { return &Value{Kind: Variable, Raw: name} }

// Int is an integer literal value.
func Int(n int) *Value { return &Value{Kind: IntValue, Raw: strconv.Itoa(n)} }

// Object is an object literal built from alternating name/value pairs in order.
func Object(children ...*ChildValue) *Value {
	return &Value{Kind: ObjectValue, Children: ChildValueList(children)}
}

// Child is one `name: value` member of an object literal.
func Child(name string, v *Value) *ChildValue { return &ChildValue{Name: name, Value: v} }

// Arg is a `name: value` field argument.
func Arg(name string, v *Value) *Argument { return &Argument{Name: name, Value: v} }
