package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type (
	QueryDocument          = ast.QueryDocument
	OperationDefinition    = ast.OperationDefinition
	OperationList          = ast.OperationList
	VariableDefinition     = ast.VariableDefinition
	VariableDefinitionList = ast.VariableDefinitionList
	SelectionSet           = ast.SelectionSet
	Selection              = ast.Selection
	Field                  = ast.Field
	InlineFragment         = ast.InlineFragment
	ArgumentList           = ast.ArgumentList
	Argument               = ast.Argument
	Value                  = ast.Value
	ChildValue             = ast.ChildValue
	ChildValueList         = ast.ChildValueList
	Type                   = ast.Type
	Error                  = gqlerror.Error
)

type Operation = ast.Operation

type ValueKind = ast.ValueKind

const (
	Query Operation = ast.Query

	Variable     ValueKind = ast.Variable
	IntValue     ValueKind = ast.IntValue
	StringValue  ValueKind = ast.StringValue
	BooleanValue ValueKind = ast.BooleanValue
	EnumValue    ValueKind = ast.EnumValue
	ListValue    ValueKind = ast.ListValue
	ObjectValue  ValueKind = ast.ObjectValue
)

// NamedType returns a nullable named type reference.
func NamedType(name string) *Type { return ast.NamedType(name, nil) }

// ListType returns a nullable list of elem.
func ListType(elem *Type) *Type { return ast.ListType(elem, nil) }

// NonNull returns a copy of t marked non-null.
func NonNull(t *Type) *Type {
	cp := *t
	cp.NonNull = true
	return &cp
}
