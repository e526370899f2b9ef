package querygen

import (
	schema "github.com/hanpama/graphsource/internal/schema"
)

// shape is the selection-relevant form of a field type.
type shape interface{ isShape() }

type (
	leafShape   struct{ name string }
	enumShape   struct{ typ *schema.Type }
	objectShape struct{ typ *schema.Type }
	unionShape  struct{ typ *schema.Type }
	listShape   struct{ elem shape }
)

func (leafShape) isShape()   {}
func (enumShape) isShape()   {}
func (objectShape) isShape() {}
func (unionShape) isShape()  {}
func (listShape) isShape()   {}

// classify resolves ref against the schema. Non-null wrappers are transparent.
// It returns nil for types that cannot be resolved or selected.
func classify(s *schema.Schema, ref *schema.TypeRef) shape {
	ref = ref.StripNonNull()
	if ref == nil {
		return nil
	}
	if ref.Kind == schema.TypeRefKindList {
		elem := classify(s, ref.OfType)
		if elem == nil {
			return nil
		}
		return listShape{elem: elem}
	}
	t := s.Lookup(ref.Named)
	if t == nil {
		if schema.IsBuiltinScalar(ref.Named) {
			return leafShape{name: ref.Named}
		}
		return nil
	}
	switch t.Kind {
	case schema.TypeKindScalar:
		return leafShape{name: t.Name}
	case schema.TypeKindEnum:
		return enumShape{typ: t}
	case schema.TypeKindObject, schema.TypeKindInterface:
		return objectShape{typ: t}
	case schema.TypeKindUnion:
		return unionShape{typ: t}
	}
	return nil
}
