package querygen

import (
	"slices"

	language "github.com/hanpama/graphsource/internal/language"
	schema "github.com/hanpama/graphsource/internal/schema"
)

// builder walks the type graph for one operation. It is not safe for concurrent use.
type builder struct {
	schema *schema.Schema
	opts   *Options

	// object types on the active recursion path
	active map[string]bool
	// type of the first nested publicationState argument, nil if none was bound
	publicationState *schema.TypeRef
}

func newBuilder(s *schema.Schema, opts *Options) *builder {
	return &builder{schema: s, opts: opts, active: make(map[string]bool)}
}

// Selection returns the selection set for t as it would appear at depth, or nil when
// nothing can be selected there.
func (b *builder) Selection(t *schema.Type, depth int) language.SelectionSet {
	if t == nil || depth > b.opts.MaxDepth {
		return nil
	}
	switch t.Kind {
	case schema.TypeKindObject, schema.TypeKindInterface:
		return b.objectSelection(t, depth)
	case schema.TypeKindUnion:
		return b.unionSelection(t, depth)
	case schema.TypeKindEnum:
		return enumSelection(t)
	}
	return nil
}

func (b *builder) objectSelection(t *schema.Type, depth int) language.SelectionSet {
	switch {
	case isSingleRelationStub(t.Name):
		id := "id"
		if t.Field("id") == nil && t.Field("documentId") != nil {
			id = "documentId"
		}
		return language.SelectionSet{typename(), leaf(id)}
	case isCollectionRelationStub(t.Name):
		if depth+1 > b.opts.MaxDepth {
			return nil
		}
		ids := language.SelectionSet{typename(), leaf("documentId")}
		if nodes := t.Field("nodes"); nodes != nil && b.schema.Lookup(nodes.Type.GetNamedType()).Field("locale") != nil {
			ids = append(ids, leaf("locale"))
		}
		return language.SelectionSet{typename(), &language.Field{Alias: "nodes", Name: "nodes", SelectionSet: ids}}
	}

	if b.active[t.Name] {
		return b.cycleStub(t)
	}
	b.active[t.Name] = true
	defer delete(b.active, t.Name)

	set := language.SelectionSet{typename()}
	for _, f := range t.Fields {
		if sel := b.field(f, depth); sel != nil {
			set = append(set, sel)
		}
	}
	return set
}

// cycleStub selects only the identifier of a type that is already being expanded.
func (b *builder) cycleStub(t *schema.Type) language.SelectionSet {
	id := identifierField(t)
	if id == "" {
		return nil
	}
	b.opts.Logger.Logger().Debug("querygen: cycle reduced to identifier", "type", t.Name, "field", id)
	return language.SelectionSet{typename(), leaf(id)}
}

func (b *builder) unionSelection(t *schema.Type, depth int) language.SelectionSet {
	set := language.SelectionSet{typename()}
	for _, name := range t.PossibleTypes {
		pt := b.schema.Lookup(name)
		if pt == nil {
			continue
		}
		sel := b.Selection(pt, depth+1)
		if len(sel) == 0 {
			continue
		}
		set = append(set, &language.InlineFragment{TypeCondition: name, SelectionSet: sel})
	}
	return set
}

// enumSelection lists every enum value name next to __typename.
func enumSelection(t *schema.Type) language.SelectionSet {
	set := language.SelectionSet{typename()}
	for _, v := range t.EnumValues {
		set = append(set, leaf(v.Name))
	}
	return set
}

func (b *builder) field(f *schema.Field, depth int) *language.Field {
	if b.excluded(f) || !callable(f) {
		return nil
	}
	return b.shapeField(f, classify(b.schema, f.Type), depth)
}

func (b *builder) shapeField(f *schema.Field, s shape, depth int) *language.Field {
	switch s := s.(type) {
	case leafShape, enumShape:
		return leaf(f.Name)
	case listShape:
		return b.shapeField(f, s.elem, depth)
	case objectShape:
		return b.composite(f, b.Selection(s.typ, depth+1))
	case unionShape:
		return b.composite(f, b.Selection(s.typ, depth+1))
	}
	return nil
}

func (b *builder) composite(f *schema.Field, sel language.SelectionSet) *language.Field {
	if len(sel) == 0 {
		return nil
	}
	return &language.Field{
		Alias:        f.Name,
		Name:         f.Name,
		Arguments:    b.fieldArgs(f),
		SelectionSet: sel,
	}
}

func (b *builder) excluded(f *schema.Field) bool {
	return slices.Contains(b.opts.ExcludedTypes, f.Type.GetNamedType())
}

// identifierField picks documentId, then id. It returns "" if t has neither.
func identifierField(t *schema.Type) string {
	for _, name := range []string{"documentId", "id"} {
		if t.Field(name) != nil {
			return name
		}
	}
	return ""
}

func leaf(name string) *language.Field { return &language.Field{Alias: name, Name: name} }

func typename() *language.Field { return leaf("__typename") }
