package introspection

import (
	"encoding/json"
	"errors"
	"fmt"

	schema "github.com/hanpama/graphsource/internal/schema"
)

// ErrNoSchema is returned when a response carries no `__schema` member.
var ErrNoSchema = errors.New("introspection: response has no __schema")

// Decode parses the JSON `data` member of an introspection response.
func Decode(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("introspection: decode: %w", err)
	}
	return &d, nil
}

// BuildSchema converts an introspection result into the type graph index.
func BuildSchema(d *Data) (*schema.Schema, error) {
	if d == nil || d.Schema == nil {
		return nil, ErrNoSchema
	}
	res := d.Schema
	s := schema.NewSchema("Query")
	if res.QueryType != nil && res.QueryType.Name != "" {
		s.SetQueryType(res.QueryType.Name)
	}
	if res.MutationType != nil {
		s.SetMutationType(res.MutationType.Name)
	}
	if res.SubscriptionType != nil {
		s.SetSubscriptionType(res.SubscriptionType.Name)
	}

	for i := range res.Types {
		ft := &res.Types[i]
		if ft.Name == "" {
			continue
		}
		s.AddType(buildType(ft))
	}
	for i := range res.Directives {
		d := &res.Directives[i]
		dir := schema.NewDirective(d.Name, deref(d.Description)).SetRepeatable(d.IsRepeatable)
		dir.Locations = append(dir.Locations, d.Locations...)
		for j := range d.Args {
			dir.AddArgument(buildInputValue(&d.Args[j]))
		}
		s.AddDirective(dir)
	}
	return s.AddBuiltins(), nil
}

func buildType(ft *FullType) *schema.Type {
	t := schema.NewType(ft.Name, schema.TypeKind(ft.Kind), deref(ft.Description))
	for i := range ft.Fields {
		f := &ft.Fields[i]
		field := schema.NewField(f.Name, deref(f.Description), buildTypeRef(&f.Type))
		if f.IsDeprecated {
			field.Deprecate(deref(f.DeprecationReason))
		}
		for j := range f.Args {
			field.AddArgument(buildInputValue(&f.Args[j]))
		}
		t.AddField(field)
	}
	for i := range ft.InputFields {
		t.AddInputField(buildInputValue(&ft.InputFields[i]))
	}
	for _, iface := range ft.Interfaces {
		if iface.Name != nil {
			t.AddInterface(*iface.Name)
		}
	}
	for _, pt := range ft.PossibleTypes {
		if pt.Name != nil {
			t.AddPossibleType(*pt.Name)
		}
	}
	for _, ev := range ft.EnumValues {
		v := schema.NewEnumValue(ev.Name, deref(ev.Description))
		if ev.IsDeprecated {
			v.Deprecate(deref(ev.DeprecationReason))
		}
		t.AddEnumValue(v)
	}
	return t
}

func buildInputValue(v *InputValue) *schema.InputValue {
	in := schema.NewInputValue(v.Name, deref(v.Description), buildTypeRef(&v.Type))
	if v.DefaultValue != nil {
		in.SetDefault(schema.Literal(*v.DefaultValue))
	}
	return in
}

// buildTypeRef maps the introspection wrapper chain onto schema.TypeRef. The
// innermost named kind is dropped; it is recovered through the index by name.
func buildTypeRef(r *TypeRef) *schema.TypeRef {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case "NON_NULL":
		return schema.NonNullType(buildTypeRef(r.OfType))
	case "LIST":
		return schema.ListType(buildTypeRef(r.OfType))
	default:
		return schema.NamedType(deref(r.Name))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
