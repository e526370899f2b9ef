package schema

// NewSchema returns an empty schema rooted at queryType.
func NewSchema(queryType string) *Schema {
	return &Schema{
		QueryType:  queryType,
		Types:      make(map[string]*Type),
		Directives: make(map[string]*Directive),
	}
}

func (s *Schema) SetQueryType(name string) *Schema    { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema { s.MutationType = name; return s }
func (s *Schema) SetSubscriptionType(name string) *Schema {
	s.SubscriptionType = name
	return s
}

// AddType registers t, replacing any type with the same name.
func (s *Schema) AddType(t *Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	s.Types[t.Name] = t
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	if s.Directives == nil {
		s.Directives = make(map[string]*Directive)
	}
	s.Directives[d.Name] = d
	return s
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

// Object is shorthand for an OBJECT type holding fields.
func Object(name string, fields ...*Field) *Type {
	return NewType(name, TypeKindObject, "").AddFields(fields...)
}

// Union is shorthand for a UNION type over the named members.
func Union(name string, members ...string) *Type {
	t := NewType(name, TypeKindUnion, "")
	for _, m := range members {
		t.AddPossibleType(m)
	}
	return t
}

// Enum is shorthand for an ENUM type with the given values.
func Enum(name string, values ...string) *Type {
	t := NewType(name, TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(NewEnumValue(v, ""))
	}
	return t
}

// Scalar is shorthand for a custom SCALAR type.
func Scalar(name string) *Type { return NewType(name, TypeKindScalar, "") }

// Input is shorthand for an INPUT_OBJECT type.
func Input(name string, fields ...*InputValue) *Type {
	t := NewType(name, TypeKindInputObject, "")
	for _, f := range fields {
		t.AddInputField(f)
	}
	return t
}

func (t *Type) AddField(f *Field) *Type { t.Fields = append(t.Fields, f); return t }

func (t *Type) AddFields(fs ...*Field) *Type {
	t.Fields = append(t.Fields, fs...)
	return t
}

func (t *Type) AddInterface(name string) *Type    { t.Interfaces = append(t.Interfaces, name); return t }
func (t *Type) AddPossibleType(name string) *Type { t.PossibleTypes = append(t.PossibleTypes, name); return t }
func (t *Type) AddEnumValue(v *EnumValue) *Type   { t.EnumValues = append(t.EnumValues, v); return t }
func (t *Type) AddInputField(v *InputValue) *Type { t.InputFields = append(t.InputFields, v); return t }

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) AddArgument(v *InputValue) *Field { f.Arguments = append(f.Arguments, v); return f }

// WithArgs appends the given arguments and returns f.
func (f *Field) WithArgs(args ...*InputValue) *Field {
	f.Arguments = append(f.Arguments, args...)
	return f
}

func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewEnumValue(name, description string) *EnumValue {
	return &EnumValue{Name: name, Description: description}
}

func (e *EnumValue) Deprecate(reason string) *EnumValue {
	e.IsDeprecated = true
	e.DeprecationReason = reason
	return e
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(value any) *InputValue { v.DefaultValue = value; return v }

func (v *InputValue) Deprecate(reason string) *InputValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewDirective(name, description string) *Directive {
	return &Directive{Name: name, Description: description}
}

func (d *Directive) SetRepeatable(r bool) *Directive      { d.IsRepeatable = r; return d }
func (d *Directive) AddArgument(v *InputValue) *Directive { d.Arguments = append(d.Arguments, v); return d }
