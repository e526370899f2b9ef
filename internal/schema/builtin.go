package schema

var stringType = &Type{
	Name:        "String",
	Kind:        TypeKindScalar,
	Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
}

var intType = &Type{
	Name:        "Int",
	Kind:        TypeKindScalar,
	Description: "The `Int` scalar type represents non-fractional signed whole numeric values.",
}

var floatType = &Type{
	Name:        "Float",
	Kind:        TypeKindScalar,
	Description: "The `Float` scalar type represents signed double-precision fractional values.",
}

var booleanType = &Type{
	Name:        "Boolean",
	Kind:        TypeKindScalar,
	Description: "The `Boolean` scalar type represents `true` or `false`.",
}

var idType = &Type{
	Name:        "ID",
	Kind:        TypeKindScalar,
	Description: "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
}

var builtinScalars = []*Type{stringType, intType, floatType, booleanType, idType}

// IsBuiltinScalar reports whether name is one of the five scalars every GraphQL
// server provides.
func IsBuiltinScalar(name string) bool {
	for _, t := range builtinScalars {
		if t.Name == name {
			return true
		}
	}
	return false
}

// AddBuiltins registers the builtin scalars that are missing from s. Some servers
// omit unused scalars from their introspection output.
func (s *Schema) AddBuiltins() *Schema {
	for _, t := range builtinScalars {
		if _, ok := s.Types[t.Name]; !ok {
			s.AddType(t)
		}
	}
	return s
}

func isBuiltin(t *Type) bool {
	for _, b := range builtinScalars {
		if b == t {
			return true
		}
	}
	return false
}
