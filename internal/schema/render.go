package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Literal is a default value already in GraphQL literal notation, as reported by
// introspection (`defaultValue: "{limit: 10}"`). It renders verbatim.
type Literal string

var specDirectives = map[string]bool{"include": true, "skip": true, "deprecated": true, "specifiedBy": true, "oneOf": true}

// Render produces SDL for the remote types in s. Builtin scalars, introspection
// types (`__*`) and built-in directives are omitted. Types and directives are sorted by name.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder

	typeNames := make([]string, 0, len(s.Types))
	for name, typ := range s.Types {
		if isBuiltin(typ) || IsBuiltinScalar(name) || strings.HasPrefix(name, "__") {
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		typ := s.Types[name]
		renderDescription(&b, "", typ.Description)
		switch typ.Kind {
		case TypeKindScalar:
			fmt.Fprintf(&b, "scalar %s\n\n", typ.Name)
		case TypeKindEnum:
			fmt.Fprintf(&b, "enum %s {\n", typ.Name)
			for _, val := range typ.EnumValues {
				renderDescription(&b, "  ", val.Description)
				b.WriteString("  " + val.Name)
				renderDeprecated(&b, val.IsDeprecated, val.DeprecationReason)
				b.WriteString("\n")
			}
			b.WriteString("}\n\n")
		case TypeKindInputObject:
			fmt.Fprintf(&b, "input %s {\n", typ.Name)
			for _, field := range typ.InputFields {
				renderDescription(&b, "  ", field.Description)
				b.WriteString("  " + renderInputValue(field))
				renderDeprecated(&b, field.IsDeprecated, field.DeprecationReason)
				b.WriteString("\n")
			}
			b.WriteString("}\n\n")
		case TypeKindObject, TypeKindInterface:
			keyword := "type"
			if typ.Kind == TypeKindInterface {
				keyword = "interface"
			}
			b.WriteString(keyword + " " + typ.Name)
			if len(typ.Interfaces) > 0 {
				b.WriteString(" implements " + strings.Join(typ.Interfaces, " & "))
			}
			b.WriteString(" {\n")
			for _, field := range typ.Fields {
				renderField(&b, field)
			}
			b.WriteString("}\n\n")
		case TypeKindUnion:
			fmt.Fprintf(&b, "union %s = %s\n\n", typ.Name, strings.Join(typ.PossibleTypes, " | "))
		}
	}

	directiveNames := make([]string, 0, len(s.Directives))
	for name := range s.Directives {
		if !specDirectives[name] {
			directiveNames = append(directiveNames, name)
		}
	}
	sort.Strings(directiveNames)
	for _, name := range directiveNames {
		d := s.Directives[name]
		renderDescription(&b, "", d.Description)
		b.WriteString("directive @" + d.Name + renderArguments(d.Arguments))
		if d.IsRepeatable {
			b.WriteString(" repeatable")
		}
		b.WriteString(" on " + strings.Join(d.Locations, " | ") + "\n\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderDescription(b *strings.Builder, indent, desc string) {
	if desc == "" {
		return
	}
	b.WriteString(indent + "\"\"\"\n")
	b.WriteString(indent + strings.ReplaceAll(desc, "\"\"\"", "\\\"\"\"") + "\n")
	b.WriteString(indent + "\"\"\"\n")
}

func renderDeprecated(b *strings.Builder, deprecated bool, reason string) {
	if !deprecated {
		return
	}
	b.WriteString(" @deprecated")
	if reason != "" {
		b.WriteString("(reason: " + strconv.Quote(reason) + ")")
	}
}

func renderField(b *strings.Builder, field *Field) {
	renderDescription(b, "  ", field.Description)
	b.WriteString("  " + field.Name + renderArguments(field.Arguments) + ": " + renderTypeRef(field.Type))
	renderDeprecated(b, field.IsDeprecated, field.DeprecationReason)
	b.WriteString("\n")
}

func renderArguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = renderInputValue(arg)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderInputValue(v *InputValue) string {
	out := v.Name + ": " + renderTypeRef(v.Type)
	if v.DefaultValue != nil {
		out += " = " + renderValue(v.DefaultValue)
	}
	return out
}

func renderTypeRef(typeRef *TypeRef) string {
	if typeRef == nil {
		return ""
	}
	switch typeRef.Kind {
	case TypeRefKindNamed:
		return typeRef.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(typeRef.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(typeRef.OfType) + "!"
	default:
		return ""
	}
}

// renderValue renders a GraphQL value (for default values, directive arguments, etc.)
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case Literal:
		return string(v)
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
