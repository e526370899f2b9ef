package querygen

import (
	language "github.com/hanpama/graphsource/internal/language"
	schema "github.com/hanpama/graphsource/internal/schema"
)

// Argument and variable names understood by the synthesizer.
const (
	ArgPagination       = "pagination"
	ArgPublicationState = "publicationState"
	ArgLocale           = "locale"
	ArgFilters          = "filters"

	VarPagination       = "pagination"
	VarPublicationState = "publicationState"
	VarLocale           = "locale"
	VarUpdatedAt        = "updatedAt"
)

// Publication states.
const (
	PublicationLive    = "LIVE"
	PublicationPreview = "PREVIEW"
)

// EpochSentinel is the incremental filter value that matches every record.
const EpochSentinel = "1990-01-01T00:00:00.000Z"

// fieldArgs returns the argument clause of a nested composite field. A pagination
// argument gets a fixed large page, a publicationState argument is bound to
// $publicationState.
func (b *builder) fieldArgs(f *schema.Field) language.ArgumentList {
	var args language.ArgumentList
	if f.HasArgument(ArgPagination) {
		args = append(args, language.Arg(ArgPagination,
			language.Object(language.Child("limit", language.Int(b.opts.PageLimit)))))
	}
	if a := f.Argument(ArgPublicationState); a != nil {
		args = append(args, language.Arg(ArgPublicationState, language.VariableRef(VarPublicationState)))
		if b.publicationState == nil {
			b.publicationState = a.Type
		}
	}
	return args
}

// callable reports whether every required argument of f is one fieldArgs binds.
func callable(f *schema.Field) bool {
	for _, a := range f.Arguments {
		if !a.Type.IsNonNull() || a.DefaultValue != nil {
			continue
		}
		if a.Name != ArgPagination && a.Name != ArgPublicationState {
			return false
		}
	}
	return true
}

// astType converts a schema type reference into a variable definition type.
func astType(ref *schema.TypeRef) *language.Type {
	switch {
	case ref == nil:
		return nil
	case ref.Kind == schema.TypeRefKindNonNull:
		inner := astType(ref.OfType)
		if inner == nil {
			return nil
		}
		return language.NonNull(inner)
	case ref.Kind == schema.TypeRefKindList:
		inner := astType(ref.OfType)
		if inner == nil {
			return nil
		}
		return language.ListType(inner)
	default:
		return language.NamedType(ref.Named)
	}
}
