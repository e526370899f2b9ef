package querygen

import (
	"encoding/json"
	"errors"
	"maps"

	language "github.com/hanpama/graphsource/internal/language"
	schema "github.com/hanpama/graphsource/internal/schema"
)

var (
	// ErrSchemaResolution means the schema has no root Query type. Sourcing cannot proceed.
	ErrSchemaResolution = errors.New("querygen: root Query type not found in schema")
	// ErrNoOperations means no root field returns any configured content type.
	ErrNoOperations = errors.New("querygen: no root field matches a configured content type")
)

// Targets names the content types to source. Names are schema type names.
type Targets struct {
	CollectionTypes []string
	SingleTypes     []string
}

// Operation is one executable (root field, locale) pair. It is immutable after
// Synthesize returns it.
type Operation struct {
	Name           string
	Field          *schema.Field
	CollectionType string
	SingleType     string
	Locale         string

	// Wrapper is the response member holding the items ("nodes" or "data"). It is
	// empty when the root field returns the content type itself.
	Wrapper string
	// IDField is the identifier field the sync query selects.
	IDField string

	Document     *language.QueryDocument
	SyncDocument *language.QueryDocument
	Query        string
	SyncQuery    string

	// Variables holds the default value of every variable the full query declares.
	Variables map[string]any

	pageInfo     bool
	syncDeclared map[string]bool
}

func (o *Operation) TypeName() string {
	if o.CollectionType != "" {
		return o.CollectionType
	}
	return o.SingleType
}

func (o *Operation) IsCollection() bool { return o.CollectionType != "" }

// Accepts reports whether the full query declares the variable.
func (o *Operation) Accepts(variable string) bool {
	_, ok := o.Variables[variable]
	return ok
}

// Paginated reports whether the operation pages through results with $pagination
// and reports a page total.
func (o *Operation) Paginated() bool { return o.pageInfo && o.Accepts(VarPagination) }

// BindVariables returns a copy of the defaults with overrides applied. Overrides for
// variables the query does not declare are dropped.
func (o *Operation) BindVariables(overrides map[string]any) map[string]any {
	vars := maps.Clone(o.Variables)
	if vars == nil {
		vars = map[string]any{}
	}
	for k, v := range overrides {
		if _, ok := vars[k]; ok {
			vars[k] = v
		}
	}
	return vars
}

// SyncVariables derives sync query variables from bound full query variables. Only
// variables the sync query declares are kept, and the incremental filter is reset to
// EpochSentinel so every upstream record is listed.
func (o *Operation) SyncVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(o.syncDeclared))
	for k := range o.syncDeclared {
		if v, ok := vars[k]; ok {
			out[k] = v
		} else if v, ok := o.Variables[k]; ok {
			out[k] = v
		}
	}
	if o.syncDeclared[VarUpdatedAt] {
		out[VarUpdatedAt] = EpochSentinel
	}
	return out
}

// Page is one response of an operation, unwrapped.
type Page struct {
	Items    []map[string]any
	Total    int
	HasTotal bool
}

// Page extracts the items and page total from the data member of a response.
func (o *Operation) Page(data map[string]any) Page {
	var p Page
	root, _ := data[o.Field.Name].(map[string]any)
	if root == nil {
		return p
	}
	if o.Wrapper == "" {
		p.Items = []map[string]any{root}
		return p
	}
	switch items := root[o.Wrapper].(type) {
	case []any:
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				p.Items = append(p.Items, m)
			}
		}
	case map[string]any:
		p.Items = []map[string]any{items}
	}
	if info, ok := root["pageInfo"].(map[string]any); ok {
		p.Total, p.HasTotal = toInt(info["total"])
	}
	return p
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// Synthesize builds one Operation per matching root field and locale. An empty
// locale list yields one operation per field bound to the empty locale.
func Synthesize(s *schema.Schema, targets Targets, locales []string, opts ...Option) ([]*Operation, error) {
	o := newOptions(opts)
	query := s.GetQueryType()
	if query == nil {
		return nil, ErrSchemaResolution
	}
	if len(locales) == 0 {
		locales = []string{""}
	}

	collections := map[string]bool{}
	singles := map[string]bool{}
	for _, name := range targets.CollectionTypes {
		if s.Lookup(name) == nil {
			o.Logger.WarnOnce("missing-type:"+name, "content type not found in schema, skipping", "type", name)
			continue
		}
		collections[name] = true
	}
	for _, name := range targets.SingleTypes {
		if s.Lookup(name) == nil {
			o.Logger.WarnOnce("missing-type:"+name, "content type not found in schema, skipping", "type", name)
			continue
		}
		singles[name] = true
	}

	var ops []*Operation
	matched := map[string]bool{}
	for _, f := range query.Fields {
		m, ok := matchRootField(s, f, collections, singles)
		if !ok || !rootCallable(f) {
			continue
		}
		for _, locale := range locales {
			op := newOperation(s, o, f, m, locale)
			if op == nil {
				break
			}
			ops = append(ops, op)
			matched[m.typeName] = true
		}
	}
	for name := range collections {
		if !matched[name] {
			o.Logger.WarnOnce("no-root-field:"+name, "no root query field returns content type", "type", name)
		}
	}
	for name := range singles {
		if !matched[name] {
			o.Logger.WarnOnce("no-root-field:"+name, "no root query field returns content type", "type", name)
		}
	}
	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	return ops, nil
}

type rootMatch struct {
	typeName   string
	collection bool
	response   *schema.Type
	direct     bool // the field returns the content type itself
}

func matchRootField(s *schema.Schema, f *schema.Field, collections, singles map[string]bool) (rootMatch, bool) {
	if f.Type.IsList() {
		return rootMatch{}, false
	}
	named := f.Type.GetNamedType()
	if ct, ok := CollectionResponseType(named); ok && collections[ct] {
		return rootMatch{typeName: ct, collection: true, response: s.Lookup(named)}, true
	}
	if st, ok := SingleResponseType(named); ok && singles[st] {
		return rootMatch{typeName: st, response: s.Lookup(named)}, true
	}
	if singles[named] {
		return rootMatch{typeName: named, direct: true}, true
	}
	return rootMatch{}, false
}

// rootCallable reports whether every required argument of a root field is bound.
func rootCallable(f *schema.Field) bool {
	for _, a := range f.Arguments {
		if !a.Type.IsNonNull() || a.DefaultValue != nil {
			continue
		}
		switch a.Name {
		case ArgPagination, ArgPublicationState, ArgLocale:
		default:
			return false
		}
	}
	return true
}

func newOperation(s *schema.Schema, o *Options, f *schema.Field, m rootMatch, locale string) *Operation {
	content := s.Lookup(m.typeName)
	b := newBuilder(s, o)
	body := b.Selection(content, rootDepth)
	if len(body) == 0 {
		o.Logger.WarnOnce("empty-selection:"+m.typeName, "content type has no selectable fields, skipping", "type", m.typeName)
		return nil
	}

	op := &Operation{
		Name:      m.typeName + "Query",
		Field:     f,
		Locale:    locale,
		IDField:   identifierField(content),
		Variables: map[string]any{},
	}
	if op.IDField == "" {
		op.IDField = "documentId"
	}
	if m.collection {
		op.CollectionType = m.typeName
	} else {
		op.SingleType = m.typeName
	}
	if !m.direct {
		op.Wrapper = wrapperMember(m.response)
		op.pageInfo = m.collection && (m.response == nil || m.response.Field("pageInfo") != nil)
	}

	var (
		defs     language.VariableDefinitionList
		syncDefs language.VariableDefinitionList
		args     language.ArgumentList
	)
	op.syncDeclared = map[string]bool{}
	declare := func(name string, typ *language.Type, value any, sync bool) {
		def := &language.VariableDefinition{Variable: name, Type: typ}
		defs = append(defs, def)
		if sync {
			syncDefs = append(syncDefs, def)
			op.syncDeclared[name] = true
		}
		op.Variables[name] = value
	}

	if a := f.Argument(ArgPagination); a != nil && m.collection {
		declare(VarPagination, argType(a, "PaginationArg"), map[string]any{"start": 0, "limit": o.PageLimit}, true)
		args = append(args, language.Arg(ArgPagination, language.VariableRef(VarPagination)))
	}
	if a := f.Argument(ArgPublicationState); a != nil {
		declare(VarPublicationState, argType(a, "PublicationState"), PublicationLive, true)
		args = append(args, language.Arg(ArgPublicationState, language.VariableRef(VarPublicationState)))
	} else if b.publicationState != nil {
		declare(VarPublicationState, astType(b.publicationState), PublicationLive, false)
	}
	if a := f.Argument(ArgLocale); a != nil {
		declare(VarLocale, argType(a, "I18NLocaleCode"), locale, true)
		args = append(args, language.Arg(ArgLocale, language.VariableRef(VarLocale)))
	}
	if typ, ok := updatedAtFilterType(s, f); ok {
		declare(VarUpdatedAt, typ, EpochSentinel, true)
		args = append(args, language.Arg(ArgFilters, language.Object(
			language.Child("updatedAt", language.Object(
				language.Child("gt", language.VariableRef(VarUpdatedAt)))))))
	}

	syncBody := language.SelectionSet{leaf(op.IDField)}
	if op.IDField != "locale" && content.Field("locale") != nil {
		syncBody = append(syncBody, leaf("locale"))
	}
	full := body
	sync := syncBody
	if op.Wrapper != "" {
		full = language.SelectionSet{typename(), wrapped(op.Wrapper, body)}
		sync = language.SelectionSet{wrapped(op.Wrapper, syncBody)}
		if op.pageInfo {
			full = append(full, pageInfo())
			sync = append(sync, pageInfo())
		}
	}

	op.Document = document(op.Name, defs, f.Name, args, full)
	op.SyncDocument = document(op.Name, syncDefs, f.Name, args, sync)
	op.Query = language.Print(op.Document)
	op.SyncQuery = language.Print(op.SyncDocument)
	return op
}

// wrapperMember picks the response member that holds items.
func wrapperMember(resp *schema.Type) string {
	if resp != nil && resp.Field("nodes") == nil && resp.Field("data") != nil {
		return "data"
	}
	return "nodes"
}

func argType(a *schema.InputValue, fallback string) *language.Type {
	if t := astType(a.Type); t != nil {
		return t
	}
	return language.NamedType(fallback)
}

// updatedAtFilterType reports whether the root field's filters input exposes
// updatedAt, and the type of its gt comparison.
func updatedAtFilterType(s *schema.Schema, f *schema.Field) (*language.Type, bool) {
	a := f.Argument(ArgFilters)
	if a == nil {
		return nil, false
	}
	input := s.Lookup(a.Type.GetNamedType())
	updatedAt := input.InputField("updatedAt")
	if updatedAt == nil {
		return nil, false
	}
	if gt := s.Lookup(updatedAt.Type.GetNamedType()).InputField("gt"); gt != nil {
		return language.NamedType(gt.Type.GetNamedType()), true
	}
	return language.NamedType("DateTime"), true
}

func wrapped(name string, sel language.SelectionSet) *language.Field {
	return &language.Field{Alias: name, Name: name, SelectionSet: sel}
}

func pageInfo() *language.Field {
	return wrapped("pageInfo", language.SelectionSet{leaf("total")})
}

func document(name string, defs language.VariableDefinitionList, field string, args language.ArgumentList, body language.SelectionSet) *language.QueryDocument {
	return &language.QueryDocument{
		Operations: language.OperationList{{
			Operation:           language.Query,
			Name:                name,
			VariableDefinitions: defs,
			SelectionSet: language.SelectionSet{&language.Field{
				Alias:        field,
				Name:         field,
				Arguments:    args,
				SelectionSet: body,
			}},
		}},
	}
}
