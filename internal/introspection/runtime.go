package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/foyez/graphql/internal/executor"
	resolver "github.com/foyez/graphql/internal/resolver"
	schema "github.com/foyez/graphql/internal/schema"
)

// IntrospectionWrapper holds both the runtime and extended schema
type IntrospectionWrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a Runtime answering __schema, __type and the fields of the
// introspection types, and delegating everything else to base. The returned
// schema is a copy of sch declaring those types.
func Wrap(base executor.Runtime, sch *schema.Schema) *IntrospectionWrapper {
	r := &runtime{
		base:     base,
		schema:   sch,
		extended: extend(sch),
		table:    resolver.NewTable(),
	}
	r.register()
	return &IntrospectionWrapper{Runtime: r, Schema: r.extended}
}

type runtime struct {
	base executor.Runtime
	// schema is what introspection describes; extended is what the executor
	// validates requests against.
	schema   *schema.Schema
	extended *schema.Schema
	table    *resolver.Table
}

func (r *runtime) ResolveField(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if strings.HasPrefix(objectType, "__") || (objectType == r.extended.QueryType && strings.HasPrefix(field, "__")) {
		if e, ok := r.table.Lookup(objectType, field); ok {
			return e.Resolve(ctx, source, args)
		}
	}
	return r.base.ResolveField(ctx, objectType, field, source, args)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if s, ok := value.(*string); ok {
		if s == nil {
			return nil, nil
		}
		value = *s
	}
	if strings.HasPrefix(typ, "__") {
		name, ok := value.(string)
		if t := r.extended.Types[typ]; !ok || t == nil || !t.HasEnumValue(name) {
			return nil, fmt.Errorf("enum %s cannot represent %v", typ, value)
		}
		return name, nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

// field adapts a resolver that needs neither context nor error.
func field[S any](fn func(src S, args map[string]any) any) resolver.Func {
	return func(_ context.Context, source any, args map[string]any) (any, error) {
		src, ok := source.(S)
		if !ok {
			return nil, fmt.Errorf("introspection: unexpected source %T", source)
		}
		return fn(src, args), nil
	}
}

func (r *runtime) register() {
	sch := r.schema
	reg := func(objectType, name string, fn resolver.Func) {
		// names are static and unique
		_ = r.table.Register(objectType, name, fn)
	}

	reg(r.extended.QueryType, "__schema", func(context.Context, any, map[string]any) (any, error) {
		return sch, nil
	})
	reg(r.extended.QueryType, "__type", func(_ context.Context, _ any, args map[string]any) (any, error) {
		name, _ := args["name"].(string)
		if t := sch.Types[name]; t != nil {
			return t, nil
		}
		return nil, nil
	})

	reg("__Schema", "description", field(func(s *schema.Schema, _ map[string]any) any { return s.Description }))
	reg("__Schema", "types", field(func(s *schema.Schema, _ map[string]any) any { return sortedTypes(s) }))
	reg("__Schema", "queryType", field(func(s *schema.Schema, _ map[string]any) any { return s.GetQueryType() }))
	reg("__Schema", "mutationType", field(func(s *schema.Schema, _ map[string]any) any { return s.GetMutationType() }))
	reg("__Schema", "subscriptionType", field(func(s *schema.Schema, _ map[string]any) any { return s.GetSubscriptionType() }))
	reg("__Schema", "directives", field(func(s *schema.Schema, _ map[string]any) any { return sortedDirectives(s) }))

	for name, fn := range map[string]func(typeView, map[string]any) any{
		"kind":           typeView.kind,
		"name":           typeView.name,
		"ofType":         typeView.ofType,
		"description":    func(v typeView, _ map[string]any) any { return v.def.Description },
		"specifiedByURL": func(v typeView, _ map[string]any) any { return v.def.SpecifiedByURL },
		"isOneOf":        func(v typeView, _ map[string]any) any { return v.def.OneOf },
		"fields":         typeView.fields,
		"interfaces":     typeView.interfaces,
		"possibleTypes":  typeView.possibleTypes,
		"enumValues":     typeView.enumValues,
		"inputFields":    typeView.inputFields,
	} {
		reg("__Type", name, r.typeField(fn))
	}

	reg("__Field", "name", field(func(f *schema.Field, _ map[string]any) any { return f.Name }))
	reg("__Field", "description", field(func(f *schema.Field, _ map[string]any) any { return f.Description }))
	reg("__Field", "args", field(func(f *schema.Field, args map[string]any) any { return inputValues(f.Arguments, args, false) }))
	reg("__Field", "type", field(func(f *schema.Field, _ map[string]any) any { return f.Type }))
	reg("__Field", "isDeprecated", field(func(f *schema.Field, _ map[string]any) any { return f.IsDeprecated }))
	reg("__Field", "deprecationReason", field(func(f *schema.Field, _ map[string]any) any {
		return reason(f.IsDeprecated, f.DeprecationReason)
	}))

	reg("__InputValue", "name", field(func(a *schema.InputValue, _ map[string]any) any { return a.Name }))
	reg("__InputValue", "description", field(func(a *schema.InputValue, _ map[string]any) any { return a.Description }))
	reg("__InputValue", "type", field(func(a *schema.InputValue, _ map[string]any) any { return a.Type }))
	reg("__InputValue", "defaultValue", field(func(a *schema.InputValue, _ map[string]any) any {
		if a.DefaultValue == nil {
			return nil
		}
		return schema.RenderValue(a.DefaultValue)
	}))
	reg("__InputValue", "isDeprecated", field(func(a *schema.InputValue, _ map[string]any) any { return a.IsDeprecated }))
	reg("__InputValue", "deprecationReason", field(func(a *schema.InputValue, _ map[string]any) any {
		return reason(a.IsDeprecated, a.DeprecationReason)
	}))

	reg("__EnumValue", "name", field(func(ev *schema.EnumValue, _ map[string]any) any { return ev.Name }))
	reg("__EnumValue", "description", field(func(ev *schema.EnumValue, _ map[string]any) any { return ev.Description }))
	reg("__EnumValue", "isDeprecated", field(func(ev *schema.EnumValue, _ map[string]any) any { return ev.IsDeprecated }))
	reg("__EnumValue", "deprecationReason", field(func(ev *schema.EnumValue, _ map[string]any) any {
		return reason(ev.IsDeprecated, ev.DeprecationReason)
	}))

	reg("__Directive", "name", field(func(d *schema.Directive, _ map[string]any) any { return d.Name }))
	reg("__Directive", "description", field(func(d *schema.Directive, _ map[string]any) any { return d.Description }))
	reg("__Directive", "isRepeatable", field(func(d *schema.Directive, _ map[string]any) any { return d.IsRepeatable }))
	reg("__Directive", "locations", field(func(d *schema.Directive, _ map[string]any) any {
		locs := append([]string{}, d.Locations...)
		sort.Strings(locs)
		return locs
	}))
	reg("__Directive", "args", field(func(d *schema.Directive, args map[string]any) any {
		return inputValues(d.Arguments, args, true)
	}))
}

// typeView is a __Type source: either a named type or a wrapping reference.
// def is the named type behind ref and may be nil for dangling names.
type typeView struct {
	ref *schema.TypeRef
	def *schema.Type
}

func (r *runtime) typeField(fn func(typeView, map[string]any) any) resolver.Func {
	return func(_ context.Context, source any, args map[string]any) (any, error) {
		var v typeView
		switch src := source.(type) {
		case *schema.Type:
			v = typeView{ref: schema.NamedType(src.Name), def: src}
		case *schema.TypeRef:
			v = typeView{ref: src}
			if src.Kind == schema.TypeRefKindNamed {
				v.def = r.schema.Types[src.Named]
			}
		default:
			return nil, fmt.Errorf("introspection: unexpected __Type source %T", source)
		}
		if v.def == nil {
			// wrappers and unknown names describe no definition
			v.def = &schema.Type{Name: v.ref.Named}
		}
		return fn(v, args), nil
	}
}

func (v typeView) wrapper() bool {
	return v.ref.Kind == schema.TypeRefKindNonNull || v.ref.Kind == schema.TypeRefKindList
}

func (v typeView) kind(map[string]any) any {
	switch v.ref.Kind {
	case schema.TypeRefKindNonNull:
		return "NON_NULL"
	case schema.TypeRefKindList:
		return "LIST"
	}
	if v.def.Kind == "" {
		return nil
	}
	return string(v.def.Kind)
}

func (v typeView) name(map[string]any) any {
	if v.wrapper() {
		return nil
	}
	return v.ref.Named
}

func (v typeView) ofType(map[string]any) any {
	if v.wrapper() {
		return v.ref.OfType
	}
	return nil
}

// definition returns the named type for non-wrapper views.
func (v typeView) definition() *schema.Type {
	if v.wrapper() {
		return nil
	}
	return v.def
}

func (v typeView) fields(args map[string]any) any {
	t := v.definition()
	if t == nil || (t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface) {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.Field{}
	for _, f := range t.Fields {
		if strings.HasPrefix(f.Name, "__") || (!includeDeprecated && f.IsDeprecated) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (v typeView) interfaces(map[string]any) any {
	t := v.definition()
	if t == nil || (t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface) {
		return nil
	}
	return v.lookup(t.Interfaces)
}

func (v typeView) possibleTypes(map[string]any) any {
	t := v.definition()
	if t == nil || (t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion) {
		return nil
	}
	return v.lookup(t.PossibleTypes)
}

// lookup returns named references sorted by name.
func (v typeView) lookup(names []string) []*schema.TypeRef {
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	out := make([]*schema.TypeRef, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, schema.NamedType(n))
	}
	return out
}

func (v typeView) enumValues(args map[string]any) any {
	t := v.definition()
	if t == nil || t.Kind != schema.TypeKindEnum {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.EnumValue{}
	for _, ev := range t.EnumValues {
		if includeDeprecated || !ev.IsDeprecated {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (v typeView) inputFields(args map[string]any) any {
	t := v.definition()
	if t == nil || t.Kind != schema.TypeKindInputObject {
		return nil
	}
	return inputValues(t.InputFields, args, false)
}

func inputValues(values []*schema.InputValue, args map[string]any, sorted bool) []*schema.InputValue {
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.InputValue{}
	for _, a := range values {
		if includeDeprecated || !a.IsDeprecated {
			out = append(out, a)
		}
	}
	if sorted {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out
}

func reason(deprecated bool, why string) any {
	if deprecated {
		return why
	}
	return nil
}

func sortedTypes(sch *schema.Schema) []*schema.Type {
	out := make([]*schema.Type, 0, len(sch.Types))
	for _, t := range sch.Types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedDirectives(sch *schema.Schema) []*schema.Directive {
	out := make([]*schema.Directive, 0, len(sch.Directives))
	for _, d := range sch.Directives {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func boolArg(args map[string]any, name string, def bool) bool {
	if b, ok := args[name].(bool); ok {
		return b
	}
	return def
}
