package schema

import (
	"sort"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	language "github.com/foyez/graphql/internal/language"
)

// Builder assembles a Schema at startup. Registration methods fail fast on
// duplicates; Build reports every violation seen plus dangling references.
// A Builder is not safe for concurrent use.
type Builder struct {
	schema     *Schema
	violations gqlerr.SchemaError
}

func NewBuilder(description string) *Builder {
	return &Builder{schema: NewSchema(description)}
}

func (b *Builder) fail(v *gqlerr.Violation) error {
	b.violations = append(b.violations, v)
	return gqlerr.SchemaError{v}
}

// SetRoots names the root operation types. Empty names are left unchanged.
func (b *Builder) SetRoots(query, mutation, subscription string) {
	if query != "" {
		b.schema.QueryType = query
	}
	if mutation != "" {
		b.schema.MutationType = mutation
	}
	if subscription != "" {
		b.schema.SubscriptionType = subscription
	}
}

// RegisterType adds a named type. Builtin scalars may be redeclared.
func (b *Builder) RegisterType(t *Type) error {
	if t == nil || t.Name == "" {
		return b.fail(gqlerr.Violationf("type without a name"))
	}
	if existing, ok := b.schema.Types[t.Name]; ok && !IsBuiltinType(existing) {
		return b.fail(gqlerr.Violationf("type %q is registered twice", t.Name))
	}
	seen := map[string]bool{}
	for _, f := range t.Fields {
		if seen[f.Name] {
			return b.fail(gqlerr.Violationf("field %s.%s is registered twice", t.Name, f.Name))
		}
		seen[f.Name] = true
	}
	b.schema.Types[t.Name] = t
	return nil
}

// RegisterField appends a field to an already registered object or
// interface type.
func (b *Builder) RegisterField(typeName string, f *Field) error {
	t, ok := b.schema.Types[typeName]
	if !ok {
		return b.fail(gqlerr.Violationf("cannot add field %q to unknown type %q", f.Name, typeName))
	}
	if t.Kind != TypeKindObject && t.Kind != TypeKindInterface {
		return b.fail(gqlerr.Violationf("cannot add field %q to %s type %q", f.Name, t.Kind, typeName))
	}
	if t.Field(f.Name) != nil {
		return b.fail(gqlerr.Violationf("field %s.%s is registered twice", typeName, f.Name))
	}
	t.AddField(f)
	return nil
}

// RegisterDirective adds a directive definition. Builtin directives may be
// redeclared.
func (b *Builder) RegisterDirective(d *Directive) error {
	if existing, ok := b.schema.Directives[d.Name]; ok && !IsBuiltinDirective(existing) {
		return b.fail(gqlerr.Violationf("directive @%s is registered twice", d.Name))
	}
	b.schema.Directives[d.Name] = d
	return nil
}

// Schema returns the schema under construction.
func (b *Builder) Schema() *Schema { return b.schema }

// Build validates the graph and returns it. On failure no schema is returned.
func (b *Builder) Build() (*Schema, error) {
	s := b.schema
	if s.QueryType == "" {
		if _, ok := s.Types["Query"]; ok {
			s.QueryType = "Query"
		}
	}
	if s.MutationType == "" {
		if _, ok := s.Types["Mutation"]; ok {
			s.MutationType = "Mutation"
		}
	}
	if s.SubscriptionType == "" {
		if _, ok := s.Types["Subscription"]; ok {
			s.SubscriptionType = "Subscription"
		}
	}
	linkPossibleTypes(s)
	applyDirectiveDefaults(s)

	violations := append(gqlerr.SchemaError{}, b.violations...)
	violations = append(violations, Validate(s)...)
	if len(violations) > 0 {
		return nil, violations
	}
	return s, nil
}

// linkPossibleTypes records each object under the interfaces it implements.
func linkPossibleTypes(s *Schema) {
	for _, name := range sortedTypeNames(s) {
		t := s.Types[name]
		if t.Kind != TypeKindObject {
			continue
		}
		for _, iface := range t.Interfaces {
			it := s.Types[iface]
			if it == nil || it.Kind != TypeKindInterface || contains(it.PossibleTypes, t.Name) {
				continue
			}
			it.PossibleTypes = append(it.PossibleTypes, t.Name)
		}
	}
}

// applyDirectiveDefaults fills each directive use with the defaults its
// definition declares for arguments the use leaves out.
func applyDirectiveDefaults(s *Schema) {
	for _, t := range s.Types {
		for _, f := range t.Fields {
			for _, use := range f.Directives {
				d := s.Directives[use.Name]
				if d == nil {
					continue
				}
				var args map[string]any
				for _, arg := range d.Arguments {
					if arg.DefaultValue == nil {
						continue
					}
					if _, ok := use.Arguments[arg.Name]; ok {
						continue
					}
					if args == nil {
						args = make(map[string]any, len(use.Arguments)+1)
						for k, v := range use.Arguments {
							args[k] = v
						}
					}
					args[arg.Name] = arg.DefaultValue
				}
				if args != nil {
					use.Arguments = args
				}
			}
		}
	}
}

// Validate returns a violation for every dangling type or directive
// reference in s.
func Validate(s *Schema) gqlerr.SchemaError {
	var out gqlerr.SchemaError
	add := func(format string, args ...any) { out = append(out, gqlerr.Violationf(format, args...)) }

	checkRoot := func(kind, name string, required bool) {
		if name == "" {
			if required {
				add("schema has no %s root type", kind)
			}
			return
		}
		t := s.Types[name]
		if t == nil {
			add("%s root type %q is not defined", kind, name)
		} else if t.Kind != TypeKindObject {
			add("%s root type %q must be an object type", kind, name)
		}
	}
	checkRoot("query", s.QueryType, true)
	checkRoot("mutation", s.MutationType, false)
	checkRoot("subscription", s.SubscriptionType, false)

	checkInput := func(owner string, v *InputValue) {
		name := GetNamedType(v.Type)
		t := s.Types[name]
		if t == nil {
			add("%s: unknown type %q", owner, name)
		} else if !t.Kind.IsInputKind() {
			add("%s: %s type %q cannot be used as input", owner, t.Kind, name)
		}
	}

	for _, name := range sortedTypeNames(s) {
		t := s.Types[name]
		switch t.Kind {
		case TypeKindObject, TypeKindInterface:
			if len(t.Fields) == 0 {
				add("type %q must define at least one field", t.Name)
			}
			for _, iface := range t.Interfaces {
				it := s.Types[iface]
				if it == nil {
					add("type %q implements unknown interface %q", t.Name, iface)
				} else if it.Kind != TypeKindInterface {
					add("type %q implements %q which is not an interface", t.Name, iface)
				}
			}
			for _, f := range t.Fields {
				owner := t.Name + "." + f.Name
				resultName := GetNamedType(f.Type)
				rt := s.Types[resultName]
				if rt == nil {
					add("%s: unknown type %q", owner, resultName)
				} else if rt.Kind == TypeKindInputObject {
					add("%s: input type %q cannot be used as output", owner, resultName)
				}
				for _, arg := range f.Arguments {
					checkInput(owner+"("+arg.Name+":)", arg)
				}
				for _, use := range f.Directives {
					if _, ok := s.Directives[use.Name]; !ok {
						add("%s: unknown directive @%s", owner, use.Name)
					}
				}
			}
		case TypeKindUnion:
			for _, member := range t.PossibleTypes {
				mt := s.Types[member]
				if mt == nil {
					add("union %q: unknown member type %q", t.Name, member)
				} else if mt.Kind != TypeKindObject {
					add("union %q: member %q is not an object type", t.Name, member)
				}
			}
		case TypeKindInputObject:
			for _, f := range t.InputFields {
				checkInput(t.Name+"."+f.Name, f)
			}
		}
	}

	dirNames := make([]string, 0, len(s.Directives))
	for name := range s.Directives {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		for _, arg := range s.Directives[name].Arguments {
			checkInput("@"+name+"("+arg.Name+":)", arg)
		}
	}
	return out
}

// BuildFromSDL parses SDL and returns the corresponding Schema.
func BuildFromSDL(sdl string) (*Schema, error) {
	b := NewBuilder("")
	if err := b.LoadSDL("schema.graphql", sdl); err != nil {
		return nil, err
	}
	return b.Build()
}

// LoadSDL registers every definition of an SDL document. Type extensions are
// merged into their base types.
func (b *Builder) LoadSDL(name, sdl string) error {
	doc, err := language.ParseSchema(name, sdl)
	if err != nil {
		return err
	}
	for _, sd := range doc.Schema {
		b.loadRoots(sd)
		if sd.Description != "" {
			b.schema.Description = sd.Description
		}
	}
	for _, sd := range doc.SchemaExtension {
		b.loadRoots(sd)
	}
	for _, dd := range doc.Directives {
		if err := b.RegisterDirective(buildDirective(dd)); err != nil {
			return b.located(err, dd.Position)
		}
	}
	for _, def := range doc.Definitions {
		if err := b.RegisterType(buildDefinition(def)); err != nil {
			return b.located(err, def.Position)
		}
	}
	for _, ext := range doc.Extensions {
		if err := b.extend(ext); err != nil {
			return b.located(err, ext.Position)
		}
	}
	return nil
}

// located attaches an SDL position to the most recent violation.
func (b *Builder) located(err error, pos *language.Position) error {
	if len(b.violations) == 0 || pos == nil {
		return err
	}
	last := b.violations[len(b.violations)-1]
	located := gqlerr.ViolationAt(pos, "%s", last.Message)
	b.violations[len(b.violations)-1] = located
	return gqlerr.SchemaError{located}
}

func (b *Builder) loadRoots(sd *language.SchemaDefinition) {
	for _, op := range sd.OperationTypes {
		switch op.Operation {
		case language.Query:
			b.schema.QueryType = op.Type
		case language.Mutation:
			b.schema.MutationType = op.Type
		case language.Subscription:
			b.schema.SubscriptionType = op.Type
		}
	}
}

func (b *Builder) extend(ext *language.Definition) error {
	t, ok := b.schema.Types[ext.Name]
	if !ok {
		return b.fail(gqlerr.Violationf("cannot extend unknown type %q", ext.Name))
	}
	built := buildDefinition(ext)
	switch t.Kind {
	case TypeKindObject, TypeKindInterface:
		for _, f := range built.Fields {
			if err := b.RegisterField(ext.Name, f); err != nil {
				return err
			}
		}
		t.Interfaces = append(t.Interfaces, built.Interfaces...)
	case TypeKindEnum:
		t.EnumValues = append(t.EnumValues, built.EnumValues...)
	case TypeKindInputObject:
		t.InputFields = append(t.InputFields, built.InputFields...)
	case TypeKindUnion:
		t.PossibleTypes = append(t.PossibleTypes, built.PossibleTypes...)
	}
	return nil
}

func buildDefinition(def *language.Definition) *Type {
	switch def.Kind {
	case language.Object, language.Interface:
		kind := TypeKindObject
		if def.Kind == language.Interface {
			kind = TypeKindInterface
		}
		t := NewType(def.Name, kind, def.Description)
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		for _, fd := range def.Fields {
			t.AddField(buildField(fd))
		}
		return t
	case language.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
		return t
	case language.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, ev := range def.EnumValues {
			v := NewEnumValue(ev.Name, ev.Description)
			if d := ev.Directives.ForName(deprecatedDirective.Name); d != nil {
				v.Deprecate(deprecationReason(d))
			}
			t.AddEnumValue(v)
		}
		return t
	case language.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description).
			SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, fd := range def.Fields {
			v := NewInputValue(fd.Name, fd.Description, buildTypeRef(fd.Type)).
				SetDefault(language.ValueOf(fd.DefaultValue))
			if d := fd.Directives.ForName(deprecatedDirective.Name); d != nil {
				v.Deprecate(deprecationReason(d))
			}
			t.AddInputField(v)
		}
		return t
	default:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if url, ok := directiveArgs(d)["url"].(string); ok {
				t.SpecifiedByURL = &url
			}
		}
		return t
	}
}

func buildField(fd *language.FieldDefinition) *Field {
	f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type))
	for _, arg := range fd.Arguments {
		f.AddArgument(buildArgument(arg))
	}
	for _, d := range fd.Directives {
		f.Use(d.Name, directiveArgs(d))
	}
	if d := fd.Directives.ForName(deprecatedDirective.Name); d != nil {
		f.Deprecate(deprecationReason(d))
	}
	return f
}

func buildArgument(arg *language.ArgumentDefinition) *InputValue {
	v := NewInputValue(arg.Name, arg.Description, buildTypeRef(arg.Type)).
		SetDefault(language.ValueOf(arg.DefaultValue))
	if d := arg.Directives.ForName(deprecatedDirective.Name); d != nil {
		v.Deprecate(deprecationReason(d))
	}
	return v
}

func buildDirective(dd *language.DirectiveDefinition) *Directive {
	d := NewDirective(dd.Name, dd.Description).SetRepeatable(dd.IsRepeatable)
	for _, loc := range dd.Locations {
		d.AddLocation(string(loc))
	}
	for _, arg := range dd.Arguments {
		d.AddArgument(buildArgument(arg))
	}
	return d
}

func buildTypeRef(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func directiveArgs(d *language.Directive) map[string]any {
	if len(d.Arguments) == 0 {
		return nil
	}
	args := make(map[string]any, len(d.Arguments))
	for _, a := range d.Arguments {
		args[a.Name] = language.ValueOf(a.Value)
	}
	return args
}

func deprecationReason(d *language.Directive) string {
	reason, _ := directiveArgs(d)["reason"].(string)
	return reason
}

func sortedTypeNames(s *Schema) []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
