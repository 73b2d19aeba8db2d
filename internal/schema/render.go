package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces SDL from the Schema. Type and directive definitions are
// sorted by name; fields, arguments and directive uses keep declaration
// order. Builtins and introspection types are omitted.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	p := &printer{}
	p.schemaBlock(s)

	names := make([]string, 0, len(s.Types))
	for name, t := range s.Types {
		if !IsBuiltinType(t) && !strings.HasPrefix(name, "__") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		p.typeDefinition(s.Types[name])
	}

	names = names[:0]
	for name, d := range s.Directives {
		if !IsBuiltinDirective(d) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		p.directiveDefinition(s.Directives[name])
	}

	return strings.TrimRight(p.String(), "\n") + "\n"
}

type printer struct {
	strings.Builder
}

func (p *printer) line(parts ...string) {
	for _, s := range parts {
		p.WriteString(s)
	}
	p.WriteByte('\n')
}

func (p *printer) description(indent, desc string) {
	if desc == "" {
		return
	}
	p.line(indent, `"""`)
	p.line(indent, strings.ReplaceAll(desc, `"`, `\"`))
	p.line(indent, `"""`)
}

// schemaBlock is written only when a root type has an unconventional name.
func (p *printer) schemaBlock(s *Schema) {
	roots := []struct{ op, name, conventional string }{
		{"query", s.QueryType, "Query"},
		{"mutation", s.MutationType, "Mutation"},
		{"subscription", s.SubscriptionType, "Subscription"},
	}
	custom := false
	for _, r := range roots {
		custom = custom || (r.name != "" && r.name != r.conventional)
	}
	if !custom {
		return
	}
	p.line("schema {")
	for _, r := range roots {
		if r.name != "" {
			p.line("  ", r.op, ": ", r.name)
		}
	}
	p.line("}")
	p.line()
}

func (p *printer) typeDefinition(t *Type) {
	p.description("", t.Description)
	switch t.Kind {
	case TypeKindScalar:
		header := "scalar " + t.Name
		if t.SpecifiedByURL != nil {
			header += " @specifiedBy(url: " + strconv.Quote(*t.SpecifiedByURL) + ")"
		}
		p.line(header)
	case TypeKindUnion:
		p.line("union ", t.Name, " = ", strings.Join(t.PossibleTypes, " | "))
	case TypeKindEnum:
		p.line("enum ", t.Name, " {")
		for _, v := range t.EnumValues {
			p.description("  ", v.Description)
			p.line("  ", v.Name, deprecation(v.IsDeprecated, v.DeprecationReason))
		}
		p.line("}")
	case TypeKindInputObject:
		header := "input " + t.Name
		if t.OneOf {
			header += " @oneOf"
		}
		p.line(header, " {")
		for _, f := range t.InputFields {
			p.description("  ", f.Description)
			p.line("  ", inputValue(f), deprecation(f.IsDeprecated, f.DeprecationReason))
		}
		p.line("}")
	case TypeKindObject, TypeKindInterface:
		keyword := "type "
		if t.Kind == TypeKindInterface {
			keyword = "interface "
		}
		header := keyword + t.Name
		if len(t.Interfaces) > 0 {
			header += " implements " + strings.Join(t.Interfaces, " & ")
		}
		p.line(header, " {")
		for _, f := range t.Fields {
			p.description("  ", f.Description)
			p.line("  ", f.Name, arguments(f.Arguments), ": ", renderTypeRef(f.Type), directiveUses(f.Directives))
		}
		p.line("}")
	}
	p.line()
}

func (p *printer) directiveDefinition(d *Directive) {
	p.description("", d.Description)
	header := "directive @" + d.Name + arguments(d.Arguments)
	if d.IsRepeatable {
		header += " repeatable"
	}
	p.line(header, " on ", strings.Join(d.Locations, " | "))
	p.line()
}

func arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = inputValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func inputValue(v *InputValue) string {
	s := v.Name + ": " + renderTypeRef(v.Type)
	if v.DefaultValue != nil {
		s += " = " + renderValue(v.DefaultValue)
	}
	return s
}

func deprecation(deprecated bool, reason string) string {
	switch {
	case !deprecated:
		return ""
	case reason == "":
		return " @deprecated"
	default:
		return " @deprecated(reason: " + strconv.Quote(reason) + ")"
	}
}

// directiveUses renders arguments sorted by name since uses store them in a
// map.
func directiveUses(uses []*DirectiveUse) string {
	var b strings.Builder
	for _, use := range uses {
		b.WriteString(" @")
		b.WriteString(use.Name)
		if len(use.Arguments) == 0 {
			continue
		}
		names := make([]string, 0, len(use.Arguments))
		for name := range use.Arguments {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			names[i] = name + ": " + renderValue(use.Arguments[name])
		}
		b.WriteString("(" + strings.Join(names, ", ") + ")")
	}
	return b.String()
}

func renderTypeRef(t *TypeRef) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(t.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(t.OfType) + "!"
	}
	return ""
}

// RenderValue renders a Go value as a GraphQL literal.
func RenderValue(value any) string { return renderValue(value) }

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
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
		for i, k := range keys {
			keys[i] = k + ": " + renderValue(v[k])
		}
		return "{" + strings.Join(keys, ", ") + "}"
	}
	// enum values
	return fmt.Sprint(value)
}
