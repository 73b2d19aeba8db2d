package language

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSelection parses a bare selection set such as `{ name phone }`.
// An empty source yields an empty selection.
func ParseSelection(source string) (SelectionSet, error) {
	if source == "" {
		return nil, nil
	}
	doc, err := ParseQuery(source)
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("expected a single selection set, got %d operations", len(doc.Operations))
	}
	return doc.Operations[0].SelectionSet, nil
}

// OperationFor returns the operation selected by name. An empty name selects
// the only operation of a single-operation document.
func OperationFor(doc *QueryDocument, name string) *OperationDefinition {
	if doc == nil {
		return nil
	}
	if name == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0]
		}
		return nil
	}
	return doc.Operations.ForName(name)
}

// ValueOf converts a constant AST value to a Go value. Variables resolve to
// nil; callers that support variables substitute them first.
func ValueOf(value *Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case IntValue:
		iv, err := strconv.Atoi(value.Raw)
		if err != nil {
			fv, _ := strconv.ParseFloat(value.Raw, 64)
			return fv
		}
		return iv
	case FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case StringValue, BlockValue, EnumValue:
		return value.Raw
	case BooleanValue:
		return value.Raw == "true"
	case ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = ValueOf(c.Value)
		}
		return out
	case ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = ValueOf(f.Value)
		}
		return m
	default:
		return nil
	}
}
