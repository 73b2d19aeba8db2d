package executor

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	language "github.com/foyez/graphql/internal/language"
	schema "github.com/foyez/graphql/internal/schema"
)

// coerceVariableValues coerces variable values according to their types
func coerceVariableValues(
	sch *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	if variableValues == nil {
		variableValues = make(map[string]any)
	}
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if v2, ok2 := variableValues[strings.TrimPrefix(name, "$")]; ok2 {
				val = v2
				ok = true
			}
		}
		if !ok {
			if varDef.DefaultValue != nil {
				val = language.ValueOf(varDef.DefaultValue)
			} else if t.NonNull {
				return nil, gqlerr.NewArgumentError(gqlerr.MissingRequired, "$"+name, "variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, gqlerr.NewArgumentError(gqlerr.MissingRequired, "$"+name, "variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceInput(sch, val, typeRefFromAST(t))
		if err != nil {
			return nil, gqlerr.NewArgumentError(gqlerr.WrongType, "$"+name, "variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// argumentsFromAST substitutes variables into the field's literal
// arguments. Arguments bound to a variable the request did not provide are
// left out, so that defaults and required checks apply.
func argumentsFromAST(arguments language.ArgumentList, variableValues map[string]any) map[string]any {
	raw := make(map[string]any, len(arguments))
	for _, arg := range arguments {
		if arg.Value != nil && arg.Value.Kind == language.Variable {
			if _, ok := variableValues[arg.Value.Raw]; !ok {
				continue
			}
		}
		raw[arg.Name] = valueFromAST(arg.Value, variableValues)
	}
	return raw
}

// valueFromAST converts an AST value to a runtime value with variable substitution
func valueFromAST(value *language.Value, variableValues map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		name := value.Raw
		if v, ok := variableValues[name]; ok {
			return v
		}
		if v, ok := variableValues[strings.TrimPrefix(name, "$")]; ok {
			return v
		}
		return nil
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromAST(c.Value, variableValues)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = valueFromAST(f.Value, variableValues)
		}
		return m
	default:
		return language.ValueOf(value)
	}
}

// coerceArguments validates raw against the field's declared argument shape
// and returns the typed argument map handed to the resolver.
func coerceArguments(sch *schema.Schema, typeName string, fieldDef *schema.Field, raw map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		value, ok := raw[name]
		if !ok {
			if argDef.DefaultValue != nil {
				cv, err := coerceInput(sch, argDef.DefaultValue, argDef.Type)
				if err != nil {
					return nil, gqlerr.NewArgumentError(gqlerr.WrongType, name,
						"default value of argument %q on field %s.%s is invalid: %v", name, typeName, fieldDef.Name, err)
				}
				coerced[name] = cv
			} else if schema.IsNonNull(argDef.Type) {
				return nil, gqlerr.NewArgumentError(gqlerr.MissingRequired, name,
					"argument %q of type %s is required on field %s.%s", name, argDef.Type, typeName, fieldDef.Name)
			}
			continue
		}
		if isNullish(value) && schema.IsNonNull(argDef.Type) {
			return nil, gqlerr.NewArgumentError(gqlerr.MissingRequired, name,
				"argument %q of type %s cannot be null on field %s.%s", name, argDef.Type, typeName, fieldDef.Name)
		}
		cv, err := coerceInput(sch, value, argDef.Type)
		if err != nil {
			return nil, gqlerr.NewArgumentError(gqlerr.WrongType, name,
				"argument %q on field %s.%s has an invalid value: %v", name, typeName, fieldDef.Name, err)
		}
		coerced[name] = cv
	}

	var unknown []string
	for name := range raw {
		if fieldDef.Argument(name) == nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, gqlerr.NewArgumentError(gqlerr.UnknownArgument, unknown[0],
			"unknown argument %q on field %s.%s", unknown[0], typeName, fieldDef.Name)
	}
	return coerced, nil
}

// coerceInput coerces a value to the specified GraphQL input type
func coerceInput(sch *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if isNullish(value) {
			return nil, fmt.Errorf("null value for non-null type %s", targetType)
		}
		return coerceInput(sch, value, schema.Unwrap(targetType))
	}
	if isNullish(value) {
		return nil, nil
	}

	if targetType.Kind == schema.TypeRefKindList {
		return coerceListInput(sch, value, targetType)
	}

	namedType := schema.GetNamedType(targetType)
	typ := sch.Types[namedType]
	if typ == nil {
		return nil, fmt.Errorf("unknown type %s", namedType)
	}
	switch typ.Kind {
	case schema.TypeKindScalar:
		return coerceScalar(namedType, value)
	case schema.TypeKindEnum:
		s, ok := value.(string)
		if !ok || !typ.HasEnumValue(s) {
			return nil, fmt.Errorf("%v is not a value of enum %s", value, namedType)
		}
		return s, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(sch, typ, value)
	default:
		return nil, fmt.Errorf("%s is not an input type", namedType)
	}
}

// coerceListInput coerces a value to a list; a single value becomes a list of one.
func coerceListInput(sch *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	innerType := schema.Unwrap(listType)
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		item, err := coerceInput(sch, value, innerType)
		if err != nil {
			return nil, err
		}
		return []any{item}, nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := coerceInput(sch, rv.Index(i).Interface(), innerType)
		if err != nil {
			return nil, fmt.Errorf("at index %d: %w", i, err)
		}
		out[i] = item
	}
	return out, nil
}

func coerceInputObject(sch *schema.Schema, typ *schema.Type, value any) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an input object for %s, got %T", typ.Name, value)
	}
	out := make(map[string]any, len(typ.InputFields))
	for _, def := range typ.InputFields {
		v, ok := fields[def.Name]
		if !ok {
			if def.DefaultValue != nil {
				cv, err := coerceInput(sch, def.DefaultValue, def.Type)
				if err != nil {
					return nil, fmt.Errorf("default value of field %s.%s: %w", typ.Name, def.Name, err)
				}
				out[def.Name] = cv
			} else if schema.IsNonNull(def.Type) {
				return nil, fmt.Errorf("field %s.%s of type %s is required", typ.Name, def.Name, def.Type)
			}
			continue
		}
		cv, err := coerceInput(sch, v, def.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", typ.Name, def.Name, err)
		}
		out[def.Name] = cv
	}
	var unknown []string
	for name := range fields {
		if typ.InputField(name) == nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown field %q on input %s", unknown[0], typ.Name)
	}
	return out, nil
}

func coerceScalar(name string, value any) (any, error) {
	switch name {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		// custom scalars pass through
		return value, nil
	}
}

func coerceToInt(value any) (any, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("cannot coerce %v to Int", value)
		}
		n = int64(v)
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("%d is outside the 32-bit Int range", n)
	}
	return int(n), nil
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
