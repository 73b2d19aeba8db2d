package engine

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"

	resolver "github.com/foyez/graphql/internal/resolver"
	schema "github.com/foyez/graphql/internal/schema"
)

type fieldKey struct{ objectType, field string }

// runtime dispatches fields to their effective resolvers and serializes
// leaf values by their declared type.
type runtime struct {
	schema    *schema.Schema
	resolvers map[fieldKey]resolver.Func
}

func (r *runtime) ResolveField(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if fn, ok := r.resolvers[fieldKey{objectType, field}]; ok {
		return fn(ctx, source, args)
	}
	v, _ := resolver.Property(source, field)
	return v, nil
}

// TypeNamer lets values of interface and union types name their concrete
// object type.
type TypeNamer interface {
	TypeName() string
}

func (r *runtime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	switch v := value.(type) {
	case TypeNamer:
		return v.TypeName(), nil
	case map[string]any:
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
	}
	// fall back to the Go type name when it matches a possible type
	rt := reflect.TypeOf(value)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt != nil {
		if t, ok := r.schema.TypeOf(abstractType); ok {
			for _, name := range t.PossibleTypes {
				if name == rt.Name() {
					return name, nil
				}
			}
		}
	}
	return "", fmt.Errorf("cannot determine the concrete type of %T for %s", value, abstractType)
}

func (r *runtime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	value = deref(value)
	if value == nil {
		return nil, nil
	}
	switch typeName {
	case "String":
		return serializeString(value)
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %T", value)
	case "ID":
		return serializeID(value)
	}
	t, ok := r.schema.TypeOf(typeName)
	if ok && t.Kind == schema.TypeKindEnum {
		name, err := serializeString(value)
		if err != nil {
			return nil, fmt.Errorf("enum %s cannot represent %T", typeName, value)
		}
		if !t.HasEnumValue(name.(string)) {
			return nil, fmt.Errorf("enum %s cannot represent value %q", typeName, name)
		}
		return name, nil
	}
	return value, nil
}

func deref(value any) any {
	rv := reflect.ValueOf(value)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return nil, fmt.Errorf("String cannot represent %T", value)
}

// serializeID accepts any integer width, unlike Int which is 32-bit.
func serializeID(value any) (any, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return nil, fmt.Errorf("ID cannot represent %v", f)
	}
	s, err := serializeString(value)
	if err != nil {
		return nil, fmt.Errorf("ID cannot represent %T", value)
	}
	return s, nil
}

func serializeInt(value any) (any, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent %d", n)
		}
		return int(n), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent %d", n)
		}
		return int(n), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent %v", f)
		}
		return int(f), nil
	}
	return nil, fmt.Errorf("Int cannot represent %T", value)
}

func serializeFloat(value any) (any, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("Float cannot represent %T", value)
}
