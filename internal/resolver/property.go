package resolver

import (
	"context"
	"reflect"
	"strings"
)

// PropertyResolver reads the same-named property off the parent value.
func PropertyResolver(name string) Func {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		v, _ := Property(source, name)
		return v, nil
	}
}

// Property reads name from a map, a struct (matching the json tag first,
// then the field name case-insensitively) or a pointer to either.
func Property(source any, name string) (any, bool) {
	switch s := source.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := s[name]
		return v, ok
	case map[string]string:
		v, ok := s[name]
		return v, ok
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		idx, ok := fieldIndex(rv.Type(), name)
		if !ok {
			return nil, false
		}
		return rv.FieldByIndex(idx).Interface(), true
	}
	return nil, false
}

func fieldIndex(t reflect.Type, name string) ([]int, bool) {
	var fallback []int
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == name {
				return f.Index, true
			}
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				continue
			}
		}
		if fallback == nil && strings.EqualFold(f.Name, name) {
			fallback = f.Index
		}
	}
	return fallback, fallback != nil
}
