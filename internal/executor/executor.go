package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	language "github.com/foyez/graphql/internal/language"
	schema "github.com/foyez/graphql/internal/schema"
	"golang.org/x/sync/errgroup"
)

type Path []PathElement

type PathElement any

// operationState is shared by every field of one operation.
type operationState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	operation      language.Operation
	variableValues map[string]any
	context        context.Context
	// presetArgs holds already-typed arguments for fields that did not come
	// from a parsed document.
	presetArgs     map[*language.Field]map[string]any
	maxConcurrency int
}

// executionState is the error scope of one field (or of the whole operation).
// Sibling fields get their own scope so their errors merge in request order.
type executionState struct {
	*operationState
	errors []GraphQLError
}

func (s *executionState) fork() *executionState {
	return &executionState{operationState: s.operationState}
}

type Executor struct {
	runtime        Runtime
	schema         *schema.Schema
	maxConcurrency int
}

type Option func(*Executor)

// WithMaxConcurrency bounds how many Concurrent sibling fields of one
// selection set resolve at the same time. 1 disables concurrency; 0 (the
// default) leaves it unbounded.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) { e.maxConcurrency = n }
}

func NewExecutor(runtime Runtime, schema *schema.Schema, opts ...Option) *Executor {
	e := &Executor{runtime: runtime, schema: schema}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FieldRequest names a single root field with already-typed arguments and
// the selection to resolve on its result.
type FieldRequest struct {
	Operation    language.Operation
	Field        string
	Alias        string
	Args         map[string]any
	SelectionSet language.SelectionSet
}

func (r FieldRequest) document() (*language.QueryDocument, *language.Field) {
	field := &language.Field{Alias: r.Alias, Name: r.Field, SelectionSet: r.SelectionSet}
	if field.Alias == "" {
		field.Alias = r.Field
	}
	op := &language.OperationDefinition{
		Operation:    r.Operation,
		SelectionSet: language.SelectionSet{field},
	}
	return &language.QueryDocument{Operations: language.OperationList{op}}, field
}

// ExecuteRequest executes a query or mutation operation of document.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	state, rootType, operation, res := e.prepare(ctx, document, operationName, variableValues, nil)
	if res != nil {
		return res
	}
	if operation.Operation == language.Subscription {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "subscription operations must be subscribed to, not executed"}}}
	}
	return state.executeRoot(rootType, operation.SelectionSet, initialValue)
}

// ExecuteField executes a single root field request.
func (e *Executor) ExecuteField(ctx context.Context, req FieldRequest, initialValue any) *ExecutionResult {
	if req.Operation == language.Subscription {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "subscription operations must be subscribed to, not executed"}}}
	}
	doc, field := req.document()
	state, rootType, operation, res := e.prepare(ctx, doc, "", nil, map[*language.Field]map[string]any{field: req.Args})
	if res != nil {
		return res
	}
	return state.executeRoot(rootType, operation.SelectionSet, initialValue)
}

func (e *Executor) prepare(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	presetArgs map[*language.Field]map[string]any,
) (*executionState, *schema.Type, *language.OperationDefinition, *ExecutionResult) {
	operation := language.OperationFor(document, operationName)
	if operation == nil {
		return nil, nil, nil, &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	coercedVariableValues, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return nil, nil, nil, &ExecutionResult{Errors: []GraphQLError{locatedError(err, nil)}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	default:
		return nil, nil, nil, &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}
	if rootType == nil {
		return nil, nil, nil, &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	state := &executionState{operationState: &operationState{
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		operation:      operation.Operation,
		variableValues: coercedVariableValues,
		context:        ctx,
		presetArgs:     presetArgs,
		maxConcurrency: e.maxConcurrency,
	}}
	return state, rootType, operation, nil
}

func (s *executionState) executeRoot(rootType *schema.Type, selectionSet language.SelectionSet, initialValue any) *ExecutionResult {
	data := s.executeSelectionSet(rootType, selectionSet, initialValue, Path{})
	res := &ExecutionResult{Errors: s.errors}
	if data != nil {
		res.Data = data
	}
	return res
}

type fieldOutcome struct {
	name    string
	value   any
	errors  []GraphQLError
	skip    bool
	invalid bool
}

// executeSelectionSet executes the selection set against one object value.
// It returns nil when a Non-Null field failed, so that the caller nulls the
// object itself.
func (s *executionState) executeSelectionSet(objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) Object {
	groupedFields := collectFields(s, objectType, selectionSet).orderedFields()
	outcomes := make([]fieldOutcome, len(groupedFields))

	run := func(i int) {
		cf := groupedFields[i]
		scope := s.fork()
		fieldPath := appendPath(path, cf.ResponseName)
		out := fieldOutcome{name: cf.ResponseName}
		out.value, out.skip = scope.executeFieldGroup(objectType, objectValue, cf.Fields, fieldPath)
		if !out.skip {
			fieldDef := getFieldDefinition(objectType, cf.Fields[0].Name)
			out.invalid = fieldDef != nil && schema.IsNonNull(fieldDef.Type) && isNullish(out.value)
		}
		out.errors = scope.errors
		outcomes[i] = out
	}

	serialRoot := s.operation == language.Mutation && len(path) == 0
	pending := make([]bool, len(groupedFields))
	var g *errgroup.Group
	if !serialRoot && s.maxConcurrency != 1 {
		for i, cf := range groupedFields {
			if !s.isConcurrent(objectType, cf.Fields[0].Name) {
				continue
			}
			if g == nil {
				g = new(errgroup.Group)
				if s.maxConcurrency > 0 {
					g.SetLimit(s.maxConcurrency)
				}
			}
			pending[i] = true
			i := i
			g.Go(func() error {
				run(i)
				return nil
			})
		}
	}

	// Sequential fields run in request order. Only the serial mutation root
	// stops at the first Non-Null failure; elsewhere every sibling resolves so
	// its errors are reported.
	failed := false
	for i := range groupedFields {
		if pending[i] {
			continue
		}
		if failed && serialRoot {
			outcomes[i].skip = true
			continue
		}
		run(i)
		failed = failed || outcomes[i].invalid
	}
	if g != nil {
		_ = g.Wait()
	}

	resultMap := make(Object, 0, len(outcomes))
	for _, out := range outcomes {
		s.errors = append(s.errors, out.errors...)
		if out.invalid {
			failed = true
		}
		if out.skip {
			continue
		}
		if isNullish(out.value) {
			resultMap = append(resultMap, ObjectField{Name: out.name})
		} else {
			resultMap = append(resultMap, ObjectField{Name: out.name, Value: out.value})
		}
	}
	if failed {
		return nil
	}
	return resultMap
}

func (s *executionState) isConcurrent(objectType *schema.Type, fieldName string) bool {
	fieldDef := getFieldDefinition(objectType, fieldName)
	return fieldDef != nil && fieldDef.Concurrent
}

// executeFieldGroup resolves and completes one response entry. skip reports
// that the entry must not appear in the response.
func (s *executionState) executeFieldGroup(objectType *schema.Type, objectValue any, fields []*language.Field, path Path) (value any, skip bool) {
	field := fields[0]
	fieldName := field.Name

	// Handle __typename meta field
	if fieldName == "__typename" {
		return objectType.Name, false
	}

	fieldDef := getFieldDefinition(objectType, fieldName)
	if fieldDef == nil {
		s.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fieldName, objectType.Name), path)
		return nil, true
	}

	argumentValues, err := s.argumentValues(objectType, fieldDef, field)
	if err != nil {
		s.errors = append(s.errors, locatedError(err, path))
		return nil, false
	}

	resolvedValue, err := s.resolveField(objectType.Name, fieldName, objectValue, argumentValues)
	if err != nil {
		s.errors = append(s.errors, locatedError(err, path))
		return nil, false
	}
	return s.completeValue(fieldDef.Type, fields, resolvedValue, path), false
}

func (s *executionState) argumentValues(objectType *schema.Type, fieldDef *schema.Field, field *language.Field) (map[string]any, error) {
	raw, ok := s.presetArgs[field]
	if !ok {
		raw = argumentsFromAST(field.Arguments, s.variableValues)
	}
	return coerceArguments(s.schema, objectType.Name, fieldDef, raw)
}

// resolveField calls the runtime, turning a resolver panic into an internal
// error located at the field.
func (s *executionState) resolveField(objectType, fieldName string, source any, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = gqlerr.Internalf("panic while resolving %s.%s: %v", objectType, fieldName, r)
		}
	}()
	return s.runtime.ResolveField(s.context, objectType, fieldName, source, args)
}

// completeValue completes a value
func (s *executionState) completeValue(fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !s.hasErrorAtPath(path) {
				s.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		inner := schema.Unwrap(fieldType)
		completed := s.completeValue(inner, fields, result, path)
		if isNullish(completed) {
			if !s.hasErrorAtPath(path) && !s.hasErrorUnder(path) {
				s.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return s.completeListValue(fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := s.schema.Types[namedType]
	if typeObj == nil {
		s.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := s.runtime.SerializeLeafValue(s.context, namedType, result)
		if err != nil {
			s.errors = append(s.errors, locatedError(err, path))
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return s.completeObjectValue(typeObj, fields, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return s.completeAbstractValue(typeObj, fields, result, path)
	default:
		s.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

// completeListValue completes a list value
func (s *executionState) completeListValue(listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			s.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		p := appendPath(path, i)
		v := s.completeValue(inner, fields, item, p)
		if schema.IsNonNull(inner) && isNullish(v) {
			// Propagate null to the list field; error already recorded by inner completion
			return nil
		}
		if isNullish(v) {
			v = nil
		}
		completed[i] = v
	}
	return completed
}

func (s *executionState) completeObjectValue(objectType *schema.Type, fields []*language.Field, result any, path Path) any {
	sub := mergeSelectionSets(fields)
	obj := s.executeSelectionSet(objectType, sub, result, path)
	if obj == nil {
		return nil
	}
	return obj
}

func (s *executionState) completeAbstractValue(abstractType *schema.Type, fields []*language.Field, result any, path Path) any {
	typeName, err := s.runtime.ResolveType(s.context, abstractType.Name, result)
	if err != nil {
		s.errors = append(s.errors, locatedError(err, path))
		return nil
	}
	objectType := s.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		s.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractType.Name, typeName), path)
		return nil
	}
	if !isPossibleType(s.schema, abstractType, objectType) {
		s.addError(fmt.Sprintf("Runtime Object type %s is not a possible type for %s", typeName, abstractType.Name), path)
		return nil
	}
	return s.completeObjectValue(objectType, fields, result, path)
}

// locatedError converts a field failure into its response entry.
func locatedError(err error, path Path) GraphQLError {
	var ae *gqlerr.ArgumentError
	if errors.As(err, &ae) {
		return GraphQLError{Message: ae.Message, Path: path, Extensions: ae.Extensions()}
	}
	re := gqlerr.AsResolverError(err)
	return GraphQLError{Message: re.Error(), Path: path, Extensions: re.Extensions()}
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

// Helper function to add an error to the execution state
func (s *executionState) addError(message string, path Path) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: path})
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (s *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range s.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

// hasErrorUnder reports whether an error was recorded below path.
func (s *executionState) hasErrorUnder(path Path) bool {
	for _, err := range s.errors {
		if len(err.Path) > len(path) && reflect.DeepEqual(err.Path[:len(path)], path) {
			return true
		}
	}
	return false
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
