package executor

import (
	"context"
	"fmt"
	"sync"

	language "github.com/foyez/graphql/internal/language"
	schema "github.com/foyez/graphql/internal/schema"
)

// ResponseStream yields one ExecutionResult per event of a subscription's
// source stream.
type ResponseStream struct {
	state     *executionState
	fieldDef  *schema.Field
	fields    []*language.Field
	name      string
	source    SourceStream
	closeOnce sync.Once
}

// Next blocks until the next event arrives and returns the response for it.
// It reports false once the source stream ended, the stream was closed, or
// ctx is done.
func (rs *ResponseStream) Next(ctx context.Context) (*ExecutionResult, bool) {
	event, ok := rs.source.Next(ctx)
	if !ok {
		return nil, false
	}
	return rs.mapEvent(event), true
}

// Close ends the stream and releases the source. It is idempotent.
func (rs *ResponseStream) Close() {
	rs.closeOnce.Do(rs.source.Close)
}

// mapEvent completes the event as the value of the subscribed root field.
func (rs *ResponseStream) mapEvent(event any) *ExecutionResult {
	scope := rs.state.fork()
	path := Path{rs.name}
	value := scope.completeValue(rs.fieldDef.Type, rs.fields, event, path)
	res := &ExecutionResult{Errors: scope.errors}
	if schema.IsNonNull(rs.fieldDef.Type) && isNullish(value) {
		return res
	}
	if isNullish(value) {
		value = nil
	}
	res.Data = Object{{Name: rs.name, Value: value}}
	return res
}

// Subscribe resolves the single root field of a subscription operation into
// a source stream. On failure the stream is nil and the result carries the
// errors.
func (e *Executor) Subscribe(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) (*ResponseStream, *ExecutionResult) {
	state, rootType, operation, res := e.prepare(ctx, document, operationName, variableValues, nil)
	if res != nil {
		return nil, res
	}
	return state.subscribe(rootType, operation, initialValue)
}

// SubscribeField subscribes to a single root field request.
func (e *Executor) SubscribeField(ctx context.Context, req FieldRequest, initialValue any) (*ResponseStream, *ExecutionResult) {
	req.Operation = language.Subscription
	doc, field := req.document()
	state, rootType, operation, res := e.prepare(ctx, doc, "", nil, map[*language.Field]map[string]any{field: req.Args})
	if res != nil {
		return nil, res
	}
	return state.subscribe(rootType, operation, initialValue)
}

func (s *executionState) subscribe(rootType *schema.Type, operation *language.OperationDefinition, initialValue any) (*ResponseStream, *ExecutionResult) {
	if operation.Operation != language.Subscription {
		return nil, &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("%s operations cannot be subscribed to", operation.Operation)}}}
	}
	grouped := collectFields(s, rootType, operation.SelectionSet).orderedFields()
	if len(grouped) != 1 {
		return nil, &ExecutionResult{Errors: []GraphQLError{{Message: "subscription operations must select exactly one root field"}}}
	}
	cf := grouped[0]
	path := Path{cf.ResponseName}
	fieldDef := getFieldDefinition(rootType, cf.Fields[0].Name)
	if fieldDef == nil {
		s.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", cf.Fields[0].Name, rootType.Name), path)
		return nil, &ExecutionResult{Errors: s.errors}
	}

	args, err := s.argumentValues(rootType, fieldDef, cf.Fields[0])
	if err != nil {
		return nil, &ExecutionResult{Errors: []GraphQLError{locatedError(err, path)}}
	}
	value, err := s.resolveField(rootType.Name, fieldDef.Name, initialValue, args)
	if err != nil {
		return nil, &ExecutionResult{Errors: []GraphQLError{locatedError(err, path)}}
	}
	source, ok := value.(SourceStream)
	if !ok {
		s.addError(fmt.Sprintf("Subscription field %s.%s must return a stream, got %T", rootType.Name, fieldDef.Name, value), path)
		return nil, &ExecutionResult{Errors: s.errors}
	}
	return &ResponseStream{
		state:    s,
		fieldDef: fieldDef,
		fields:   cf.Fields,
		name:     cf.ResponseName,
		source:   source,
	}, nil
}
