package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	executor "github.com/foyez/graphql/internal/executor"
	language "github.com/foyez/graphql/internal/language"
)

// RequestError carries the response of an operation that was rejected
// before producing a stream.
type RequestError struct {
	Result *executor.ExecutionResult
}

func (e *RequestError) Error() string {
	if e.Result == nil || len(e.Result.Errors) == 0 {
		return "subscription rejected"
	}
	return e.Result.Errors[0].Message
}

// Stream yields one response per published event until it is closed. The
// host must Close it when its connection ends.
type Stream struct {
	responses *executor.ResponseStream
	ctx       context.Context
	name      string
	field     string
	started   time.Time
	delivered atomic.Int64
	once      sync.Once
}

// Next blocks until the next response is ready. It reports false once the
// stream ended or ctx is done.
func (s *Stream) Next(ctx context.Context) (*executor.ExecutionResult, bool) {
	res, ok := s.responses.Next(ctx)
	if ok {
		s.delivered.Add(1)
	}
	return res, ok
}

// Close unsubscribes the underlying listener. It is idempotent.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.responses.Close()
		eventbus.Publish(s.ctx, events.SubscriptionFinish{
			OperationName: s.name,
			Field:         s.field,
			Events:        int(s.delivered.Load()),
			Duration:      time.Since(s.started),
		})
	})
}

// Subscribe opens a subscription on a root field of the subscription type.
// A rejected subscription returns a *RequestError holding the response.
func (e *Engine) Subscribe(ctx context.Context, op Operation) (*Stream, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	op.Kind = language.Subscription
	rs, res := s.executor.SubscribeField(ctx, op.request(), nil)
	if res != nil {
		return nil, &RequestError{Result: res}
	}
	return e.openStream(ctx, rs, "", op.Field), nil
}

// SubscribeDocument opens the named subscription operation of a document.
func (e *Engine) SubscribeDocument(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) (*Stream, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	rs, res := s.executor.Subscribe(ctx, doc, operationName, variables, nil)
	if res != nil {
		return nil, &RequestError{Result: res}
	}
	return e.openStream(ctx, rs, operationName, rootFieldName(doc, operationName)), nil
}

func (e *Engine) openStream(ctx context.Context, rs *executor.ResponseStream, name, field string) *Stream {
	eventbus.Publish(ctx, events.SubscriptionStart{OperationName: name, Field: field})
	return &Stream{
		responses: rs,
		ctx:       context.WithoutCancel(ctx),
		name:      name,
		field:     field,
		started:   time.Now(),
	}
}

func rootFieldName(doc *language.QueryDocument, operationName string) string {
	op := language.OperationFor(doc, operationName)
	if op == nil {
		return ""
	}
	for _, sel := range op.SelectionSet {
		if f, ok := sel.(*language.Field); ok {
			return f.Name
		}
	}
	return ""
}

// IsSubscription reports whether the selected operation of doc is a
// subscription.
func IsSubscription(doc *language.QueryDocument, operationName string) bool {
	op := language.OperationFor(doc, operationName)
	return op != nil && op.Operation == language.Subscription
}
