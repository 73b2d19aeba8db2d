package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	reqid "github.com/foyez/graphql/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansFollowEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := newSubscriber(tp.Tracer("test")).register()
	defer unsubscribe()

	ctx := reqid.WithID(context.Background(), "r1")
	req := httptest.NewRequest("POST", "/graphql", nil)

	eventbus.Publish(ctx, events.HTTPStart{Request: req, RequestID: "r1"})
	eventbus.Publish(ctx, events.OperationStart{OperationName: "Add", OperationType: "mutation"})
	eventbus.Publish(ctx, events.TopicPublished{Topic: "PERSON_ADDED", Delivered: 2})
	eventbus.Publish(ctx, events.OperationFinish{OperationName: "Add", OperationType: "mutation", Errors: []error{errors.New("boom")}})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, RequestID: "r1", Status: 200})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	op, httpSpan := spans[0], spans[1]
	require.Equal(t, "graphql.operation", op.Name())
	require.Equal(t, "http.request", httpSpan.Name())
	require.Equal(t, httpSpan.SpanContext().SpanID(), op.Parent().SpanID())
	require.Equal(t, codes.Error, op.Status().Code)

	var names []string
	for _, ev := range op.Events() {
		names = append(names, ev.Name)
	}
	require.Contains(t, names, "pubsub.publish")
}

func TestSubscriptionSpan(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := newSubscriber(tp.Tracer("test")).register()

	ctx := reqid.WithID(context.Background(), "r2")
	eventbus.Publish(ctx, events.SubscriptionStart{Field: "personAdded"})
	eventbus.Publish(ctx, events.SubscriptionFinish{Field: "personAdded", Events: 3})
	unsubscribe()
	eventbus.Publish(ctx, events.SubscriptionStart{Field: "personAdded"})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "graphql.subscription", spans[0].Name())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "svc")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
