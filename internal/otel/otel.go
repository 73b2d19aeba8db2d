// Package otel turns engine lifecycle events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"

	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	reqid "github.com/foyez/graphql/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "github.com/foyez/graphql"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := newSubscriber(otel.Tracer(tracerName)).register()
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// subscriber keys in-flight spans by request id.
type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	opSpans   sync.Map // rid -> trace.Span
	subSpans  sync.Map // rid -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber {
	return &subscriber{tracer: tracer}
}

func (s *subscriber) parent(ctx context.Context, rid string, spans ...*sync.Map) context.Context {
	for _, m := range spans {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(spans *sync.Map, rid string) (trace.Span, bool) {
	v, ok := spans.LoadAndDelete(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (s *subscriber) register() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("request.id", e.RequestID),
			)
			s.httpSpans.Store(e.RequestID, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			span, ok := end(&s.httpSpans, e.RequestID)
			if !ok {
				return
			}
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Bool("http.streamed", e.Streamed),
			)
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.opSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			rid, _ := reqid.FromContext(ctx)
			span, ok := end(&s.opSpans, rid)
			if !ok {
				return
			}
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			for _, err := range e.Errors {
				span.RecordError(err)
			}
			if len(e.Errors) > 0 {
				span.SetStatus(codes.Error, e.Errors[0].Error())
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans), "graphql.subscription")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.subscription.field", e.Field),
			)
			s.subSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionFinish) {
			rid, _ := reqid.FromContext(ctx)
			span, ok := end(&s.subSpans, rid)
			if !ok {
				return
			}
			span.SetAttributes(attribute.Int("graphql.subscription.events", e.Events))
			span.End()
		}),

		// publishes made by a resolver show up on its operation span
		eventbus.Subscribe(func(ctx context.Context, e events.TopicPublished) {
			rid, ok := reqid.FromContext(ctx)
			if !ok {
				return
			}
			if v, ok := s.opSpans.Load(rid); ok {
				v.(trace.Span).AddEvent("pubsub.publish", trace.WithAttributes(
					attribute.String("pubsub.topic", e.Topic),
					attribute.Int("pubsub.delivered", e.Delivered),
				))
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
