// Package metrics exports engine and hub activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	pubsub "github.com/foyez/graphql/internal/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphql"

type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Subscriptions     prometheus.Gauge
	Published         *prometheus.CounterVec
	Listeners         *prometheus.GaugeVec
	ListenerFailures  *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Executed queries and mutations by type and outcome.",
		}, []string{"type", "status"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Execution time of queries and mutations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Open subscription streams.",
		}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_published_total",
			Help:      "Events published per topic.",
		}, []string{"topic"}),
		Listeners: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pubsub_listeners",
			Help:      "Active listeners per topic.",
		}, []string{"topic"}),
		ListenerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_listener_failures_total",
			Help:      "Listeners closed because delivery failed.",
		}, []string{"topic"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Subscribe feeds m from the event bus until the returned func is called.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.OperationFinish) {
			status := "ok"
			if len(e.Errors) > 0 {
				status = "error"
			}
			m.Operations.WithLabelValues(e.OperationType, status).Inc()
			m.OperationDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(context.Context, events.SubscriptionStart) { m.Subscriptions.Inc() }),
		eventbus.Subscribe(func(context.Context, events.SubscriptionFinish) { m.Subscriptions.Dec() }),
		eventbus.Subscribe(func(_ context.Context, e events.TopicPublished) {
			m.Published.WithLabelValues(e.Topic).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ListenerOpened) {
			m.Listeners.WithLabelValues(e.Topic).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ListenerClosed) {
			m.Listeners.WithLabelValues(e.Topic).Dec()
			if e.Err != nil && !errors.Is(e.Err, pubsub.ErrClosed) {
				m.ListenerFailures.WithLabelValues(e.Topic).Inc()
			}
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.HTTPRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
