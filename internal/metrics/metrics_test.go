package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	pubsub "github.com/foyez/graphql/internal/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOperationMetrics(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	m := New(prometheus.NewRegistry())
	defer m.Subscribe()()

	ctx := context.Background()
	eventbus.Publish(ctx, events.OperationFinish{OperationType: "query", Duration: time.Millisecond})
	eventbus.Publish(ctx, events.OperationFinish{OperationType: "mutation", Errors: []error{errors.New("x")}})
	eventbus.Publish(ctx, events.SubscriptionStart{Field: "personAdded"})

	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("query", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("mutation", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Subscriptions))
	require.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))
}

func TestHubMetrics(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	m := New(prometheus.NewRegistry())
	defer m.Subscribe()()

	hub := pubsub.NewHub(pubsub.WithMaxPending(1))
	ctx := context.Background()
	slow := hub.Subscribe("T")
	other := hub.Subscribe("T")
	require.Equal(t, 2.0, testutil.ToFloat64(m.Listeners.WithLabelValues("T")))

	require.NoError(t, hub.Publish(ctx, "T", 1))
	_, ok := other.Next(ctx)
	require.True(t, ok)
	require.NoError(t, hub.Publish(ctx, "T", 2))

	require.Equal(t, pubsub.Closed, slow.State())
	require.Equal(t, 2.0, testutil.ToFloat64(m.Published.WithLabelValues("T")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ListenerFailures.WithLabelValues("T")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Listeners.WithLabelValues("T")))

	hub.Close()
	require.Equal(t, 0.0, testutil.ToFloat64(m.Listeners.WithLabelValues("T")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ListenerFailures.WithLabelValues("T")))
}

func TestHandler(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	reg := NewRegistry()
	m := New(reg)
	defer m.Subscribe()()
	eventbus.Publish(context.Background(), events.TopicPublished{Topic: "PERSON_ADDED", Delivered: 1})

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `graphql_pubsub_published_total{topic="PERSON_ADDED"} 1`)
	require.Contains(t, body, "go_goroutines")
}
