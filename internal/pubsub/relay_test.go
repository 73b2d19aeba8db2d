package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type note struct {
	Text string `json:"text"`
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRelayFansOutAcrossHubs(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	decode := func(topic string, data []byte) (any, error) {
		var n note
		err := json.Unmarshal(data, &n)
		return n, err
	}

	hubA, hubB := NewHub(), NewHub()
	relayA := NewRelay(hubA, client, WithChannelPrefix("test:"))
	relayB := NewRelay(hubB, client, WithChannelPrefix("test:"), WithDecoder(decode))
	require.NotEqual(t, relayA.Origin(), relayB.Origin())

	stopA, err := relayA.Start(ctx)
	require.NoError(t, err)
	defer stopA()
	stopB, err := relayB.Start(ctx)
	require.NoError(t, err)
	defer stopB()

	local := relayA.Subscribe("NOTES")
	remote := relayB.Subscribe("NOTES")

	require.NoError(t, relayA.Publish(ctx, "NOTES", note{Text: "hello"}))

	require.Equal(t, []any{note{Text: "hello"}}, drain(t, local, 1))
	require.Equal(t, []any{note{Text: "hello"}}, drain(t, remote, 1))

	// the publishing relay skips its own envelope
	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, ok := local.Next(short)
	require.False(t, ok)
}

func TestRelayDefaultDecoder(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	hubB := NewHub()
	relayB := NewRelay(hubB, client)
	stop, err := relayB.Start(ctx)
	require.NoError(t, err)
	defer stop()

	_, err = relayB.Start(ctx)
	require.Error(t, err)

	l := hubB.Subscribe("ITEMS")
	relayA := NewRelay(NewHub(), client)
	require.NoError(t, relayA.Publish(ctx, "ITEMS", map[string]any{"id": 1}))

	require.Equal(t, []any{map[string]any{"id": float64(1)}}, drain(t, l, 1))
}

func TestRelayStopIsIdempotent(t *testing.T) {
	client := newRedis(t)
	r := NewRelay(NewHub(), client)
	stop, err := r.Start(context.Background())
	require.NoError(t, err)
	stop()
	stop()

	stop, err = r.Start(context.Background())
	require.NoError(t, err)
	stop()
}
