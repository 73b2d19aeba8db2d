package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannelPrefix namespaces relay channels on the Redis server.
const DefaultChannelPrefix = "graphql:topic:"

// Decoder turns a relayed payload back into the event value for topic.
type Decoder func(topic string, data []byte) (any, error)

// Relay forwards hub topics through Redis so listeners in every process
// sharing the server observe each publish once.
type Relay struct {
	hub     *Hub
	client  redis.UniversalClient
	prefix  string
	origin  string
	logger  *zap.Logger
	decoder Decoder

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

type RelayOption func(*Relay)

func WithChannelPrefix(prefix string) RelayOption {
	return func(r *Relay) { r.prefix = prefix }
}

func WithRelayLogger(l *zap.Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDecoder sets how remote payloads are decoded. The default decodes
// into generic JSON values.
func WithDecoder(d Decoder) RelayOption {
	return func(r *Relay) { r.decoder = d }
}

type envelope struct {
	Origin string          `json:"origin"`
	Topic  string          `json:"topic"`
	Event  json.RawMessage `json:"event"`
}

func NewRelay(hub *Hub, client redis.UniversalClient, opts ...RelayOption) *Relay {
	r := &Relay{
		hub:     hub,
		client:  client,
		prefix:  DefaultChannelPrefix,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		decoder: decodeJSON,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func decodeJSON(_ string, data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Origin identifies this relay in envelopes it publishes.
func (r *Relay) Origin() string { return r.origin }

// Publish delivers event to local listeners, then to other processes.
func (r *Relay) Publish(ctx context.Context, topic string, event any) error {
	if err := r.hub.Publish(ctx, topic, event); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for topic %q: %w", topic, err)
	}
	data, err := json.Marshal(envelope{Origin: r.origin, Topic: topic, Event: payload})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.prefix+topic, data).Err(); err != nil {
		return fmt.Errorf("relay topic %q: %w", topic, err)
	}
	return nil
}

// Subscribe registers a listener on the local hub.
func (r *Relay) Subscribe(topic string) *Listener { return r.hub.Subscribe(topic) }

// Start subscribes to every relayed topic. It returns once the Redis
// subscription is confirmed; stop ends it and waits for the receive loop.
func (r *Relay) Start(ctx context.Context) (stop func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil, fmt.Errorf("relay already started")
	}

	ps := r.client.PSubscribe(ctx, r.prefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe relay channels: %w", err)
	}
	r.pubsub = ps
	r.done = make(chan struct{})

	ch := ps.Channel()
	done := r.done
	go func() {
		defer close(done)
		for msg := range ch {
			r.handle(msg)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.pubsub = nil
			r.mu.Unlock()
			_ = ps.Close()
			<-done
		})
	}, nil
}

func (r *Relay) handle(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warn("dropping malformed relay message", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if env.Origin == r.origin {
		return
	}
	topic := env.Topic
	if topic == "" {
		topic = strings.TrimPrefix(msg.Channel, r.prefix)
	}
	event, err := r.decoder(topic, env.Event)
	if err != nil {
		r.logger.Warn("dropping undecodable relay event", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := r.hub.Publish(context.Background(), topic, event); err != nil {
		r.logger.Debug("relay publish skipped", zap.String("topic", topic), zap.Error(err))
	}
}
