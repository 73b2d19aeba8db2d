// Package pubsub implements the in-memory topic hub used by subscription
// operations, plus a Redis relay for fanning topics out across processes.
package pubsub

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/foyez/graphql/internal/eventbus"
	"github.com/foyez/graphql/internal/events"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by Publish after Close and is the close cause of
	// listeners that were open when the hub closed.
	ErrClosed = errors.New("pubsub: hub closed")
	// ErrOverflow closes a listener whose pending queue is full.
	ErrOverflow = errors.New("pubsub: listener queue overflow")
)

// Publisher hands events to the listeners of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Broker is a Publisher that also accepts listeners.
type Broker interface {
	Publisher
	Subscribe(topic string) *Listener
}

// Hub is a process-wide registry of topics. Topics exist implicitly and
// are dropped once their last listener goes away.
type Hub struct {
	mu         sync.Mutex
	topics     map[string][]*Listener
	closed     bool
	nextID     uint64
	maxPending int
	logger     *zap.Logger
}

type Option func(*Hub)

// WithMaxPending bounds the number of undelivered events per listener.
// Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(h *Hub) { h.maxPending = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		topics: make(map[string][]*Listener),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type failure struct {
	listener *Listener
	err      error
}

// Publish hands event to every active listener of topic in registration
// order. A listener that cannot take the event is closed; the others still
// receive it.
func (h *Hub) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var failed []failure
	delivered := 0

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	for _, l := range h.topics[topic] {
		if err := l.deliver(event, h.maxPending); err != nil {
			failed = append(failed, failure{listener: l, err: err})
			continue
		}
		delivered++
	}
	for _, f := range failed {
		h.removeLocked(f.listener, f.err)
	}
	h.mu.Unlock()

	for _, f := range failed {
		h.logger.Warn("listener closed after delivery failure",
			zap.String("topic", topic),
			zap.Uint64("listener", f.listener.id),
			zap.Error(f.err),
		)
		eventbus.Publish(ctx, events.ListenerClosed{Topic: topic, ListenerID: f.listener.id, Err: f.err})
	}
	eventbus.Publish(ctx, events.TopicPublished{Topic: topic, Delivered: delivered})
	return nil
}

// Subscribe registers a new active listener on topic. It observes every
// publish that starts after Subscribe returns. After Close the returned
// listener is already closed.
func (h *Hub) Subscribe(topic string) *Listener {
	h.mu.Lock()
	h.nextID++
	l := newListener(h, h.nextID, topic)
	if h.closed {
		l.close(ErrClosed)
		h.mu.Unlock()
		return l
	}
	h.topics[topic] = append(h.topics[topic], l)
	h.mu.Unlock()

	eventbus.Publish(context.Background(), events.ListenerOpened{Topic: topic, ListenerID: l.id})
	return l
}

// Unsubscribe closes l. Calling it more than once is a no-op.
func (h *Hub) Unsubscribe(l *Listener) {
	if l == nil || l.hub != h {
		return
	}
	h.mu.Lock()
	closed := h.removeLocked(l, nil)
	h.mu.Unlock()
	if closed {
		eventbus.Publish(context.Background(), events.ListenerClosed{Topic: l.topic, ListenerID: l.id})
	}
}

// removeLocked detaches l from its topic and closes it. It reports whether
// l was still active.
func (h *Hub) removeLocked(l *Listener, cause error) bool {
	if !l.close(cause) {
		return false
	}
	ls := h.topics[l.topic]
	for i, cur := range ls {
		if cur == l {
			ls = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(ls) == 0 {
		delete(h.topics, l.topic)
	} else {
		h.topics[l.topic] = ls
	}
	return true
}

// Close closes every listener and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Listener
	for _, ls := range h.topics {
		for _, l := range ls {
			if l.close(ErrClosed) {
				all = append(all, l)
			}
		}
	}
	h.topics = make(map[string][]*Listener)
	h.mu.Unlock()

	for _, l := range all {
		eventbus.Publish(context.Background(), events.ListenerClosed{Topic: l.topic, ListenerID: l.id, Err: ErrClosed})
	}
}

// ListenerCount returns the number of active listeners on topic.
func (h *Hub) ListenerCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Topics returns the topics with at least one active listener, sorted.
func (h *Hub) Topics() []string {
	h.mu.Lock()
	out := make([]string, 0, len(h.topics))
	for t := range h.topics {
		out = append(out, t)
	}
	h.mu.Unlock()
	sort.Strings(out)
	return out
}
