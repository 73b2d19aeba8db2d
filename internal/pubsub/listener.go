package pubsub

import (
	"context"
	"sync"
)

// State is the lifecycle state of a Listener.
type State int

const (
	Active State = iota
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Listener is one open subscription. Next pulls events in publish order.
type Listener struct {
	id    uint64
	topic string
	hub   *Hub

	mu     sync.Mutex
	queue  []any
	state  State
	err    error
	signal chan struct{}
	done   chan struct{}
}

func newListener(h *Hub, id uint64, topic string) *Listener {
	return &Listener{
		id:     id,
		topic:  topic,
		hub:    h,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (l *Listener) ID() uint64    { return l.id }
func (l *Listener) Topic() string { return l.topic }

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns why the listener was closed, or nil if it is active or was
// closed by its owner.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// deliver enqueues event without waiting for the consumer.
func (l *Listener) deliver(event any, maxPending int) error {
	l.mu.Lock()
	if l.state != Active {
		l.mu.Unlock()
		return nil
	}
	if maxPending > 0 && len(l.queue) >= maxPending {
		l.mu.Unlock()
		return ErrOverflow
	}
	l.queue = append(l.queue, event)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return nil
}

// close transitions to Closed, dropping undelivered events. It reports
// whether this call performed the transition.
func (l *Listener) close(cause error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Closed {
		return false
	}
	l.state = Closed
	l.err = cause
	l.queue = nil
	close(l.done)
	return true
}

// Next blocks until an event is available, the listener is closed or ctx is
// done. It returns false once no further event will be produced for this
// call; a cancelled ctx does not close the listener.
func (l *Listener) Next(ctx context.Context) (any, bool) {
	for {
		l.mu.Lock()
		if l.state == Closed {
			l.mu.Unlock()
			return nil, false
		}
		if len(l.queue) > 0 {
			ev := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return ev, true
		}
		l.mu.Unlock()

		select {
		case <-l.signal:
		case <-l.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close unsubscribes the listener. It is safe to call concurrently and more
// than once, and unblocks a pending Next.
func (l *Listener) Close() {
	if l.hub != nil {
		l.hub.Unsubscribe(l)
		return
	}
	l.close(nil)
}

// Done is closed when the listener closes.
func (l *Listener) Done() <-chan struct{} { return l.done }
