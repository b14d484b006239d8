package stage

import "sync"

// Notifier is a small multicast observer list (spec section 9: "Event
// handlers as multicast callbacks... implemented via an interface-based
// observer list or a channel/subscriber model"). Each Source/Transformer/
// Sink owns one Notifier per event kind (progress, finish, error) and
// Telemetry subscribes to all of them.
//
// Delivery is best-effort and non-blocking: a slow or absent subscriber
// never stalls the stage producing events. Each subscriber channel is
// modestly buffered so a telemetry reader that's momentarily behind
// doesn't miss the next tick, but Emit never blocks waiting for a
// reader to catch up.
type Notifier[T any] struct {
	mu   sync.Mutex
	subs []chan T
}

// NewNotifier returns an empty, ready-to-use Notifier.
func NewNotifier[T any]() *Notifier[T] {
	return &Notifier[T]{}
}

// Subscribe registers a new listener and returns its receive-only channel.
func (n *Notifier[T]) Subscribe() <-chan T {
	ch := make(chan T, 16)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Emit delivers v to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking.
func (n *Notifier[T]) Emit(v T) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Close closes every subscriber channel. Call exactly once, after the
// last Emit, from the owning stage's single close site (spec section 9:
// "every stage's outgoing channel has a single close site").
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
