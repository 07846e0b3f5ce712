package runtime

import (
	"sync"
	"sync/atomic"
)

// Feed is an in-process, best-effort broadcast stream.
// A subscriber that does not keep up loses values instead of slowing the publisher.
// A subscription only sees values published after it was taken.
type Feed[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool
}

// Subscription is a scoped handle on a Feed. Cancel must be called to release it.
type Subscription[T any] struct {
	id      uint64
	feed    *Feed[T]
	ch      chan T
	once    sync.Once
	dropped atomic.Uint64
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[uint64]*Subscription[T])}
}

// Subscribe registers a new subscriber with the given channel buffer.
// Subscribing to a closed feed returns an already cancelled subscription.
func (f *Feed[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 0 {
		buffer = 0
	}
	sub := &Subscription[T]{feed: f, ch: make(chan T, buffer)}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	f.nextID++
	sub.id = f.nextID
	f.subs[sub.id] = sub
	return sub
}

// Publish offers v to every subscriber without blocking and returns how many took it.
func (f *Feed[T]) Publish(v T) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for _, sub := range f.subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// Close cancels every subscription; later publishes are dropped.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, sub := range f.subs {
		delete(f.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (f *Feed[T]) unsubscribe(sub *Subscription[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub.id)
	sub.once.Do(func() { close(sub.ch) })
}

// C is closed once the subscription is cancelled or the feed is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel releases the subscription. It is safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.feed.unsubscribe(s)
}

// Dropped counts values this subscriber missed because its buffer was full.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}
