package monitor

import (
	"sync"
	"sync/atomic"
)

// Feed holds the latest NodeState and fans new values out to subscribers.
//
// Readers get an atomically swapped snapshot. Subscriber channels hold at
// most one pending value; a slow subscriber sees the newest state, not
// every intermediate one.
type Feed struct {
	current atomic.Pointer[NodeState]

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewFeed creates a feed whose current value is initial.
func NewFeed(initial NodeState) *Feed {
	f := &Feed{subs: make(map[*Subscription]struct{})}
	f.current.Store(&initial)
	return f
}

// Current returns the latest published state.
func (f *Feed) Current() NodeState {
	return *f.current.Load()
}

// Publish replaces the current state and notifies subscribers. It never
// blocks on a subscriber.
func (f *Feed) Publish(s NodeState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current.Store(&s)
	for sub := range f.subs {
		sub.offer(s)
	}
}

// Subscribe registers a new subscriber. The current state is delivered
// first, followed by future updates.
func (f *Feed) Subscribe() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &Subscription{feed: f, ch: make(chan NodeState, 1)}
	sub.ch <- *f.current.Load()
	f.subs[sub] = struct{}{}
	return sub
}

// Subscription is a stream of state updates.
type Subscription struct {
	feed *Feed
	ch   chan NodeState
	once sync.Once
}

// Updates returns the channel on which states are delivered. It is closed
// by Close.
func (s *Subscription) Updates() <-chan NodeState {
	return s.ch
}

// Close unsubscribes and closes the updates channel. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.ch)
		s.feed.mu.Unlock()
	})
}

// offer delivers v, replacing any value the subscriber hasn't read yet.
// Called with feed.mu held, which makes the final send non-blocking.
func (s *Subscription) offer(v NodeState) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}
