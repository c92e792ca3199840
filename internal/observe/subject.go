// Package observe provides a typed publish/subscribe subject used to
// propagate state changes between components.
package observe

import "sync"

// Subject delivers published values to every current subscriber.
//
// Handlers run synchronously on the publishing goroutine, in subscription
// order, over a snapshot of the subscriber list taken at publish time.
// A handler may unsubscribe itself (or others) while being called.
type Subject[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// NewSubject creates an empty subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (s *Subject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, subscription[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// Publish hands v to every subscriber.
func (s *Subject[T]) Publish(v T) {
	s.mu.RLock()
	snapshot := make([]subscription[T], len(s.handlers))
	copy(snapshot, s.handlers)
	s.mu.RUnlock()

	for _, sub := range snapshot {
		sub.fn(v)
	}
}

// Len reports the number of active subscribers.
func (s *Subject[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.handlers {
		if sub.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}
