// Package sink decouples state producers from slow consumers such as the
// MQTT broker and the Home Assistant REST API.
package sink

import (
	"context"
	"sync"
)

// Queue holds the latest pending value per key and hands them to a single
// consumer goroutine. Push never blocks; a value that has not been
// delivered yet is replaced by a newer one with the same key.
type Queue[T any] struct {
	key     func(T) string
	deliver func(T)

	mu      sync.Mutex
	pending map[string]T
	order   []string
	wake    chan struct{}
}

// NewQueue creates a queue that groups values by key and passes them to deliver
func NewQueue[T any](key func(T) string, deliver func(T)) *Queue[T] {
	return &Queue[T]{
		key:     key,
		deliver: deliver,
		pending: make(map[string]T),
		wake:    make(chan struct{}, 1),
	}
}

// Push queues v, replacing any undelivered value with the same key
func (q *Queue[T]) Push(v T) {
	k := q.key(v)

	q.mu.Lock()
	if _, ok := q.pending[k]; !ok {
		q.order = append(q.order, k)
	}
	q.pending[k] = v
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of undelivered values
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run delivers queued values in first-queued order until ctx is done
func (q *Queue[T]) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for {
			v, ok := q.next()
			if !ok {
				break
			}
			q.deliver(v)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (q *Queue[T]) next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.order) == 0 {
		return zero, false
	}
	k := q.order[0]
	q.order = q.order[1:]
	v := q.pending[k]
	delete(q.pending, k)
	return v, true
}
