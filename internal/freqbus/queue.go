package freqbus

import (
	"errors"
	"sync/atomic"
)

var (
	ErrClosed       = errors.New("freqbus: closed")
	ErrInvalidDepth = errors.New("freqbus: queue depth must be > 0")
)

// Stats tracks value distribution metrics.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Queue is a bounded FIFO with DropNew semantics: TryPush never blocks,
// and when the buffer is full the incoming value is dropped and counted.
type Queue[T any] struct {
	ch      chan T
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewQueue creates a bounded queue. depth must be > 0.
func NewQueue[T any](depth int) (*Queue[T], error) {
	if depth <= 0 {
		return nil, ErrInvalidDepth
	}
	return &Queue[T]{ch: make(chan T, depth)}, nil
}

// TryPush enqueues v without blocking. Returns false if the queue is
// full; the value is dropped and counted, never retried.
//
// Safe to call from interrupt dispatch context.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		q.sent.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// TryPop dequeues the oldest value without blocking. Returns false if
// the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of values currently buffered.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Stats returns sent/dropped counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{Sent: q.sent.Load(), Dropped: q.dropped.Load()}
}
