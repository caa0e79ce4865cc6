package freqbus

import "sync"

// Holder is a single-slot latest-value cell with DropOld semantics.
// Set always succeeds, replacing the stored value. Consumers peek the
// newest value without consuming it, so multiple tasks can observe the
// latest publication without contending over ownership.
type Holder[T any] struct {
	mu     sync.RWMutex
	cond   *sync.Cond
	val    *T
	seq    uint64
	closed bool
}

// NewHolder creates an empty holder.
func NewHolder[T any]() *Holder[T] {
	h := &Holder[T]{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Set replaces the stored value. Always succeeds unless closed.
func (h *Holder[T]) Set(v T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	h.val = &v
	h.seq++
	h.cond.Broadcast()
	return nil
}

// Peek returns the latest value without blocking and without consuming
// it. Returns false if nothing has been published yet.
func (h *Holder[T]) Peek() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.val == nil {
		var zero T
		return zero, false
	}
	return *h.val, true
}

// Receive blocks until a value is available, then returns the latest.
// Returns the zero value after Close.
func (h *Holder[T]) Receive() T {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.val == nil && !h.closed {
		h.cond.Wait()
	}

	if h.closed {
		var zero T
		return zero
	}
	return *h.val
}

// Seq returns the number of publications so far.
func (h *Holder[T]) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Close shuts down the holder, waking any blocked Receive.
func (h *Holder[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.cond.Broadcast()
}
