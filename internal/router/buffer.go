package router

import (
	"sync"
)

// Buffer is a mutex-guarded ring of fixed capacity. A full ring evicts
// its oldest item to admit the new one, so readers always see the most
// recent window in FIFO order.
type Buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	rd     int
	wr     int
	size   int
	limit  int
	closed bool

	totalReceived int64
	totalSent     int64
	dropped       int64
}

// NewBuffer creates a buffer holding at most capacity items.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer[T]{
		ring:  make([]T, capacity),
		limit: capacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Buffer[T]) next(i int) int {
	i++
	if i == b.limit {
		return 0
	}
	return i
}

// popLocked removes the oldest item. Callers hold the lock and have
// checked size > 0.
func (b *Buffer[T]) popLocked() T {
	item := b.ring[b.rd]
	var zero T
	b.ring[b.rd] = zero
	b.rd = b.next(b.rd)
	b.size--
	b.totalSent++
	return item
}

// Send offers an item. ok is false once the buffer is closed; evicted is
// true when the oldest item was discarded to make room.
func (b *Buffer[T]) Send(item T) (ok, evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, false
	}

	if b.size == b.limit {
		var zero T
		b.ring[b.rd] = zero
		b.rd = b.next(b.rd)
		b.size--
		b.dropped++
		evicted = true
	}

	b.ring[b.wr] = item
	b.wr = b.next(b.wr)
	b.size++
	b.totalReceived++

	b.cond.Signal()
	return true, evicted
}

// Receive blocks until an item arrives or the buffer closes. The false
// return means closed and fully drained.
func (b *Buffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.size == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// TryReceive takes an item if one is ready, without blocking.
func (b *Buffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// DrainTo removes up to max items (all of them when max <= 0) and
// returns them oldest first.
func (b *Buffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	n := b.size
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.popLocked()
	}
	return out
}

// Close rejects further sends. Blocked receivers drain what remains,
// then get the closed signal.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len reports how many items are queued.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap reports the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.limit
}

// Dropped reports how many items eviction has discarded.
func (b *Buffer[T]) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.size,
		Capacity:      b.limit,
		TotalReceived: b.totalReceived,
		TotalSent:     b.totalSent,
		Dropped:       b.dropped,
	}
}

// BufferStats is a point-in-time view of a Buffer.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	Dropped       int64
}
