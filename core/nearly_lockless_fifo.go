package core

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// NearlyLocklessFifo is a fully parallelized multi-producer multi-consumer
// "nearly-lockless" FIFO queue. Enqueue only takes the mutex when the
// underlying ring is full or spilled values have not yet been drained back
// into it. For the expected use case where nowhere near
// capacity elements are ever queued up at the same time, but the queue is
// never empty, this implementation should never lock a mutex.
//
// Enqueue never fails: values that do not fit in the ring spill into a
// mutex-guarded overflow list and are drained back into the ring by the
// maintenance protocol, preserving per-producer FIFO order across spill and
// drain cycles.
type NearlyLocklessFifo[T any] struct {
	// Ring backing the lockless FIFO.
	buffer *ParallelCircularBuffer[T]

	// Values that don't fit in the ring. Drained back into the ring by
	// Maintain once the ring has space again.
	overflowMu sync.Mutex
	overflow   []T

	// Single-holder guard preventing concurrent maintenance.
	overflowFlushing atomix.Bool

	// Set whenever the overflow list is non-empty; cleared only by the
	// maintenance protocol when overflow is fully drained.
	overflowInUse atomix.Bool

	// Monotonic producer counter used to schedule opportunistic maintenance.
	enqueueCounter atomix.Int32

	// Every checkInterval slow-path enqueues trigger Maintain.
	checkInterval int32
}

// NewNearlyLocklessFifo creates a FIFO over a ring of the given capacity.
// Panics if capacity < 2.
func NewNearlyLocklessFifo[T any](capacity int) *NearlyLocklessFifo[T] {
	interval := int32(capacity / 16)
	if interval < 1 {
		interval = 1
	}
	return &NearlyLocklessFifo[T]{
		buffer:        NewParallelCircularBuffer[T](capacity),
		checkInterval: interval,
	}
}

// Capacity returns the capacity of the backing ring.
func (f *NearlyLocklessFifo[T]) Capacity() int {
	return f.buffer.Capacity()
}

// Len returns the advisory total element count, ring plus overflow.
func (f *NearlyLocklessFifo[T]) Len() int {
	return f.buffer.Len() + f.OverflowLen()
}

// OverflowLen returns the current overflow list length.
func (f *NearlyLocklessFifo[T]) OverflowLen() int {
	f.overflowMu.Lock()
	defer f.overflowMu.Unlock()
	return len(f.overflow)
}

// Enqueue adds v to the queue. It always succeeds; when the ring is full the
// value is appended to the overflow list under its mutex.
//
// While the overflow list is in use the fast path is skipped: a value posted
// after a spilled one must land behind it, so it follows it into overflow
// until maintenance has emptied the list. The acquire load pairs with the
// release store that clears the flag after the drain.
func (f *NearlyLocklessFifo[T]) Enqueue(v T) {
	if !f.overflowInUse.LoadAcquire() && f.buffer.TryEnqueue(v) {
		return
	}

	if f.enqueueCounter.Add(1)%f.checkInterval == 0 {
		f.Maintain()
		if !f.overflowInUse.LoadAcquire() && f.buffer.TryEnqueue(v) {
			return
		}
	}

	f.overflowMu.Lock()
	f.overflow = append(f.overflow, v)
	f.overflowInUse.StoreRelease(true)
	f.overflowMu.Unlock()
}

// Dequeue retrieves the next available item, if one exists. When the ring is
// empty but overflow is in use, it opportunistically runs maintenance and
// retries once.
func (f *NearlyLocklessFifo[T]) Dequeue() (T, bool) {
	if v, ok := f.buffer.Dequeue(); ok {
		return v, true
	}

	if f.needsMaintenance() {
		f.Maintain()
		return f.buffer.Dequeue()
	}

	var zero T
	return zero, false
}

// IsEmpty reports whether both the ring and the overflow list are empty.
func (f *NearlyLocklessFifo[T]) IsEmpty() bool {
	if !f.buffer.IsEmpty() {
		return false
	}

	f.overflowMu.Lock()
	defer f.overflowMu.Unlock()
	return len(f.overflow) == 0
}

func (f *NearlyLocklessFifo[T]) needsMaintenance() bool {
	return f.overflowInUse.LoadRelaxed() && !f.overflowFlushing.LoadRelaxed()
}

// Maintain drains the overflow list into the ring while preserving FIFO
// order. At most one maintainer runs at a time; losers return false
// immediately. Maintenance is expected to be performed regularly whenever the
// ring has space, else spilled values may eventually stop flowing.
func (f *NearlyLocklessFifo[T]) Maintain() bool {
	if !f.needsMaintenance() {
		return false
	}

	if !f.overflowFlushing.CompareAndSwapAcqRel(false, true) {
		return false
	}

	if !f.overflowInUse.LoadAcquire() {
		f.overflowFlushing.StoreRelease(false)
		return false
	}

	// Perform all mutations of the ring outside of the mutex section. The
	// local list always sits logically in front of the shared overflow list,
	// so ordering is preserved across the swap.
	f.overflowMu.Lock()
	local := f.overflow
	f.overflow = nil
	f.overflowMu.Unlock()

	drained := 0
	for ; drained < len(local); drained++ {
		if !f.buffer.TryEnqueue(local[drained]) {
			break
		}
	}
	// Erase the drained prefix, releasing payload references.
	var zero T
	for i := 0; i < drained; i++ {
		local[i] = zero
	}
	local = local[drained:]

	// Handle values that arrived in overflow since the swap: keep pushing
	// them only if the local list fully drained, then append whatever is
	// left behind the local remainder and swap back.
	f.overflowMu.Lock()
	incoming := 0
	if len(local) == 0 {
		for ; incoming < len(f.overflow); incoming++ {
			if !f.buffer.TryEnqueue(f.overflow[incoming]) {
				break
			}
		}
	}
	local = append(local, f.overflow[incoming:]...)
	f.overflow = local

	if len(f.overflow) == 0 {
		f.overflowInUse.StoreRelease(false)
	}
	f.overflowMu.Unlock()

	f.overflowFlushing.StoreRelease(false)
	return true
}
