package core

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// cell is one position of the ring: at most one value plus its ownership
// flags, linked to its circular neighbors.
//
// writtenTo is the write claim (false = unclaimed and free for a producer);
// readable is set only after the payload has been stored. Both are false on a
// free cell and both are true while a committed value sits in the cell.
// writtenTo alone is true during the brief hand-off windows between a
// successful claim and the publish, and between a successful take and the
// release of the write claim.
type cell[T any] struct {
	writtenTo atomix.Bool
	readable  atomix.Bool

	// Payload storage. Only written while holding the write claim with
	// readable false; only read after winning the readable flag.
	data T

	next *cell[T]
	prev *cell[T]
}

// claimForWrite atomically claims the cell for writing. Relaxed ordering is
// enough: the payload publication is gated by the readable flag.
func (c *cell[T]) claimForWrite() bool {
	return c.writtenTo.CompareAndSwapRelaxed(false, true)
}

// publish stores the payload and commits it. The caller must hold the write
// claim. The release store pairs with the consumer's acquire on readable.
func (c *cell[T]) publish(v T) {
	c.data = v
	c.readable.StoreRelease(true)
}

// tryTake attempts to win and move out the committed payload.
func (c *cell[T]) tryTake() (T, bool) {
	var zero T
	if !c.readable.CompareAndSwapAcqRel(true, false) {
		return zero, false
	}
	v := c.data
	c.data = zero // release the payload reference
	c.writtenTo.StoreRelaxed(false)
	return v, true
}

func (c *cell[T]) isReadable() bool {
	return c.readable.LoadRelaxed()
}

func (c *cell[T]) isWrittenTo() bool {
	return c.writtenTo.LoadRelaxed()
}

// =============================================================================
// ParallelCircularBuffer: lock-free MPMC ring
// =============================================================================

// ParallelCircularBuffer is a fully lockless multi-producer, multi-consumer
// circular buffer. After construction, TryEnqueue and Dequeue may be called
// from any goroutine.
//
// NOTE: If more than one producer or consumer call into this type
// simultaneously, the order of execution of these calls is not guaranteed. It
// is guaranteed that if elements A and B are pushed to the buffer by some
// goroutine X and read by some goroutine Y, A will be read before B. In other
// words, with a single producer and single consumer this behaves exactly as a
// "normal" FIFO queue.
//
// The cursors are hints, not exact positions: any cell between them may be in
// any state, and both producers and consumers scan forward from their cursor
// until they find a claimable slot.
type ParallelCircularBuffer[T any] struct {
	_ pad
	// The next element for which reading has yet to complete (i.e. it is
	// either unread or reading is in progress).
	readCursor atomix.Uintptr
	_          pad
	// The current element to be written to (i.e. either writing has not yet
	// begun or writing is in progress).
	writeCursor atomix.Uintptr
	_           pad
	// Tracks the number of elements in the queue. Advisory.
	remaining atomix.Int32
	_         pad

	cells []cell[T]
}

// NewParallelCircularBuffer allocates a ring of capacity cells, linked
// circularly, with both cursors at cell zero. Panics if capacity < 2.
func NewParallelCircularBuffer[T any](capacity int) *ParallelCircularBuffer[T] {
	if capacity < 2 {
		panic(fmt.Sprintf("core: ring capacity must be at least 2, got %d", capacity))
	}

	b := &ParallelCircularBuffer[T]{
		cells: make([]cell[T], capacity),
	}
	for i := range b.cells {
		b.cells[i].next = &b.cells[(i+1)%capacity]
		b.cells[i].prev = &b.cells[(i-1+capacity)%capacity]
	}

	first := cellAddr(&b.cells[0])
	b.readCursor.Store(first)
	b.writeCursor.Store(first)
	return b
}

// Capacity returns the number of cells in the ring.
func (b *ParallelCircularBuffer[T]) Capacity() int {
	return len(b.cells)
}

// Len returns the advisory element count.
func (b *ParallelCircularBuffer[T]) Len() int {
	return int(b.remaining.LoadRelaxed())
}

// IsEmpty reports whether the advisory element count is zero.
func (b *ParallelCircularBuffer[T]) IsEmpty() bool {
	return b.remaining.LoadRelaxed() == 0
}

// TryEnqueue tries to enqueue v, taking ownership of it and returning true on
// success. Returns false without blocking when the ring is full.
func (b *ParallelCircularBuffer[T]) TryEnqueue(v T) bool {
	sw := spin.Wait{}
	for {
		localRead := b.loadRead()
		localWrite := b.loadWrite()

		// Walk forward from the write hint, skipping slots that are filled
		// or being filled, until the scan wraps around to the read hint.
		cur := localWrite
		for {
			if cur.claimForWrite() {
				cur.publish(v)
				b.advanceWrite(localWrite)
				b.remaining.Add(1)
				return true
			}
			cur = cur.next
			if cur == localRead {
				break
			}
		}

		// Try again if elements have been read since this scan started.
		if b.loadRead() != localRead {
			sw.Once()
			continue
		}
		return false
	}
}

// Dequeue retrieves the next available queue item, if one exists.
func (b *ParallelCircularBuffer[T]) Dequeue() (T, bool) {
	sw := spin.Wait{}
	for {
		localRead := b.loadRead()
		localWrite := b.loadWrite()

		for cur := localRead; cur.isReadable(); cur = cur.next {
			if v, ok := cur.tryTake(); ok {
				b.advanceRead(localRead)
				b.remaining.Add(-1)
				return v, true
			}
		}

		// Try again if elements have been written since this scan started.
		if b.loadWrite() != localWrite {
			sw.Once()
			continue
		}
		var zero T
		return zero, false
	}
}

// advanceWrite iteratively swings the write cursor forward while it points at
// a now-written cell, stopping as soon as a CAS fails (another producer got
// here first) or the cell is not yet written. Bounded to one lap.
func (b *ParallelCircularBuffer[T]) advanceWrite(localWrite *cell[T]) {
	for i := 0; i < len(b.cells) && localWrite.isWrittenTo(); i++ {
		if !b.writeCursor.CompareAndSwapRelaxed(cellAddr(localWrite), cellAddr(localWrite.next)) {
			return
		}
		localWrite = localWrite.next
	}
}

// advanceRead is the symmetric cursor update for consumers: swing forward
// while the cell behind the cursor is no longer readable. Stops at the write
// hint so an empty ring does not spin a full lap.
func (b *ParallelCircularBuffer[T]) advanceRead(localRead *cell[T]) {
	for i := 0; i < len(b.cells); i++ {
		if localRead.isReadable() || localRead == b.loadWrite() {
			return
		}
		if !b.readCursor.CompareAndSwapRelaxed(cellAddr(localRead), cellAddr(localRead.next)) {
			return
		}
		localRead = localRead.next
	}
}

func (b *ParallelCircularBuffer[T]) loadRead() *cell[T] {
	return (*cell[T])(unsafe.Pointer(b.readCursor.LoadRelaxed()))
}

func (b *ParallelCircularBuffer[T]) loadWrite() *cell[T] {
	return (*cell[T])(unsafe.Pointer(b.writeCursor.LoadRelaxed()))
}

// cellAddr converts a cell pointer to its cursor representation. The cells
// slice keeps every cell reachable, so the uintptr never outlives its target.
func cellAddr[T any](c *cell[T]) uintptr {
	return uintptr(unsafe.Pointer(c))
}
