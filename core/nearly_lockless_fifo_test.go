package core

import (
	"runtime"
	"sync"
	"testing"
)

// TestNearlyLocklessFifo_SpillAndDrainPreservesOrder verifies FIFO order
// across a spill into overflow and back
// Given: A FIFO over a ring of capacity 4
// When: 16 values are enqueued without any dequeue, then all are dequeued
// Then: Every enqueue succeeds and values come out in enqueue order
func TestNearlyLocklessFifo_SpillAndDrainPreservesOrder(t *testing.T) {
	f := NewNearlyLocklessFifo[int](4)

	for i := 0; i < 16; i++ {
		f.Enqueue(i)
	}

	if f.IsEmpty() {
		t.Fatal("IsEmpty() = true with 16 values queued")
	}
	if f.OverflowLen() == 0 {
		t.Fatal("OverflowLen() = 0, want spilled values")
	}

	for i := 0; i < 16; i++ {
		v, ok := f.Dequeue()
		if !ok {
			t.Fatalf("Dequeue %d = empty, want value", i)
		}
		if v != i {
			t.Fatalf("Dequeue %d = %d, want %d", i, v, i)
		}
	}

	if v, ok := f.Dequeue(); ok {
		t.Fatalf("Dequeue on empty FIFO = %d, want empty", v)
	}
	if !f.IsEmpty() {
		t.Fatal("IsEmpty() = false after full drain")
	}
}

// TestNearlyLocklessFifo_OverflowStress verifies exact SPSC ordering through
// heavy overflow churn
// Given: A FIFO over a ring of capacity 64
// When: One producer posts 10000 integers as fast as possible while one
// consumer drains concurrently
// Then: The consumer observes 0..9999 in exact order
func TestNearlyLocklessFifo_OverflowStress(t *testing.T) {
	const total = 10000
	f := NewNearlyLocklessFifo[int](64)

	go func() {
		for i := 0; i < total; i++ {
			f.Enqueue(i)
		}
	}()

	next := 0
	for next < total {
		v, ok := f.Dequeue()
		if !ok {
			runtime.Gosched()
			continue
		}
		if v != next {
			t.Fatalf("dequeued %d, want %d", v, next)
		}
		next++
	}

	if v, ok := f.Dequeue(); ok {
		t.Fatalf("Dequeue after drain = %d, want empty", v)
	}
}

// TestNearlyLocklessFifo_EnqueueNeverFails verifies the infallible-submission
// contract far past ring capacity
// Given: A FIFO over a ring of capacity 2
// When: 1000 values are enqueued with no consumer
// Then: All values are retained and dequeue in order
func TestNearlyLocklessFifo_EnqueueNeverFails(t *testing.T) {
	f := NewNearlyLocklessFifo[int](2)

	for i := 0; i < 1000; i++ {
		f.Enqueue(i)
	}

	if got := f.Len(); got != 1000 {
		t.Fatalf("Len() = %d, want 1000", got)
	}

	for i := 0; i < 1000; i++ {
		v, ok := f.Dequeue()
		if !ok || v != i {
			t.Fatalf("Dequeue %d = (%d, %v), want (%d, true)", i, v, ok, i)
		}
	}
}

// TestNearlyLocklessFifo_MaintainDrainsOnlyWhenSpilled verifies when
// maintenance does work
// Given: A FIFO with nothing spilled
// When: Maintain is called
// Then: It reports no work done; after a spill it drains overflow into the ring
func TestNearlyLocklessFifo_MaintainDrainsOnlyWhenSpilled(t *testing.T) {
	f := NewNearlyLocklessFifo[int](8)

	if f.Maintain() {
		t.Fatal("Maintain() = true on an empty FIFO, want false")
	}

	// Fill the ring and spill two values.
	for i := 0; i < 10; i++ {
		f.Enqueue(i)
	}
	if f.OverflowLen() != 2 {
		t.Fatalf("OverflowLen() = %d, want 2", f.OverflowLen())
	}

	// Drain two from the ring; maintenance can now pull the spill back in.
	f.buffer.Dequeue()
	f.buffer.Dequeue()

	if !f.Maintain() {
		t.Fatal("Maintain() = false with drainable overflow, want true")
	}
	if f.OverflowLen() != 0 {
		t.Fatalf("OverflowLen() after Maintain = %d, want 0", f.OverflowLen())
	}

	// Everything is back in the ring, still in order.
	for i := 2; i < 10; i++ {
		v, ok := f.buffer.Dequeue()
		if !ok || v != i {
			t.Fatalf("ring Dequeue = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

// TestNearlyLocklessFifo_ConcurrentMultiProducerMultiConsumer verifies no
// loss and no duplication through spill/drain cycles
// Given: A FIFO over a ring of capacity 64
// When: 4 producers enqueue 5000 unique values each while 4 consumers drain
// Then: Exactly the posted multiset is dequeued
func TestNearlyLocklessFifo_ConcurrentMultiProducerMultiConsumer(t *testing.T) {
	const (
		producers   = 4
		consumers   = 4
		perProducer = 5000
		total       = producers * perProducer
	)

	f := NewNearlyLocklessFifo[int](64)
	results := make(chan int, total)

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(p int) {
			defer producerWg.Done()
			for i := 0; i < perProducer; i++ {
				f.Enqueue(p*perProducer + i)
			}
		}(p)
	}

	var consumerWg sync.WaitGroup
	stop := make(chan struct{})
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				if v, ok := f.Dequeue(); ok {
					results <- v
					continue
				}
				select {
				case <-stop:
					for {
						v, ok := f.Dequeue()
						if !ok {
							return
						}
						results <- v
					}
				default:
					runtime.Gosched()
				}
			}
		}()
	}

	producerWg.Wait()
	close(stop)
	consumerWg.Wait()
	close(results)

	seen := make(map[int]int, total)
	count := 0
	for v := range results {
		seen[v]++
		count++
	}

	if count != total {
		t.Fatalf("dequeued %d values, want %d", count, total)
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("value %d dequeued %d times, want 1", v, n)
		}
	}
	if !f.IsEmpty() {
		t.Fatal("IsEmpty() = false after drain")
	}
}

// TestNearlyLocklessFifo_PerProducerOrder verifies that a producer's values
// are dequeued in its posting order even when other producers interleave
// Given: A FIFO over a ring of capacity 1024 with 4 producers
// When: A single consumer drains everything
// Then: For each producer, its values appear in strictly ascending order
func TestNearlyLocklessFifo_PerProducerOrder(t *testing.T) {
	const (
		producers   = 4
		perProducer = 5000
		total       = producers * perProducer
	)

	type tagged struct {
		producer int
		seq      int
	}

	f := NewNearlyLocklessFifo[tagged](1024)

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(p int) {
			defer producerWg.Done()
			for i := 0; i < perProducer; i++ {
				f.Enqueue(tagged{producer: p, seq: i})
			}
		}(p)
	}

	lastSeen := make([]int, producers)
	for i := range lastSeen {
		lastSeen[i] = -1
	}

	drained := 0
	for drained < total {
		v, ok := f.Dequeue()
		if !ok {
			runtime.Gosched()
			continue
		}
		if v.seq <= lastSeen[v.producer] {
			t.Fatalf("producer %d: seq %d observed after %d", v.producer, v.seq, lastSeen[v.producer])
		}
		lastSeen[v.producer] = v.seq
		drained++
	}

	producerWg.Wait()
	for p, last := range lastSeen {
		if last != perProducer-1 {
			t.Fatalf("producer %d: last seq = %d, want %d", p, last, perProducer-1)
		}
	}
}
