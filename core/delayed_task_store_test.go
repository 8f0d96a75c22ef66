package core

import (
	"context"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
)

func simulatedClockAt(t time.Time) *timeutil.SimulatedClock {
	var clock timeutil.SimulatedClock
	clock.SetTime(t)
	return &clock
}

// TestDelayedTaskStore_DrainDuePromotesOnlyDueTasks verifies the due-time
// gate
// Given: Tasks scheduled 10ms and 50ms out on a simulated clock
// When: DrainDue runs at t0, t0+10ms, and t0+50ms
// Then: Nothing, then only the 10ms task, then the 50ms task is promoted
func TestDelayedTaskStore_DrainDuePromotesOnlyDueTasks(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := simulatedClockAt(start)
	s := NewDelayedTaskStore(clock)

	var promoted []string
	post := func(task Task) {
		task(context.Background())
	}

	s.Add(func(ctx context.Context) { promoted = append(promoted, "A") }, 50*time.Millisecond)
	s.Add(func(ctx context.Context) { promoted = append(promoted, "B") }, 10*time.Millisecond)

	runDue := func() {
		s.DrainDue(func(task Task) { post(task) })
	}

	runDue()
	if len(promoted) != 0 {
		t.Fatalf("promoted %v before any delay elapsed, want none", promoted)
	}

	clock.AdvanceTime(10 * time.Millisecond)
	runDue()
	if len(promoted) != 1 || promoted[0] != "B" {
		t.Fatalf("promoted %v at +10ms, want [B]", promoted)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d at +10ms, want 1", s.Len())
	}

	clock.AdvanceTime(40 * time.Millisecond)
	runDue()
	if len(promoted) != 2 || promoted[1] != "A" {
		t.Fatalf("promoted %v at +50ms, want [B A]", promoted)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after full drain, want 0", s.Len())
	}
}

// TestDelayedTaskStore_DrainDuePostsInDueOrder verifies promotion order when
// several tasks are due at once
// Given: Tasks scheduled 30ms, 10ms, and 20ms out
// When: The clock jumps past all of them and DrainDue runs once
// Then: Tasks are promoted nearest-due first
func TestDelayedTaskStore_DrainDuePostsInDueOrder(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := simulatedClockAt(start)
	s := NewDelayedTaskStore(clock)

	var order []int
	add := func(id int, delay time.Duration) {
		s.Add(func(ctx context.Context) { order = append(order, id) }, delay)
	}
	add(30, 30*time.Millisecond)
	add(10, 10*time.Millisecond)
	add(20, 20*time.Millisecond)

	clock.AdvanceTime(60 * time.Millisecond)
	s.DrainDue(func(task Task) { task(context.Background()) })

	want := []int{10, 20, 30}
	if len(order) != len(want) {
		t.Fatalf("promoted %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("promoted %v, want %v", order, want)
		}
	}
}

// TestDelayedTaskStore_NilClockUsesWallClock verifies the real-clock default
// Given: A store constructed with a nil clock
// When: A task is added with zero delay and DrainDue runs
// Then: The task is promoted immediately
func TestDelayedTaskStore_NilClockUsesWallClock(t *testing.T) {
	s := NewDelayedTaskStore(nil)

	ran := false
	s.Add(func(ctx context.Context) { ran = true }, 0)
	s.DrainDue(func(task Task) { task(context.Background()) })

	if !ran {
		t.Fatal("zero-delay task was not promoted by DrainDue")
	}
}
