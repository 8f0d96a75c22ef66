package core

import (
	"context"
	"testing"
	"time"
)

type counterService struct {
	calls int
}

func (s *counterService) bump() {
	s.calls++
}

// runOnRunner posts fn and blocks until it has executed.
func runOnRunner(t *testing.T, r TaskRunner, fn Task) {
	t.Helper()
	done := make(chan struct{})
	r.PostTask(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task on runner")
	}
}

// TestWeakRef_ValidUntilInvalidated verifies the validity life cycle
// Given: A factory created on a single-threaded runner
// When: A weak ref is dereferenced before and after Invalidate
// Then: Get returns the value, then nil
func TestWeakRef_ValidUntilInvalidated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := CreateSingleThreadedTaskRunner(ctx, 64, quietConfig("weak"))
	defer r.Stop()

	svc := &counterService{}
	var factory *WeakRefFactory[counterService]
	var ref WeakRef[counterService]

	runOnRunner(t, r, func(taskCtx context.Context) {
		factory = NewWeakRefFactory(taskCtx, r, svc)
		ref = factory.WeakRef(taskCtx)
	})

	runOnRunner(t, r, func(taskCtx context.Context) {
		if !ref.IsValid(taskCtx) {
			t.Error("IsValid = false before Invalidate")
		}
		if got := ref.Get(taskCtx); got != svc {
			t.Errorf("Get = %p, want %p", got, svc)
		}
	})

	runOnRunner(t, r, func(taskCtx context.Context) {
		factory.Invalidate(taskCtx)
	})

	runOnRunner(t, r, func(taskCtx context.Context) {
		if ref.IsValid(taskCtx) {
			t.Error("IsValid = true after Invalidate")
		}
		if got := ref.Get(taskCtx); got != nil {
			t.Errorf("Get after Invalidate = %p, want nil", got)
		}
	})
}

// TestWeakRef_OffRunnerAccessPanics verifies the affinity assertion
// Given: A weak ref owned by a runner
// When: It is dereferenced from a goroutine outside the runner
// Then: The access panics
func TestWeakRef_OffRunnerAccessPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := CreateSingleThreadedTaskRunner(ctx, 64, quietConfig("weak-panic"))
	defer r.Stop()

	svc := &counterService{}
	var ref WeakRef[counterService]
	runOnRunner(t, r, func(taskCtx context.Context) {
		ref = NewWeakRefFactory(taskCtx, r, svc).WeakRef(taskCtx)
	})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Get off-runner did not panic")
			}
		}()
		ref.Get(context.Background())
	}()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("NewWeakRefFactory off-runner did not panic")
			}
		}()
		NewWeakRefFactory(context.Background(), r, svc)
	}()
}
