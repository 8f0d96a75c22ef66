package core

import (
	"context"

	"code.hybscloud.com/atomix"
)

// WeakRefFactory vends non-owning references to ptr whose validity it
// controls. Replacement for a shared-ownership pointer that doesn't rely on
// reference counting: the factory owns a validity flag, every WeakRef shares
// it, and Invalidate flips it for all of them at once.
//
// A factory and its refs may only be used from tasks of the runner they were
// created on; any access from another goroutine is a programming error and
// panics.
type WeakRefFactory[T any] struct {
	runner TaskRunner
	valid  *atomix.Bool
	ptr    *T
}

// NewWeakRefFactory creates a factory bound to runner. Must be called from a
// task executing on runner.
func NewWeakRefFactory[T any](ctx context.Context, runner TaskRunner, ptr *T) *WeakRefFactory[T] {
	if runner == nil {
		panic("core: WeakRefFactory requires a task runner")
	}
	assertRunnerAffinity(ctx, runner)

	valid := &atomix.Bool{}
	valid.Store(true)
	return &WeakRefFactory[T]{runner: runner, valid: valid, ptr: ptr}
}

// WeakRef returns a new weak reference sharing this factory's validity flag.
func (f *WeakRefFactory[T]) WeakRef(ctx context.Context) WeakRef[T] {
	assertRunnerAffinity(ctx, f.runner)
	return WeakRef[T]{runner: f.runner, valid: f.valid, ptr: f.ptr}
}

// Invalidate flips the validity flag, invalidating every vended WeakRef.
// Stands in for the factory going out of scope on its owning runner.
func (f *WeakRefFactory[T]) Invalidate(ctx context.Context) {
	assertRunnerAffinity(ctx, f.runner)
	f.valid.Store(false)
}

// WeakRef is a non-owning handle to a value owned elsewhere. Dereference is
// only meaningful while the owning factory has not been invalidated, and is
// only legal from tasks of the owning runner.
type WeakRef[T any] struct {
	runner TaskRunner
	valid  *atomix.Bool
	ptr    *T
}

// IsValid reports whether the owning factory is still alive.
func (w WeakRef[T]) IsValid(ctx context.Context) bool {
	assertRunnerAffinity(ctx, w.runner)
	return w.valid.Load()
}

// Get returns the referenced value, or nil when the factory has been
// invalidated.
func (w WeakRef[T]) Get(ctx context.Context) *T {
	assertRunnerAffinity(ctx, w.runner)
	if !w.valid.Load() {
		return nil
	}
	return w.ptr
}

func assertRunnerAffinity(ctx context.Context, runner TaskRunner) {
	if !runner.IsRunningOnTaskRunner(ctx) {
		panic("core: weak reference accessed off its owning task runner")
	}
}
