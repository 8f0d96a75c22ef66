package core

import (
	"context"
	"fmt"

	"code.hybscloud.com/atomix"
)

// SingleThreadedTaskRunner is a TaskRunner for a single consumer goroutine
// and multiple producer goroutines. It is the multithreaded runner restricted
// to exactly one concurrent dispatch loop; calling LoopExecution from more
// than one goroutine at a time is a programming error and panics.
//
// TODO: Write a better optimized variant for the single-consumer case that
// uses less synchronization and blocks when no tasks are available instead of
// backing off.
type SingleThreadedTaskRunner struct {
	*MultithreadedTaskRunner

	loopActive atomix.Int32
}

var _ TaskRunner = (*SingleThreadedTaskRunner)(nil)

// NewSingleThreadedTaskRunner creates a single-consumer runner whose ready
// queue rings over capacity slots. Panics if capacity < 2.
func NewSingleThreadedTaskRunner(capacity int, config *RunnerConfig) *SingleThreadedTaskRunner {
	inner := NewMultithreadedTaskRunner(capacity, config)
	inner.runnerType = "single_threaded"

	r := &SingleThreadedTaskRunner{MultithreadedTaskRunner: inner}
	// Tasks dispatched by the embedded loop must observe the outer type as
	// their runner identity.
	inner.self = r
	return r
}

// LoopExecution runs the dispatch loop on the calling goroutine. Exactly one
// loop may be active at a time.
func (r *SingleThreadedTaskRunner) LoopExecution(ctx context.Context) {
	n := r.loopActive.Add(1)
	defer r.loopActive.Add(-1)
	if n > 1 {
		panic(fmt.Sprintf("core: SingleThreadedTaskRunner: concurrent LoopExecution detected (count=%d)", n))
	}

	r.MultithreadedTaskRunner.LoopExecution(ctx)
}
