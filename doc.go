// Package taskrunner provides a nearly-lockless task execution library for Go.
//
// Callers post units of work from any goroutine; workers dispatch them in
// posting order per producer. Ready tasks flow through a lock-free circular
// buffer backed by a mutex-guarded overflow list, so posting never fails. A
// post locks the overflow mutex only when the ring is full or earlier spilled
// tasks are still waiting in the overflow list. Delayed tasks are promoted
// onto the ready queue by a drain task that rides the queue itself.
//
// # Quick Start
//
// Initialize the global runner at application startup:
//
//	taskrunner.InitGlobalTaskRunner(4, taskrunner.DefaultRingCapacity)
//	defer taskrunner.ShutdownGlobalTaskRunner()
//
//	runner := taskrunner.GetGlobalTaskRunner()
//	runner.PostTask(func(ctx context.Context) {
//		// Your code here
//	})
//	runner.PostDelayedTask(cleanup, 5*time.Second)
//
// Or create a dedicated runner:
//
//	runner := taskrunner.CreateSingleThreadedTaskRunner(
//		context.Background(), 1024, nil)
//
// # Ordering
//
// Tasks posted by a single goroutine are dispatched in posting order. There
// is no ordering guarantee across producers, and two tasks dispatched to
// different workers may complete in any order relative to each other.
//
// # Failure Handling
//
// A panicking task never takes down its worker: the panic is recovered at the
// dispatch boundary, handed to the configured PanicHandler, and the worker
// keeps dispatching.
package taskrunner
