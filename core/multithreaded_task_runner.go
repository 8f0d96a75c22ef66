package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/jacobsa/timeutil"
)

// MultithreadedTaskRunner is a high-performance TaskRunner implementation for
// the use case of multiple producer goroutines and multiple consumer
// goroutines.
//
// Ready tasks are stored in a NearlyLocklessFifo, which is expected to never
// have contention for a mutex, while delayed tasks are protected by a mutex
// and regularly promoted into the ready queue by a self-posted drain task.
//
// Workers never block on a mutex in steady state; an idle worker backs off
// between dequeue attempts instead of waiting on a condition variable.
type MultithreadedTaskRunner struct {
	taskQueue    *NearlyLocklessFifo[Task]
	delayedTasks *DelayedTaskStore

	// Tracks the dispatch loops currently executing this runner's tasks.
	executingMu      sync.Mutex
	executingWorkers map[int32]struct{}
	nextWorkerID     atomix.Int32

	isRunning atomix.Bool
	stopped   atomix.Bool

	// Decimation for explicit ready-queue maintenance: every
	// maintainInterval dispatch attempts the overflow list is given a chance
	// to drain even when the ring is chronically near-empty.
	dispatchAttempts atomix.Int32
	maintainInterval int32

	name         string
	runnerType   string
	panicHandler PanicHandler
	metrics      Metrics
	logger       Logger
	clock        timeutil.Clock

	executed atomix.Int64
	panicked atomix.Int64
	history  executionHistory

	// self is the runner identity injected into task contexts. Variants that
	// embed this runner point it at themselves so GetCurrentTaskRunner
	// returns the outermost type.
	self TaskRunner
}

var _ TaskRunner = (*MultithreadedTaskRunner)(nil)

// NewMultithreadedTaskRunner creates a runner whose ready queue rings over
// capacity slots. Panics if capacity < 2. Workers are attached by calling
// LoopExecution from as many goroutines as desired.
func NewMultithreadedTaskRunner(capacity int, config *RunnerConfig) *MultithreadedTaskRunner {
	cfg := config.withDefaults()

	maintainInterval := int32(capacity / 8)
	if maintainInterval < 1 {
		maintainInterval = 1
	}

	r := &MultithreadedTaskRunner{
		taskQueue:        NewNearlyLocklessFifo[Task](capacity),
		delayedTasks:     NewDelayedTaskStore(cfg.Clock),
		executingWorkers: make(map[int32]struct{}),
		maintainInterval: maintainInterval,
		name:             cfg.Name,
		runnerType:       "multithreaded",
		panicHandler:     cfg.PanicHandler,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
		clock:            cfg.Clock,
		history:          newExecutionHistory(defaultTaskHistoryCapacity),
	}
	r.self = r

	// The delayed-task drain rides the ready queue itself: it promotes due
	// tasks, then re-posts itself so time keeps advancing even on a
	// single-worker runner.
	r.PostTask(r.enqueueDelayedTasks)

	return r
}

// Name returns the configured runner name.
func (r *MultithreadedTaskRunner) Name() string {
	return r.name
}

// PostTask submits a task for execution. Always succeeds.
func (r *MultithreadedTaskRunner) PostTask(task Task) {
	r.taskQueue.Enqueue(task)
}

// PostDelayedTask submits a task to run no sooner than delay from now.
func (r *MultithreadedTaskRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.delayedTasks.Add(task, delay)
}

// IsRunningOnTaskRunner reports whether ctx belongs to a task currently being
// dispatched by this runner.
func (r *MultithreadedTaskRunner) IsRunningOnTaskRunner(ctx context.Context) bool {
	return GetCurrentTaskRunner(ctx) == r.self
}

// IsRunning reports whether any dispatch loop is currently attached.
func (r *MultithreadedTaskRunner) IsRunning() bool {
	return r.isRunning.LoadAcquire()
}

// IsStopped reports whether StopSoon or Stop has been called.
func (r *MultithreadedTaskRunner) IsStopped() bool {
	return r.stopped.LoadAcquire()
}

// LoopExecution is the worker entry point: it registers the calling goroutine
// as a dispatch loop and executes tasks until the runner is stopped or ctx is
// cancelled.
//
// Calling LoopExecution from inside a task of this same runner is a
// programming error and panics.
func (r *MultithreadedTaskRunner) LoopExecution(ctx context.Context) {
	if r.IsRunningOnTaskRunner(ctx) {
		panic("core: LoopExecution re-entered from a task of the same runner")
	}

	id := r.nextWorkerID.Add(1)
	r.executingMu.Lock()
	r.executingWorkers[id] = struct{}{}
	r.executingMu.Unlock()

	r.isRunning.StoreRelease(true)
	r.logger.Debug("dispatch loop started", F("runner", r.name), F("worker", id))

	loopCtx := withTaskRunner(ctx, r.self)

	backoff := iox.Backoff{}
	for !r.stopped.LoadAcquire() && ctx.Err() == nil {
		if r.tryExecuteTask(loopCtx) {
			backoff.Reset()
		} else {
			backoff.Wait()
		}
	}

	r.executingMu.Lock()
	delete(r.executingWorkers, id)
	if len(r.executingWorkers) == 0 {
		r.isRunning.StoreRelease(false)
	}
	r.executingMu.Unlock()

	r.logger.Debug("dispatch loop exited", F("runner", r.name), F("worker", id))
}

// StopSoon signals every dispatch loop to exit after its current task.
// Queued tasks that have not started are not executed.
func (r *MultithreadedTaskRunner) StopSoon() {
	r.stopped.StoreRelease(true)
}

// Stop signals every dispatch loop to exit and blocks until they have all
// deregistered.
func (r *MultithreadedTaskRunner) Stop() {
	r.StopSoon()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		r.executingMu.Lock()
		remaining := len(r.executingWorkers)
		r.executingMu.Unlock()
		if remaining == 0 {
			return
		}
		<-ticker.C
	}
}

// Stats returns current observability data for this runner.
func (r *MultithreadedTaskRunner) Stats() RunnerStats {
	r.executingMu.Lock()
	workers := len(r.executingWorkers)
	r.executingMu.Unlock()

	return RunnerStats{
		Name:     r.name,
		Type:     r.runnerType,
		Pending:  r.taskQueue.Len(),
		Overflow: r.taskQueue.OverflowLen(),
		Delayed:  r.delayedTasks.Len(),
		Workers:  workers,
		Running:  r.isRunning.LoadAcquire(),
		Executed: r.executed.Load(),
		Panicked: r.panicked.Load(),
	}
}

// RecentTasks returns completed task execution records in newest-first order.
func (r *MultithreadedTaskRunner) RecentTasks(limit int) []TaskExecutionRecord {
	return r.history.Recent(limit)
}

// tryExecuteTask dequeues and runs a single task. Returns false when no task
// was available.
func (r *MultithreadedTaskRunner) tryExecuteTask(loopCtx context.Context) bool {
	if r.dispatchAttempts.Add(1)%r.maintainInterval == 0 {
		r.taskQueue.Maintain()
	}

	task, ok := r.taskQueue.Dequeue()
	if !ok {
		return false
	}

	r.runTask(loopCtx, task)
	return true
}

// runTask executes task, isolating panics at the dispatch boundary so a
// failing task cannot take down the worker.
func (r *MultithreadedTaskRunner) runTask(ctx context.Context, task Task) {
	startedAt := r.clock.Now()

	defer func() {
		finishedAt := r.clock.Now()
		record := TaskExecutionRecord{
			Name:       resolveTaskName(task),
			RunnerName: r.name,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
		}

		if rec := recover(); rec != nil {
			record.Panicked = true
			r.panicked.Add(1)
			r.metrics.RecordTaskPanic(r.name, rec)
			r.panicHandler.HandlePanic(ctx, r.name, rec, debug.Stack())
		}

		r.executed.Add(1)
		r.metrics.RecordTaskDuration(r.name, record.Duration)
		r.history.Add(record)
	}()

	task(ctx)
}

// enqueueDelayedTasks promotes every due delayed task onto the ready queue,
// reports queue depth, then re-posts itself.
//
// NOTE: Cannot be re-posted "with delay" or the delayed tasks would never be
// promoted.
func (r *MultithreadedTaskRunner) enqueueDelayedTasks(ctx context.Context) {
	r.delayedTasks.DrainDue(func(task Task) {
		r.PostTask(task)
	})

	r.metrics.RecordQueueDepth(r.name, r.taskQueue.Len())
	r.metrics.RecordOverflowDepth(r.name, r.taskQueue.OverflowLen())

	if r.stopped.LoadAcquire() {
		return
	}
	r.PostTask(r.enqueueDelayedTasks)
}
