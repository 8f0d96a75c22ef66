package taskrunner

import "github.com/parallelkit/taskrunner/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskrunner package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// MultithreadedTaskRunner dispatches tasks to a pool of worker goroutines
type MultithreadedTaskRunner = core.MultithreadedTaskRunner

// SingleThreadedTaskRunner restricts dispatch to one worker goroutine
type SingleThreadedTaskRunner = core.SingleThreadedTaskRunner

// RunnerConfig holds optional runner collaborators (panic handler, metrics,
// logger, clock)
type RunnerConfig = core.RunnerConfig

// RunnerStats is a point-in-time observability snapshot of a runner
type RunnerStats = core.RunnerStats

// Logger is the structured logging seam
type Logger = core.Logger

// Field is a structured logging key-value pair
type Field = core.Field

// DefaultRingCapacity is the default ready-queue ring size
const DefaultRingCapacity = core.DefaultRingCapacity

// Convenience re-exports
var (
	GetCurrentTaskRunner = core.GetCurrentTaskRunner
	DefaultRunnerConfig  = core.DefaultRunnerConfig
	SetDefaultLogger     = core.SetDefaultLogger
	PostTaskAndReply     = core.PostTaskAndReply
)

// NewMultithreadedTaskRunner creates a multi-consumer runner; attach workers
// by calling LoopExecution from as many goroutines as desired.
func NewMultithreadedTaskRunner(capacity int, config *RunnerConfig) *MultithreadedTaskRunner {
	return core.NewMultithreadedTaskRunner(capacity, config)
}

// NewSingleThreadedTaskRunner creates a single-consumer runner; the caller
// owns the worker goroutine and runs LoopExecution on it.
func NewSingleThreadedTaskRunner(capacity int, config *RunnerConfig) *SingleThreadedTaskRunner {
	return core.NewSingleThreadedTaskRunner(capacity, config)
}
