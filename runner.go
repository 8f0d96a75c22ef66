package taskrunner

import (
	"context"
	"sync"

	"github.com/parallelkit/taskrunner/core"
)

// CreateSingleThreadedTaskRunner creates a single-consumer runner and spawns
// its worker goroutine. See core.CreateSingleThreadedTaskRunner.
func CreateSingleThreadedTaskRunner(ctx context.Context, capacity int, config *RunnerConfig) *SingleThreadedTaskRunner {
	return core.CreateSingleThreadedTaskRunner(ctx, capacity, config)
}

// CreateMultithreadedTaskRunner creates a multi-consumer runner and spawns
// its worker goroutines. Returns nil when workers is not positive. See
// core.CreateMultithreadedTaskRunner.
func CreateMultithreadedTaskRunner(ctx context.Context, workers int, capacity int, config *RunnerConfig) *MultithreadedTaskRunner {
	return core.CreateMultithreadedTaskRunner(ctx, workers, capacity, config)
}

// =============================================================================
// Global Task Runner Helper (Singleton)
// =============================================================================

var (
	globalRunner *MultithreadedTaskRunner
	globalCancel context.CancelFunc
	globalMu     sync.Mutex
)

// InitGlobalTaskRunner initializes the global multithreaded runner with the
// given worker count and ring capacity. Repeated calls are no-ops.
func InitGlobalTaskRunner(workers int, capacity int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRunner != nil {
		return // Already initialized
	}

	ctx, cancel := context.WithCancel(context.Background())
	config := core.DefaultRunnerConfig()
	config.Name = "global"

	globalRunner = core.CreateMultithreadedTaskRunner(ctx, workers, capacity, config)
	if globalRunner == nil {
		cancel()
		panic("taskrunner: InitGlobalTaskRunner requires a positive worker count")
	}
	globalCancel = cancel
}

// GetGlobalTaskRunner returns the global runner instance.
// It panics if InitGlobalTaskRunner has not been called.
func GetGlobalTaskRunner() *MultithreadedTaskRunner {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRunner == nil {
		panic("taskrunner: global runner not initialized. Call InitGlobalTaskRunner() first.")
	}
	return globalRunner
}

// ShutdownGlobalTaskRunner stops the global runner and its workers.
func ShutdownGlobalTaskRunner() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRunner != nil {
		globalRunner.Stop()
		globalCancel()
		globalRunner = nil
		globalCancel = nil
	}
}
