package core

import (
	"context"
	"time"

	"github.com/jacobsa/timeutil"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (may contain task runner info)
	// - runnerName: The name of the task runner where the panic occurred
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through the default logger.
type DefaultPanicHandler struct{}

// HandlePanic logs the panic value and stack trace.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, panicInfo any, stackTrace []byte) {
	DefaultLoggerRef().Error("task panicked",
		F("runner", runnerName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution
// performance; none of them are on the lock-free fast path.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(runnerName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordQueueDepth records the current ready-queue depth (ring plus
	// overflow). Called periodically from the runner's maintenance task.
	RecordQueueDepth(runnerName string, depth int)

	// RecordOverflowDepth records the current overflow list length. A
	// persistently non-zero value means the ring is undersized.
	RecordOverflowDepth(runnerName string, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(runnerName string, duration time.Duration) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int) {}

// RecordOverflowDepth is a no-op.
func (m *NilMetrics) RecordOverflowDepth(runnerName string, depth int) {}

// =============================================================================
// RunnerConfig: Configuration for task runners
// =============================================================================

// RunnerConfig holds optional collaborators for a task runner.
// All fields are optional; zero values are replaced with defaults.
type RunnerConfig struct {
	// Name labels the runner in logs and metrics.
	Name string

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics receives task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// Logger receives runner lifecycle logs. Defaults to the process logger.
	Logger Logger

	// Clock supplies the current time for delayed tasks. Defaults to the
	// real wall clock; tests inject a timeutil.SimulatedClock.
	Clock timeutil.Clock
}

// DefaultRunnerConfig returns a config with default collaborators.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
		Clock:        timeutil.RealClock(),
	}
}

func (c *RunnerConfig) withDefaults() RunnerConfig {
	out := RunnerConfig{}
	if c != nil {
		out = *c
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Logger == nil {
		out.Logger = DefaultLoggerRef()
	}
	if out.Clock == nil {
		out.Clock = timeutil.RealClock()
	}
	return out
}
