package core

import "time"

// TimeOperation measures the wall time of an operation and logs it when the
// returned stop function is called.
//
// Usage:
//
//	defer core.TimeOperation("rebuild index")()
func TimeOperation(name string) func() {
	return TimeOperationWith(DefaultLoggerRef(), name)
}

// TimeOperationWith is TimeOperation writing to an explicit logger.
func TimeOperationWith(logger Logger, name string) func() {
	start := time.Now()
	return func() {
		logger.Debug("operation timed",
			F("operation", name),
			F("elapsed", time.Since(start)),
		)
	}
}
