package core

import (
	"time"

	"code.hybscloud.com/atomix"
)

const asyncLoggerPollInterval = 10 * time.Millisecond

type logLevel int

const (
	logLevelDebug logLevel = iota
	logLevelInfo
	logLevelWarn
	logLevelError
)

type logRecord struct {
	level  logLevel
	msg    string
	fields []Field
}

// AsyncLogger accepts log records on any goroutine, queues them in a
// NearlyLocklessFifo, and writes them to the wrapped sink from a dedicated
// goroutine. Producers never block on the sink.
//
// NOTE: Producers wake the drain goroutine through a one-slot buffered
// channel, without locking. A signal sent while the drain goroutine is still
// scanning stays buffered, so the next wait returns at once. The drain
// goroutine also wakes every poll interval without a signal.
type AsyncLogger struct {
	sink    Logger
	records *NearlyLocklessFifo[logRecord]

	canRead    chan struct{}
	shouldStop atomix.Bool
	done       chan struct{}
}

var _ Logger = (*AsyncLogger)(nil)

// NewAsyncLogger wraps sink with an asynchronous writer. capacity sizes the
// backing ring; records beyond it spill into the FIFO's overflow list, so no
// record is ever dropped.
func NewAsyncLogger(sink Logger, capacity int) *AsyncLogger {
	l := &AsyncLogger{
		sink:    sink,
		records: NewNearlyLocklessFifo[logRecord](capacity),
		canRead: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.readAll()
	return l
}

// Debug queues a debug record.
func (l *AsyncLogger) Debug(msg string, fields ...Field) {
	l.enqueue(logRecord{level: logLevelDebug, msg: msg, fields: fields})
}

// Info queues an info record.
func (l *AsyncLogger) Info(msg string, fields ...Field) {
	l.enqueue(logRecord{level: logLevelInfo, msg: msg, fields: fields})
}

// Warn queues a warning record.
func (l *AsyncLogger) Warn(msg string, fields ...Field) {
	l.enqueue(logRecord{level: logLevelWarn, msg: msg, fields: fields})
}

// Error queues an error record.
func (l *AsyncLogger) Error(msg string, fields ...Field) {
	l.enqueue(logRecord{level: logLevelError, msg: msg, fields: fields})
}

func (l *AsyncLogger) enqueue(rec logRecord) {
	l.records.Enqueue(rec)

	select {
	case l.canRead <- struct{}{}:
	default:
	}
}

// StopSoon causes the drain goroutine to exit once all queued records have
// been written.
func (l *AsyncLogger) StopSoon() {
	l.shouldStop.StoreRelease(true)

	select {
	case l.canRead <- struct{}{}:
	default:
	}
}

// Close blocks until every record queued before the call has been written.
func (l *AsyncLogger) Close() {
	l.StopSoon()
	<-l.done
}

func (l *AsyncLogger) readAll() {
	defer close(l.done)

	timer := time.NewTimer(asyncLoggerPollInterval)
	defer timer.Stop()

	for {
		for {
			rec, ok := l.records.Dequeue()
			if !ok {
				break
			}
			l.write(rec)
		}

		if l.shouldStop.LoadAcquire() {
			// Final sweep: records enqueued concurrently with StopSoon.
			for {
				rec, ok := l.records.Dequeue()
				if !ok {
					return
				}
				l.write(rec)
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(asyncLoggerPollInterval)

		select {
		case <-l.canRead:
		case <-timer.C:
		}
	}
}

func (l *AsyncLogger) write(rec logRecord) {
	switch rec.level {
	case logLevelDebug:
		l.sink.Debug(rec.msg, rec.fields...)
	case logLevelInfo:
		l.sink.Info(rec.msg, rec.fields...)
	case logLevelWarn:
		l.sink.Warn(rec.msg, rec.fields...)
	case logLevelError:
		l.sink.Error(rec.msg, rec.fields...)
	}
}
