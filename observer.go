package exttable

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// tableObserver forwards engine events to the logger and metrics collector.
// Sweep logs are throttled: a busy collector sweeps many times per second.
type tableObserver struct {
	logger   *Logger
	metrics  MetricsCollector
	sweepLog rate.Sometimes
}

func newObserver(logger *Logger, metrics MetricsCollector) *tableObserver {
	return &tableObserver{
		logger:   logger,
		metrics:  metrics,
		sweepLog: rate.Sometimes{First: 8, Interval: time.Second},
	}
}

func (o *tableObserver) SegmentAllocated(space string, segment, capacity uint32) {
	o.logger.LogGrow(context.Background(), space, segment, capacity)
	o.metrics.RecordGrow(space, capacity)
}

func (o *tableObserver) CompactionStarted(space string, start uint32, segments int) {
	o.logger.LogCompactionStarted(context.Background(), space, start, segments)
	o.metrics.RecordCompaction(space, CompactionEventStarted)
}

func (o *tableObserver) CompactionAborted(space string, start uint32) {
	o.logger.LogCompactionAborted(context.Background(), space, start)
	o.metrics.RecordCompaction(space, CompactionEventAborted)
}

func (o *tableObserver) Swept(stats SweepStats) {
	o.metrics.RecordSweep(stats)
	if stats.Compacted {
		o.metrics.RecordCompaction(stats.Space, CompactionEventCompleted)
	}
	o.sweepLog.Do(func() {
		o.logger.LogSweep(context.Background(), stats)
	})
}
