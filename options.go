package exttable

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/exttable/internal/entitytable"
	"github.com/hupe1980/exttable/internal/resource"
	"github.com/hupe1980/exttable/internal/vmem"
)

// DefaultMaxCapacity is the default number of entries a table reserves.
const DefaultMaxCapacity = 1 << 20

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	maxCapacity      uint32
	segmentPages     int
	compaction       CompactionMode
	memoryLimit      int64
	fatalHandler     func(*FatalError)
	tieringBuiltins  map[TieringBuiltin]uint64
	codeResolver     func(code uint64) uint64
}

// Option configures a table constructor.
type Option func(*options)

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics sink. Defaults to NoopMetricsCollector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxCapacity bounds the number of entries, the read-only segment
// included. It is rounded up to a whole number of segments.
func WithMaxCapacity(entries uint32) Option {
	return func(o *options) {
		o.maxCapacity = entries
	}
}

// WithSegmentPages sets the segment size in OS pages. By default a segment
// is 64 KiB.
func WithSegmentPages(pages int) Option {
	return func(o *options) {
		o.segmentPages = pages
	}
}

// WithCompaction selects the compaction policy. Defaults to CompactionAuto.
func WithCompaction(mode CompactionMode) Option {
	return func(o *options) {
		o.compaction = mode
	}
}

// WithMemoryLimit caps the bytes of committed entries. Growing past the
// limit is fatal like any other capacity exhaustion. Zero means no limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithFatalHandler installs a hook that runs before the table panics with a
// *FatalError. The hook may terminate the process; if it returns the panic
// proceeds.
func WithFatalHandler(fn func(*FatalError)) Option {
	return func(o *options) {
		o.fatalHandler = fn
	}
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		maxCapacity:      DefaultMaxCapacity,
		compaction:       CompactionAuto,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Config translates the options into an engine configuration for entries of
// entrySize bytes. kind names the table in logs.
func (o options) config(kind string, entrySize uintptr) (entitytable.Config, error) {
	pageSize := vmem.PageSize()

	segmentBytes := entitytable.DefaultSegmentBytes
	if o.segmentPages != 0 {
		if o.segmentPages < 0 {
			return entitytable.Config{}, fmt.Errorf("%w: segment pages %d", ErrInvalidConfig, o.segmentPages)
		}
		segmentBytes = o.segmentPages * pageSize
	}
	if segmentBytes < pageSize {
		segmentBytes = pageSize
	}
	if segmentBytes%int(entrySize) != 0 {
		return entitytable.Config{}, fmt.Errorf("%w: segment of %d bytes does not hold whole entries", ErrInvalidConfig, segmentBytes)
	}

	entriesPerSegment := uint32(segmentBytes / int(entrySize))
	maxCapacity := o.maxCapacity
	if maxCapacity > entitytable.MaxEntries {
		return entitytable.Config{}, fmt.Errorf("%w: max capacity %d exceeds %d", ErrInvalidConfig, maxCapacity, entitytable.MaxEntries)
	}
	if maxCapacity < 2*entriesPerSegment {
		maxCapacity = 2 * entriesPerSegment
	}
	if rem := maxCapacity % entriesPerSegment; rem != 0 {
		maxCapacity += entriesPerSegment - rem
	}

	log := o.logger.WithTable(kind)
	fatal := func(fe *FatalError) {
		log.LogFatal(context.Background(), fe)
		if o.fatalHandler != nil {
			o.fatalHandler(fe)
		}
	}

	return entitytable.Config{
		EntriesPerSegment: entriesPerSegment,
		MaxCapacity:       maxCapacity,
		Compaction:        o.compaction,
		Budget:            resource.NewBudget(o.memoryLimit),
		Observer:          newObserver(log, o.metricsCollector),
		Fatal:             fatal,
	}, nil
}

// ExitOnFatal is a fatal handler that terminates the process instead of
// panicking.
func ExitOnFatal(*FatalError) { os.Exit(2) }
