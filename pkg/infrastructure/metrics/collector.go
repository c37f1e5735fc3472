// Package metrics records per-run benchmark counters and timings.
package metrics

import (
	"time"
)

// Metric names recorded by the benchmark runner.
const (
	CaptureDuration     = "planbench_capture_duration_seconds"
	CaptureFailures     = "planbench_capture_failures_total"
	ExtractionAmbiguous = "planbench_extraction_ambiguous_total"
	QueriesSkipped      = "planbench_queries_skipped_total"
	RecordsProduced     = "planbench_records_total"
	ExecutionTimeMs     = "planbench_execution_time_ms"
	SpeedupFactor       = "planbench_speedup_factor"
)

// Collector receives runner measurements. Labels are flat key/value pairs,
// e.g. ("engine", "relational"); a trailing key without a value is dropped.
type Collector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer begins a capture timing. Stop observes the elapsed
	// seconds in histogram name and returns them.
	StartTimer(name string, labels ...string) Timer
}

// Timer is a running capture timing.
type Timer interface {
	Stop() float64
}

// NoOpCollector discards every measurement. It is the runner's default when
// no textfile export is configured.
type NoOpCollector struct{}

var _ Collector = (*NoOpCollector)(nil)

// NewNoOpCollector returns a Collector that records nothing.
func NewNoOpCollector() Collector {
	return &NoOpCollector{}
}

func (*NoOpCollector) IncrementCounter(string, ...string) {}
func (*NoOpCollector) RecordHistogram(string, float64, ...string) {}
func (*NoOpCollector) RecordGauge(string, float64, ...string) {}

// StartTimer still measures so callers can log the elapsed time.
func (*NoOpCollector) StartTimer(string, ...string) Timer {
	return elapsedTimer(time.Now())
}

type elapsedTimer time.Time

func (t elapsedTimer) Stop() float64 {
	return time.Since(time.Time(t)).Seconds()
}
