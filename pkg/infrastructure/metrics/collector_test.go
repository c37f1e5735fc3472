package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpCollector(t *testing.T) {
	collector := NewNoOpCollector()

	assert.NotPanics(t, func() {
		collector.IncrementCounter(CaptureFailures, "engine", "relational")
		collector.RecordHistogram(CaptureDuration, 0.5, "engine", "document")
		collector.RecordGauge(SpeedupFactor, 2.5, "query", "business_by_city")
	})
}

func TestNoOpCollector_StartTimer(t *testing.T) {
	timer := NewNoOpCollector().StartTimer(CaptureDuration, "engine", "relational")

	time.Sleep(10 * time.Millisecond)

	duration := timer.Stop()
	assert.Greater(t, duration, 0.0, "Timer duration should be greater than 0")
	assert.Less(t, duration, 1.0, "Timer duration should be less than 1 second")
}
