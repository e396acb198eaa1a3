package authcore

import "sync/atomic"

// MetricID identifies one Engine counter.
type MetricID uint16

const (
	MetricCodeRequested MetricID = iota
	MetricCodeOutstandingRejected
	MetricCodeThrottled
	MetricNotificationFailure
	MetricVerifySuccess
	MetricVerifyFailure
	MetricVerifyAttemptsExceeded
	MetricSessionCreated
	MetricSessionDestroyed
	MetricSessionDestroyedBulk
	MetricResolveSuccess
	MetricResolveFailure
	MetricAccountProvisioned
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the Engine's atomic counters. A nil or disabled Metrics is
// safe to use and records nothing.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if !m.Enabled() || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if !m.Enabled() {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
