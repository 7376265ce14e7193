// Package metrics wires the buffer pool's counters into an injected
// OpenTelemetry meter; the extendible hash table has no counters here. It
// follows the same
// named-instrument-per-counter construction this lineage uses for its
// gRPC gateway metrics.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// BufferPoolMetrics holds the OTel instruments the buffer pool reports
// through. All fields are safe to use concurrently; counters are
// diagnostic only and never gate correctness.
type BufferPoolMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	flushes   metric.Int64Counter
}

// NewBufferPoolMetrics constructs the instrument set from meter. A nil
// meter yields a metrics value whose methods are safe no-ops.
func NewBufferPoolMetrics(meter metric.Meter) (*BufferPoolMetrics, error) {
	if meter == nil {
		return &BufferPoolMetrics{}, nil
	}
	hits, err := meter.Int64Counter("pagecache.buffer_pool.hits",
		metric.WithDescription("pages served from a resident frame without a disk read"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64Counter("pagecache.buffer_pool.misses",
		metric.WithDescription("pages that required a disk read to become resident"))
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64Counter("pagecache.buffer_pool.evictions",
		metric.WithDescription("frames reclaimed from the replacer to service a new page"))
	if err != nil {
		return nil, err
	}
	flushes, err := meter.Int64Counter("pagecache.buffer_pool.flushes",
		metric.WithDescription("pages written back to disk, whether on eviction or explicit flush"))
	if err != nil {
		return nil, err
	}
	return &BufferPoolMetrics{hits: hits, misses: misses, evictions: evictions, flushes: flushes}, nil
}

func (m *BufferPoolMetrics) RecordHit() {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.Add(context.Background(), 1)
}

func (m *BufferPoolMetrics) RecordMiss() {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.Add(context.Background(), 1)
}

func (m *BufferPoolMetrics) RecordEviction() {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.Add(context.Background(), 1)
}

func (m *BufferPoolMetrics) RecordFlush() {
	if m == nil || m.flushes == nil {
		return
	}
	m.flushes.Add(context.Background(), 1)
}
