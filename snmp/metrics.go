// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snmp

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a simple atomic counter.
type Counter struct {
	value atomic.Int64
}

// Add adds a value to the counter.
func (c *Counter) Add(delta int64) {
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Reset resets the counter to zero.
func (c *Counter) Reset() {
	c.value.Store(0)
}

// LatencyHistogram tracks send latency in milliseconds.
type LatencyHistogram struct {
	mu      sync.RWMutex
	count   int64
	sum     int64
	min     int64
	max     int64
	buckets []int64
	bounds  []int64
}

// NewLatencyHistogram creates a new latency histogram.
func NewLatencyHistogram() *LatencyHistogram {
	bounds := []int64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	return &LatencyHistogram{
		min:     -1,
		bounds:  bounds,
		buckets: make([]int64, len(bounds)+1),
	}
}

// Observe records a latency observation in milliseconds.
func (h *LatencyHistogram) Observe(latencyMs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += latencyMs
	if h.min < 0 || latencyMs < h.min {
		h.min = latencyMs
	}
	if latencyMs > h.max {
		h.max = latencyMs
	}

	for i, bound := range h.bounds {
		if latencyMs <= bound {
			h.buckets[i]++
			return
		}
	}
	h.buckets[len(h.buckets)-1]++
}

// ObserveDuration records a duration.
func (h *LatencyHistogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Milliseconds())
}

// Stats returns histogram statistics.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := LatencyStats{
		Count:   h.count,
		Sum:     h.sum,
		Min:     h.min,
		Max:     h.max,
		Bounds:  append([]int64(nil), h.bounds...),
		Buckets: append([]int64(nil), h.buckets...),
	}
	if h.count > 0 {
		stats.Avg = float64(h.sum) / float64(h.count)
	}
	return stats
}

func (h *LatencyHistogram) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count, h.sum, h.min, h.max = 0, 0, -1, 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// LatencyStats contains latency statistics. Buckets holds per-bucket
// (non-cumulative) counts; the last bucket counts observations above
// every bound.
type LatencyStats struct {
	Count   int64
	Sum     int64
	Min     int64
	Max     int64
	Avg     float64
	Bounds  []int64
	Buckets []int64
}

// Metrics holds the counters of a Sender or a TrapListener. A single
// Metrics may be shared by several of them.
type Metrics struct {
	// Sender
	TrapsSent    Counter
	SendErrors   Counter
	VarbindsSent Counter
	SendLatency  *LatencyHistogram

	// Listener
	TrapsReceived      Counter
	InformsReceived    Counter
	VarbindsReceived   Counter
	DecodeErrors       Counter
	UnsupportedVersion Counter
	Dropped            Counter
	CommunityMismatch  Counter

	StartTime time.Time
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		SendLatency: NewLatencyHistogram(),
		StartTime:   time.Now(),
	}
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TrapsSent:          m.TrapsSent.Value(),
		SendErrors:         m.SendErrors.Value(),
		VarbindsSent:       m.VarbindsSent.Value(),
		SendLatency:        m.SendLatency.Stats(),
		TrapsReceived:      m.TrapsReceived.Value(),
		InformsReceived:    m.InformsReceived.Value(),
		VarbindsReceived:   m.VarbindsReceived.Value(),
		DecodeErrors:       m.DecodeErrors.Value(),
		UnsupportedVersion: m.UnsupportedVersion.Value(),
		Dropped:            m.Dropped.Value(),
		CommunityMismatch:  m.CommunityMismatch.Value(),
		Uptime:             time.Since(m.StartTime),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TrapsSent          int64
	SendErrors         int64
	VarbindsSent       int64
	SendLatency        LatencyStats
	TrapsReceived      int64
	InformsReceived    int64
	VarbindsReceived   int64
	DecodeErrors       int64
	UnsupportedVersion int64
	Dropped            int64
	CommunityMismatch  int64
	Uptime             time.Duration
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.TrapsSent.Reset()
	m.SendErrors.Reset()
	m.VarbindsSent.Reset()
	m.SendLatency.reset()
	m.TrapsReceived.Reset()
	m.InformsReceived.Reset()
	m.VarbindsReceived.Reset()
	m.DecodeErrors.Reset()
	m.UnsupportedVersion.Reset()
	m.Dropped.Reset()
	m.CommunityMismatch.Reset()
}
