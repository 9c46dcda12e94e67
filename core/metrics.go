package core

import (
	"context"
	"sync"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// CounterSnapshot keeps in-process counters, keyed by metric name.
// Used by the health endpoint and tests.
type CounterSnapshot struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewCounterSnapshot() *CounterSnapshot {
	return &CounterSnapshot{counters: map[string]int64{}}
}

func (c *CounterSnapshot) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = map[string]int64{}
	}
	c.counters[name] += value
}

func (*CounterSnapshot) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (c *CounterSnapshot) Counters() map[string]int64 {
	if c == nil {
		return map[string]int64{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counters))
	for key, value := range c.counters {
		out[key] = value
	}
	return out
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ MetricsRecorder = (*CounterSnapshot)(nil)
)
