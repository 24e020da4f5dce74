package testutil

import (
	"sync"
	"time"
)

// Metric is one call recorded by RecordingSink.
type Metric struct {
	Kind  string // count, gauge or timing
	Name  string
	Value float64
	Tags  map[string]string
}

// RecordingSink is a statsd.Sink that keeps every metric in memory.
type RecordingSink struct {
	mu      sync.Mutex
	metrics []Metric
}

func (r *RecordingSink) record(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

func (r *RecordingSink) Count(name string, value int64, tags map[string]string) {
	r.record(Metric{Kind: "count", Name: name, Value: float64(value), Tags: tags})
}

func (r *RecordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.record(Metric{Kind: "gauge", Name: name, Value: value, Tags: tags})
}

func (r *RecordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.record(Metric{Kind: "timing", Name: name, Value: float64(value.Milliseconds()), Tags: tags})
}

// Metrics returns a copy of everything recorded so far.
func (r *RecordingSink) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Metric(nil), r.metrics...)
}

// Named returns the recorded metrics with the given name.
func (r *RecordingSink) Named(name string) []Metric {
	var out []Metric
	for _, m := range r.Metrics() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Total sums the count metrics with the given name whose tags include every pair in match.
func (r *RecordingSink) Total(name string, match map[string]string) int64 {
	var total int64
	for _, m := range r.Named(name) {
		if m.Kind != "count" || !hasTags(m.Tags, match) {
			continue
		}
		total += int64(m.Value)
	}
	return total
}

func hasTags(tags, match map[string]string) bool {
	for k, v := range match {
		if tags[k] != v {
			return false
		}
	}
	return true
}
