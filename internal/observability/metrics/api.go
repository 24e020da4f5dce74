// Package metrics emits the standard API client metrics on a statsd.Sink.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/oculus-oct/oculus-go/internal/observability/errors"
	"github.com/oculus-oct/oculus-go/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultShared  = "shared"
)

// RequestMetric describes one round trip through the request pipeline.
type RequestMetric struct {
	Method   string
	Endpoint string
	Status   int
	Retried  bool
	Duration time.Duration
	Err      error
}

// EmitRequest emits api.request counters and timings.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method":   in.Method,
		"endpoint": in.Endpoint,
		"retried":  strconv.FormatBool(in.Retried),
		"result":   ResultSuccess,
	}
	if in.Status > 0 {
		tags["status"] = strconv.Itoa(in.Status)
	}
	if in.Err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("api.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("api.request.duration", in.Duration, CloneTags(tags))
	}
}

// RefreshMetric describes one credential refresh attempt.
type RefreshMetric struct {
	// Shared is true when the caller joined a refresh already in flight.
	Shared   bool
	Duration time.Duration
	Err      error
}

// EmitRefresh emits api.refresh counters and timings.
func EmitRefresh(sink statsd.Sink, in RefreshMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Shared:
		result = ResultShared
	}
	tags := map[string]string{"result": result}

	sink.Count("api.refresh", 1, tags)
	if in.Duration > 0 && !in.Shared {
		sink.Timing("api.refresh.duration", in.Duration, CloneTags(tags))
	}
}

// EmitSessionLost counts sessions torn down after an irrecoverable auth failure.
func EmitSessionLost(sink statsd.Sink, reason string) {
	if sink == nil {
		return
	}
	sink.Count("session.lost", 1, map[string]string{"reason": reason})
}

// EmitSessionState records the session state transition for dashboards.
func EmitSessionState(sink statsd.Sink, state string) {
	if sink == nil {
		return
	}
	sink.Count("session.state", 1, map[string]string{"state": state})
}

// EmitCache counts analysis cache lookups.
func EmitCache(sink statsd.Sink, hit bool) {
	if sink == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	sink.Count("cache.analysis", 1, map[string]string{"result": result})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
