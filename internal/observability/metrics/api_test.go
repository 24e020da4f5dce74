package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
	"github.com/oculus-oct/oculus-go/internal/testutil"
)

func TestEmitRequest(t *testing.T) {
	sink := &testutil.RecordingSink{}
	EmitRequest(sink, RequestMetric{
		Method:   "GET",
		Endpoint: "doctors/me",
		Status:   200,
		Retried:  true,
		Duration: 15 * time.Millisecond,
	})

	counts := sink.Named("api.request")
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"method":   "GET",
		"endpoint": "doctors/me",
		"retried":  "true",
		"result":   ResultSuccess,
		"status":   "200",
	}, counts[0].Tags)

	timings := sink.Named("api.request.duration")
	require.Len(t, timings, 1)
	assert.Equal(t, "timing", timings[0].Kind)
	assert.InDelta(t, 15, timings[0].Value, 0.1)
}

func TestEmitRequest_ErrorClass(t *testing.T) {
	sink := &testutil.RecordingSink{}
	EmitRequest(sink, RequestMetric{Method: "POST", Endpoint: "reviews", Err: apperrors.FromTransport(errors.New("dial tcp: refused"))})

	counts := sink.Named("api.request")
	require.Len(t, counts, 1)
	assert.Equal(t, ResultError, counts[0].Tags["result"])
	assert.Equal(t, "network", counts[0].Tags["error_class"])
	_, hasStatus := counts[0].Tags["status"]
	assert.False(t, hasStatus, "no status without a response")
	assert.Empty(t, sink.Named("api.request.duration"))
}

func TestEmitRefresh(t *testing.T) {
	sink := &testutil.RecordingSink{}
	EmitRefresh(sink, RefreshMetric{Duration: time.Millisecond})
	EmitRefresh(sink, RefreshMetric{Shared: true, Duration: time.Millisecond})
	EmitRefresh(sink, RefreshMetric{Err: errors.New("denied")})

	assert.EqualValues(t, 1, sink.Total("api.refresh", map[string]string{"result": ResultSuccess}))
	assert.EqualValues(t, 1, sink.Total("api.refresh", map[string]string{"result": ResultShared}))
	assert.EqualValues(t, 1, sink.Total("api.refresh", map[string]string{"result": ResultError}))
	assert.Len(t, sink.Named("api.refresh.duration"), 1, "shared joins are not timed")
}

func TestEmitSessionAndCache(t *testing.T) {
	sink := &testutil.RecordingSink{}
	EmitSessionLost(sink, "refresh_failed")
	EmitSessionState(sink, "confirmed")
	EmitCache(sink, true)
	EmitCache(sink, false)
	EmitCache(sink, false)

	assert.EqualValues(t, 1, sink.Total("session.lost", map[string]string{"reason": "refresh_failed"}))
	assert.EqualValues(t, 1, sink.Total("session.state", map[string]string{"state": "confirmed"}))
	assert.EqualValues(t, 1, sink.Total("cache.analysis", map[string]string{"result": "hit"}))
	assert.EqualValues(t, 2, sink.Total("cache.analysis", map[string]string{"result": "miss"}))
}

func TestEmitters_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitRequest(nil, RequestMetric{})
		EmitRefresh(nil, RefreshMetric{})
		EmitSessionLost(nil, "x")
		EmitSessionState(nil, "x")
		EmitCache(nil, true)
	})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
