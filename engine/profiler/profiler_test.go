package profiler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickLogsAtInterval(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProfiler(WithUpdateInterval(time.Hour), WithLogger(zap.New(core)))

	assert.False(t, p.Tick())
	assert.False(t, p.Tick())
	assert.Equal(t, 2.0, testutil.ToFloat64(p.frames))
	assert.Equal(t, 0, logs.Len())

	p.updateInterval = 0
	assert.True(t, p.Tick())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "profiler", logs.All()[0].Message)
	assert.Contains(t, logs.All()[0].ContextMap(), "fps")
	assert.Equal(t, 0, p.frameCount)
	assert.Greater(t, testutil.ToFloat64(p.heapBytes), 0.0)
}

func TestObserveMetrics(t *testing.T) {
	p := NewProfiler()
	p.ObservePassTimings(map[string]time.Duration{"main": 2 * time.Millisecond})
	assert.InDelta(t, 0.002, testutil.ToFloat64(p.gpuPassSeconds.WithLabelValues("main")), 1e-9)

	p.ObserveInstances("Cube", 3, 4, buffer.StagingStats{Free: 1, InFlight: 2})
	assert.Equal(t, 3.0, testutil.ToFloat64(p.instances.WithLabelValues("Cube")))
	assert.Equal(t, 4.0, testutil.ToFloat64(p.capacity.WithLabelValues("Cube")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.stagingBuffers.WithLabelValues("Cube", "in_flight")))
	assert.Equal(t, 3, testutil.CollectAndCount(p.stagingBuffers))

	p.ForgetInstances("Cube")
	assert.Equal(t, 0, testutil.CollectAndCount(p.stagingBuffers))
	assert.Equal(t, 0, testutil.CollectAndCount(p.instances))
}

func TestHandlerServesMetrics(t *testing.T) {
	p := NewProfiler()
	p.Tick()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "oxy_frames_total 1"))
}
