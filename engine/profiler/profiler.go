package profiler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Profiler tracks frame rate, memory, GPU pass and instance buffer statistics.
// Every value is exported as a Prometheus metric on its own registry; a summary is logged at a
// configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	lastFrame      time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	log *zap.Logger
	reg *prometheus.Registry

	frames         prometheus.Counter
	frameSeconds   prometheus.Histogram
	fps            prometheus.Gauge
	heapBytes      prometheus.Gauge
	gcPauseSeconds prometheus.Gauge
	gpuPassSeconds *prometheus.GaugeVec
	instances      *prometheus.GaugeVec
	capacity       *prometheus.GaugeVec
	stagingBuffers *prometheus.GaugeVec
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options such as WithUpdateInterval or WithLogger
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	now := time.Now()
	p := &Profiler{
		lastTime:       now,
		lastFrame:      now,
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
	for _, opt := range options {
		opt(p)
	}
	p.log = logger.Or(p.log)
	if p.reg == nil {
		p.reg = prometheus.NewRegistry()
	}

	p.frames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oxy_frames_total",
		Help: "Number of frames rendered",
	})
	p.frameSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oxy_frame_duration_seconds",
		Help:    "Wall time between consecutive frames",
		Buckets: []float64{0.004, 0.008, 0.0167, 0.033, 0.05, 0.1, 0.25},
	})
	p.fps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oxy_fps",
		Help: "Frames per second over the last update interval",
	})
	p.heapBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oxy_heap_bytes",
		Help: "Bytes of allocated heap objects",
	})
	p.gcPauseSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oxy_gc_pause_max_seconds",
		Help: "Longest GC pause over the last update interval",
	})
	p.gpuPassSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxy_gpu_pass_seconds",
		Help: "GPU time of the last resolved frame, per render pass",
	}, []string{"pass"})
	p.instances = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxy_instances",
		Help: "Live instances per object kind",
	}, []string{"kind"})
	p.capacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxy_instance_capacity",
		Help: "Instance buffer capacity per object kind",
	}, []string{"kind"})
	p.stagingBuffers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxy_staging_buffers",
		Help: "Staging buffers per object kind and state",
	}, []string{"kind", "state"})

	p.reg.MustRegister(p.frames, p.frameSeconds, p.fps, p.heapBytes, p.gcPauseSeconds,
		p.gpuPassSeconds, p.instances, p.capacity, p.stagingBuffers)
	return p
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	p.frames.Inc()
	p.frameSeconds.Observe(currentTime.Sub(p.lastFrame).Seconds())
	p.lastFrame = currentTime

	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	var fps float64
	if elapsed > 0 {
		fps = float64(p.frameCount) / elapsed.Seconds()
	}

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	var allocRateMB float64
	if elapsed > 0 {
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()
	}

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	p.fps.Set(fps)
	p.heapBytes.Set(float64(p.memStats.Alloc))
	p.gcPauseSeconds.Set(maxPause.Seconds())

	p.log.Info("profiler",
		zap.Float64("fps", fps),
		zap.Float64("heapMB", allocMB),
		zap.Float64("allocRateMBps", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Duration("lastPause", lastPause),
		zap.Duration("maxPause", maxPause),
		zap.Float64("sysMB", sysMB),
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// ObservePassTimings records the GPU time of each render pass.
//
// Parameters:
//   - timings: GPU time per pass name, as reported by the Renderer
func (p *Profiler) ObservePassTimings(timings map[string]time.Duration) {
	for pass, d := range timings {
		p.gpuPassSeconds.WithLabelValues(pass).Set(d.Seconds())
	}
}

// ObserveInstances records the instance count, buffer capacity and staging buffer states of one
// object kind.
//
// Parameters:
//   - kind: the object kind label
//   - count: the live instance count
//   - capacity: the instance buffer capacity
//   - stats: the staging pool snapshot
func (p *Profiler) ObserveInstances(kind string, count, capacity int, stats buffer.StagingStats) {
	p.instances.WithLabelValues(kind).Set(float64(count))
	p.capacity.WithLabelValues(kind).Set(float64(capacity))
	p.stagingBuffers.WithLabelValues(kind, "free").Set(float64(stats.Free))
	p.stagingBuffers.WithLabelValues(kind, "pending").Set(float64(stats.Pending))
	p.stagingBuffers.WithLabelValues(kind, "in_flight").Set(float64(stats.InFlight))
}

// ForgetInstances drops the metrics of a kind whose instance manager was torn down.
//
// Parameters:
//   - kind: the object kind label
func (p *Profiler) ForgetInstances(kind string) {
	p.instances.DeleteLabelValues(kind)
	p.capacity.DeleteLabelValues(kind)
	p.stagingBuffers.DeletePartialMatch(prometheus.Labels{"kind": kind})
}

// Registry returns the registry every metric of this profiler is registered with.
//
// Returns:
//   - *prometheus.Registry: the registry
func (p *Profiler) Registry() *prometheus.Registry {
	return p.reg
}

// Handler returns an HTTP handler serving the profiler's metrics in the Prometheus text format.
//
// Returns:
//   - http.Handler: the metrics handler
func (p *Profiler) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}
