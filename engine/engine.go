package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/scene"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/window"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	resizeChannel   chan [2]int        // Latest pending canvas size, applied by the render loop

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	log      *zap.Logger

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool
	metricsAddress   string
	observedKinds    map[string]struct{}

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	mu     *sync.Mutex
	scenes map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        int           // frames to render before quitting; 0 = until quit

	errMu *sync.Mutex
	err   error
}

// Engine drives frames. Each render frame updates every scene in ascending z-index order, then
// runs the Renderer's update and render steps and feeds the profiler. A separate fixed-rate tick
// loop runs the tick callback.
type Engine interface {
	// Window returns the host window, nil for windowless runs.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer every frame is drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Profiler returns the frame profiler.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// EnableProfiler enables per-frame profiling.
	EnableProfiler()

	// DisableProfiler disables per-frame profiling.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are updated in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining update order (lower first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key. The scene is not released.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Run starts the tick and render loops and blocks until the window closes, Quit is called, the
	// frame limit of WithMaxFrames is reached or a frame fails.
	//
	// Returns:
	//   - error: the first frame error (wrapping gpu.ErrDeviceLost or gpu.ErrResource for resource
	//     failures), or nil for a clean shutdown
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release releases every registered scene, the renderer and the window.
	//
	// Returns:
	//   - error: the combined release errors
	Release() error
}

var _ Engine = &engine{}

// NewEngine creates a new Engine drawing with the given renderer.
//
// Parameters:
//   - r: the renderer (required)
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	if r == nil {
		panic("engine: NewEngine requires a non-nil renderer")
	}
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan [2]int, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		observedKinds:   make(map[string]struct{}),
		engineTickRate:  time.Second / 60,
		mu:              &sync.Mutex{},
		scenes:          make(map[int]scene.Scene),
		errMu:           &sync.Mutex{},
	}

	for _, opt := range options {
		opt(e)
	}
	e.log = logger.Or(e.log)
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.log))
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.requestResize)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() error {
	e.running.Store(true)
	defer e.running.Store(false)

	srv := e.serveMetrics()
	e.handle()

	if e.window != nil {
		// Window events must be pumped on the thread that created the window.
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				e.window.RequestClose()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}

	e.wg.Wait()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			e.log.Warn("metrics server shutdown", zap.Error(err))
		}
		cancel()
	}
	return e.firstError()
}

// serveMetrics starts the profiler's HTTP endpoint when an address is configured.
func (e *engine) serveMetrics() *http.Server {
	if e.metricsAddress == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.profiler.Handler())
	srv := &http.Server{Addr: e.metricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server", zap.String("address", e.metricsAddress), zap.Error(err))
		}
	}()
	e.log.Info("serving metrics", zap.String("address", e.metricsAddress))
	return srv
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// fail records the first frame error and stops the engine.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.log.Error("engine stopped", zap.Error(err))
	e.signalQuit()
}

func (e *engine) firstError() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// requestResize keeps only the latest size; the render loop applies it between frames.
func (e *engine) requestResize(width, height int) {
	size := [2]int{width, height}
	select {
	case e.resizeChannel <- size:
	default:
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- size
	}
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A failed frame or a recovered panic stops the engine with an error.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("engine: render goroutine panic: %v", r))
		}
	}()

	lastRender := time.Now()
	frames := 0

	for {
		select {
		case <-e.quitChannel:
			return
		case size := <-e.resizeChannel:
			if err := e.renderer.OnCanvasResize(size[0], size[1]); err != nil {
				e.log.Warn("canvas resize", zap.Int("width", size[0]), zap.Int("height", size[1]), zap.Error(err))
			}
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if e.window != nil && (e.window.Width() == 0 || e.window.Height() == 0) {
				// Minimized: there is no surface to draw to.
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if err := e.frame(dt); err != nil {
				e.fail(err)
				return
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			frames++
			if e.maxFrames > 0 && frames >= e.maxFrames {
				e.signalQuit()
				return
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(now)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// frame runs one frame: scene updates in z-index order, then the renderer's update and render
// steps.
func (e *engine) frame(dt float32) error {
	scenes := e.orderedScenes()
	for _, s := range scenes {
		if err := s.Update(dt); err != nil {
			return fmt.Errorf("engine: scene %q: %w", s.Name(), err)
		}
	}
	if err := e.renderer.Update(dt); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.renderer.Render(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if e.profilingEnabled.Load() {
		e.observe(scenes)
	}
	return nil
}

// observe feeds the profiler with this frame's timings and instance buffer states.
func (e *engine) observe(scenes []scene.Scene) {
	e.profiler.Tick()
	if e.renderer.CanComputeGPUTimestamps() {
		e.profiler.ObservePassTimings(e.renderer.PassTimings())
	}

	seen := make(map[string]struct{}, len(e.observedKinds))
	for _, s := range scenes {
		reg := s.Registry()
		for _, kind := range reg.Kinds() {
			im := reg.Get(kind)
			if im == nil {
				continue
			}
			label := s.Name() + "/" + kind.String()
			seen[label] = struct{}{}
			e.profiler.ObserveInstances(label, im.Len(), im.Capacity(), im.Buffer().Stats())
		}
	}
	for label := range e.observedKinds {
		if _, ok := seen[label]; !ok {
			e.profiler.ForgetInstances(label)
		}
	}
	e.observedKinds = seen
}

func (e *engine) orderedScenes() []scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.scenes[k])
	}
	return out
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}

func (e *engine) Release() error {
	var errs error
	for _, s := range e.orderedScenes() {
		errs = multierr.Append(errs, s.Release())
	}
	e.mu.Lock()
	e.scenes = make(map[int]scene.Scene)
	e.mu.Unlock()

	errs = multierr.Append(errs, e.renderer.Release())
	if e.window != nil {
		errs = multierr.Append(errs, e.window.Close())
	}
	return errs
}
