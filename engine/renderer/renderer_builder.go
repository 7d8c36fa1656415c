package renderer

import (
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/pipeline"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipeline pre-registers a single Pipeline in the renderer's pipeline cache under its key.
//
// Parameters:
//   - p: the Pipeline to cache
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipeline option to a renderer
func WithPipeline(p pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelines[p.Key()] = p
	}
}

// WithPipelines adds every pipeline of the map to the renderer's pipeline cache.
//
// Parameters:
//   - pipelines: a map of pipeline keys to their corresponding Pipeline objects
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipelines option to a renderer
func WithPipelines(pipelines map[string]pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		for k, p := range pipelines {
			r.pipelines[k] = p
		}
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithGPUTiming requests the timestamp-query feature and enables GPU timing on every render
// pass added while the device supports it.
//
// Parameters:
//   - enabled: whether to time passes on the GPU
//
// Returns:
//   - RendererBuilderOption: a function that applies the timing option to a renderer
func WithGPUTiming(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.gpuTiming = enabled
	}
}

// WithLogger sets the logger used by the renderer and the mesh groups it creates.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger to a renderer
func WithLogger(l *zap.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.log = l
	}
}
