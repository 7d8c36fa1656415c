package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType = gpu.BackendType

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU = gpu.BackendTypeWGPU

	// BackendTypeHeadless selects the in-memory backend, for tests and offscreen runs.
	BackendTypeHeadless = gpu.BackendTypeHeadless
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeVSync:
		return "vsync"
	case PresentModeUncapped:
		return "uncapped"
	default:
		return fmt.Sprintf("PresentMode(%d)", int(m))
	}
}

// ParsePresentMode converts a present mode name as used in configuration files.
//
// Parameters:
//   - name: "vsync" or "uncapped"
//
// Returns:
//   - PresentMode: the present mode
//   - error: an error if the name is unknown
func ParsePresentMode(name string) (PresentMode, error) {
	switch name {
	case "vsync", "":
		return PresentModeVSync, nil
	case "uncapped":
		return PresentModeUncapped, nil
	default:
		return 0, fmt.Errorf("unknown present mode %q", name)
	}
}

// Target is what a Renderer draws into. window.Window satisfies it.
type Target interface {
	// SurfaceDescriptor returns the platform surface descriptor, or nil for offscreen targets.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// newBackend creates the device and surface for the selected backend and configures the
// surface at the target's size.
func newBackend(backendType RendererBackendType, target Target, r *renderer) (gpu.Device, gpu.Surface, error) {
	var (
		device  gpu.Device
		surface gpu.Surface
	)
	switch backendType {
	case BackendTypeHeadless:
		var opts []gpu.HeadlessOption
		if r.gpuTiming {
			opts = append(opts, gpu.WithHeadlessFeatures(gpu.FeatureTimestampQuery))
		}
		device = gpu.NewHeadlessDevice(opts...)
		surface = gpu.NewHeadlessSurface(target.Width(), target.Height())
	case BackendTypeWGPU:
		d, s, err := gpu.NewWGPUDevice(target.SurfaceDescriptor(), gpu.WGPUOptions{
			ForceFallbackAdapter: r.forceFallbackAdapter,
			VSync:                r.presentMode == PresentModeVSync,
			RequestTimestamps:    r.gpuTiming,
		})
		if err != nil {
			return nil, nil, err
		}
		if s == nil {
			d.Release()
			return nil, nil, fmt.Errorf("renderer: wgpu backend needs a surface descriptor: %w", gpu.ErrResource)
		}
		device, surface = d, s
	default:
		return nil, nil, fmt.Errorf("renderer: backend %s: %w", backendType, gpu.ErrUnsupported)
	}

	if err := surface.Configure(target.Width(), target.Height()); err != nil {
		surface.Release()
		device.Release()
		return nil, nil, fmt.Errorf("renderer: configure surface: %w", err)
	}
	return device, surface, nil
}
