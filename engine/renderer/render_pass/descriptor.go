package render_pass

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// Frame is the target of one rendered frame.
type Frame struct {
	// View is the surface texture view acquired for this frame.
	View gpu.TextureView

	Width  int
	Height int
}

// Descriptor produces the attachments of a RenderPass for each frame.
type Descriptor interface {
	// Prepare points the color attachment at the frame's view, creating the depth texture if
	// it is missing or sized differently from the frame.
	//
	// Parameters:
	//   - frame: the frame being rendered
	//
	// Returns:
	//   - error: a resource error from depth texture creation
	Prepare(frame Frame) error

	// RenderPassDescriptor returns the descriptor to begin the pass with, valid after Prepare.
	//
	// Returns:
	//   - *gpu.RenderPassDescriptor: a fresh copy the caller may modify
	RenderPassDescriptor() *gpu.RenderPassDescriptor

	// OnCanvasResize recreates the depth texture at the new size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: a resource error from depth texture creation
	OnCanvasResize(width, height int) error

	// Release releases the depth texture.
	Release()
}

// surfaceDescriptor is the unexported implementation of Descriptor that renders to the surface.
type surfaceDescriptor struct {
	mu     *sync.Mutex
	device gpu.Device

	label       string
	clearColor  gpu.Color
	loadColor   bool
	depth       bool
	depthFormat gpu.TextureFormat
	depthClear  float32

	colorView    gpu.TextureView
	depthTexture gpu.Texture
	depthView    gpu.TextureView
}

var _ Descriptor = &surfaceDescriptor{}

// NewSurfaceDescriptor creates a Descriptor with one color attachment taken from the frame's
// surface view and, unless disabled, a depth attachment.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - options: functional options such as WithClearColor or WithDepth
//
// Returns:
//   - Descriptor: the descriptor
func NewSurfaceDescriptor(device gpu.Device, options ...DescriptorBuilderOption) Descriptor {
	if device == nil {
		panic("render_pass: NewSurfaceDescriptor requires a non-nil Device")
	}
	d := &surfaceDescriptor{
		mu:          &sync.Mutex{},
		device:      device,
		label:       "surface",
		clearColor:  gpu.Color{A: 1},
		depth:       true,
		depthFormat: gpu.TextureFormatDepth24Plus,
		depthClear:  1,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *surfaceDescriptor) Prepare(frame Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.colorView = frame.View
	if !d.depth {
		return nil
	}
	if d.depthTexture == nil || int(d.depthTexture.Width()) != frame.Width || int(d.depthTexture.Height()) != frame.Height {
		return d.createDepth(frame.Width, frame.Height)
	}
	return nil
}

func (d *surfaceDescriptor) createDepth(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("descriptor %q: depth size %dx%d: %w", d.label, width, height, gpu.ErrOutOfRange)
	}
	tex, err := d.device.CreateTexture(&gpu.TextureDescriptor{
		Label:            d.label + " depth",
		Width:            uint32(width),
		Height:           uint32(height),
		Format:           d.depthFormat,
		RenderAttachment: true,
	})
	if err != nil {
		return fmt.Errorf("descriptor %q: %w", d.label, err)
	}
	view, err := tex.CreateView()
	if err != nil {
		tex.Release()
		return fmt.Errorf("descriptor %q: %w", d.label, err)
	}
	d.releaseDepth()
	d.depthTexture, d.depthView = tex, view
	return nil
}

func (d *surfaceDescriptor) releaseDepth() {
	if d.depthView != nil {
		d.depthView.Release()
		d.depthView = nil
	}
	if d.depthTexture != nil {
		d.depthTexture.Release()
		d.depthTexture = nil
	}
}

func (d *surfaceDescriptor) RenderPassDescriptor() *gpu.RenderPassDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc := &gpu.RenderPassDescriptor{
		Label: d.label,
		ColorAttachments: []gpu.ColorAttachment{{
			View:       d.colorView,
			ClearValue: d.clearColor,
			Load:       d.loadColor,
		}},
	}
	if d.depth && d.depthView != nil {
		desc.Depth = &gpu.DepthAttachment{View: d.depthView, ClearValue: d.depthClear}
	}
	return desc
}

func (d *surfaceDescriptor) OnCanvasResize(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.depth {
		return nil
	}
	return d.createDepth(width, height)
}

func (d *surfaceDescriptor) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseDepth()
	d.colorView = nil
}
