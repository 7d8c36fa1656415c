package render_pass

import "github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"

// DescriptorBuilderOption is a functional option for configuring a Descriptor via NewSurfaceDescriptor.
type DescriptorBuilderOption func(*surfaceDescriptor)

// WithDescriptorLabel sets the label of the pass and its depth texture.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - DescriptorBuilderOption: a function that applies the label to a descriptor
func WithDescriptorLabel(label string) DescriptorBuilderOption {
	return func(d *surfaceDescriptor) {
		d.label = label
	}
}

// WithClearColor sets the color the attachment is cleared to. Defaults to opaque black.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - DescriptorBuilderOption: a function that applies the clear color to a descriptor
func WithClearColor(c gpu.Color) DescriptorBuilderOption {
	return func(d *surfaceDescriptor) {
		d.clearColor = c
	}
}

// WithLoadColor keeps the previous color contents instead of clearing, for passes drawn over an earlier pass.
//
// Returns:
//   - DescriptorBuilderOption: a function that enables loading on a descriptor
func WithLoadColor() DescriptorBuilderOption {
	return func(d *surfaceDescriptor) {
		d.loadColor = true
	}
}

// WithDepth enables or disables the depth attachment. Enabled by default.
//
// Parameters:
//   - enabled: whether the pass has a depth attachment
//
// Returns:
//   - DescriptorBuilderOption: a function that applies the setting to a descriptor
func WithDepth(enabled bool) DescriptorBuilderOption {
	return func(d *surfaceDescriptor) {
		d.depth = enabled
	}
}

// WithDepthFormat sets the depth texture format. Defaults to gpu.TextureFormatDepth24Plus.
//
// Parameters:
//   - format: the depth format
//
// Returns:
//   - DescriptorBuilderOption: a function that applies the format to a descriptor
func WithDepthFormat(format gpu.TextureFormat) DescriptorBuilderOption {
	return func(d *surfaceDescriptor) {
		d.depthFormat = format
	}
}
