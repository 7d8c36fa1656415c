package bind_group_provider

import "github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer binds the whole buffer of a source at a binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - source: the buffer source, re-read whenever its generation changes
//
// Returns:
//   - BindGroupProviderOption: a function that adds the buffer binding
func WithBuffer(binding uint32, source BufferSource) BindGroupProviderOption {
	return WithBufferRange(binding, source, 0, 0)
}

// WithBufferRange binds a range of a source's buffer at a binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - source: the buffer source
//   - offset: the byte offset of the range
//   - size: the byte size of the range, 0 for the rest of the buffer
//
// Returns:
//   - BindGroupProviderOption: a function that adds the buffer binding
func WithBufferRange(binding uint32, source BufferSource, offset, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append(p.entries, &entry{binding: binding, source: source, offset: offset, size: size})
	}
}

// WithTextureView binds a texture view at a binding index.
//
// Parameters:
//   - binding: the binding index
//   - view: the texture view
//
// Returns:
//   - BindGroupProviderOption: a function that adds the texture binding
func WithTextureView(binding uint32, view gpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append(p.entries, &entry{binding: binding, textureView: view})
	}
}

// WithSampler binds a sampler at a binding index.
//
// Parameters:
//   - binding: the binding index
//   - sampler: the sampler
//
// Returns:
//   - BindGroupProviderOption: a function that adds the sampler binding
func WithSampler(binding uint32, sampler gpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append(p.entries, &entry{binding: binding, sampler: sampler})
	}
}

// WithOwnedLayout makes the provider release its layout on Release.
//
// Returns:
//   - BindGroupProviderOption: a function that marks the layout as owned
func WithOwnedLayout() BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.ownsLayout = true
	}
}
