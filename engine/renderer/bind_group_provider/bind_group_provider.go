package bind_group_provider

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// BufferSource is anything that owns a device buffer which may be replaced over time, such as a
// growable instance buffer. Generation changes whenever Buffer would return a different buffer.
type BufferSource interface {
	Buffer() gpu.Buffer
	Generation() uint64
}

// staticBuffer is a BufferSource for a buffer that is never replaced.
type staticBuffer struct {
	buffer gpu.Buffer
}

func (s staticBuffer) Buffer() gpu.Buffer { return s.buffer }
func (s staticBuffer) Generation() uint64 { return 0 }

// StaticBuffer wraps a buffer that is never replaced as a BufferSource.
//
// Parameters:
//   - buf: the buffer
//
// Returns:
//   - BufferSource: a source whose generation is always 0
func StaticBuffer(buf gpu.Buffer) BufferSource {
	return staticBuffer{buffer: buf}
}

// entry is one binding of a provider together with the generation it was last bound at.
type entry struct {
	binding     uint32
	source      BufferSource
	offset      uint64
	size        uint64
	textureView gpu.TextureView
	sampler     gpu.Sampler

	boundBuffer     gpu.Buffer
	boundGeneration uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label  string
	device gpu.Device
	layout gpu.BindGroupLayout
	// ownsLayout releases the layout with the provider.
	ownsLayout bool

	entries []*entry

	// bindGroup is the GPU bind group for the current generation of every entry.
	bindGroup   gpu.BindGroup
	regenerated int
}

// BindGroupProvider owns a bind group and knows how to rebuild it. Buffer entries reference a
// BufferSource rather than a buffer, so when an instance buffer grows the provider notices the
// generation change and recreates the bind group against the new buffer.
//
// Usage pattern:
//  1. Create the provider with the layout from the pipeline and one option per binding
//  2. Hand it to a RenderPass, Layer or RenderItem
//  3. Before the bind group is set each frame, RegenerateIfStale rebuilds it if needed
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Layout returns the bind group layout the provider creates bind groups against.
	//
	// Returns:
	//   - gpu.BindGroupLayout: the layout
	Layout() gpu.BindGroupLayout

	// BindGroup returns the current bind group.
	//
	// Returns:
	//   - gpu.BindGroup: the bind group, or nil after Release
	BindGroup() gpu.BindGroup

	// Buffer returns the current buffer bound at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer, or nil if the binding holds no buffer
	Buffer(binding uint32) gpu.Buffer

	// Stale reports whether any buffer source has been replaced since the bind group was created.
	//
	// Returns:
	//   - bool: true if the bind group must be recreated
	Stale() bool

	// RegenerateIfStale recreates the bind group if any buffer source has a new generation.
	//
	// Returns:
	//   - bool: true if the bind group was recreated
	//   - error: an error wrapping gpu.ErrResource if creation fails
	RegenerateIfStale() (bool, error)

	// Regenerate recreates the bind group unconditionally.
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrResource if creation fails
	Regenerate() error

	// Regenerations returns the number of times the bind group has been recreated after construction.
	//
	// Returns:
	//   - int: the regeneration count
	Regenerations() int

	// Release releases the bind group and, when owned, the layout. Buffer sources are not released.
	Release()
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates the provider and its initial bind group.
//
// Parameters:
//   - label: the debug label of the bind group
//   - device: the GPU device, must not be nil
//   - layout: the layout to create the bind group against, must not be nil
//   - options: one option per binding such as WithBuffer, plus WithOwnedLayout
//
// Returns:
//   - BindGroupProvider: the provider
//   - error: an error wrapping gpu.ErrResource if the bind group could not be created
func NewBindGroupProvider(label string, device gpu.Device, layout gpu.BindGroupLayout, options ...BindGroupProviderOption) (BindGroupProvider, error) {
	if device == nil {
		panic("bind_group_provider: NewBindGroupProvider requires a non-nil Device")
	}
	if layout == nil {
		panic("bind_group_provider: NewBindGroupProvider requires a non-nil BindGroupLayout")
	}
	p := &bindGroupProvider{
		mu:     &sync.Mutex{},
		label:  label,
		device: device,
		layout: layout,
	}
	for _, opt := range options {
		opt(p)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.create(); err != nil {
		return nil, err
	}
	return p, nil
}

// create builds a bind group from the current buffer of every entry. Callers hold mu.
func (p *bindGroupProvider) create() error {
	entries := make([]gpu.BindGroupEntry, len(p.entries))
	buffers := make([]gpu.Buffer, len(p.entries))
	generations := make([]uint64, len(p.entries))
	for i, e := range p.entries {
		be := gpu.BindGroupEntry{
			Binding:     e.binding,
			Offset:      e.offset,
			Size:        e.size,
			TextureView: e.textureView,
			Sampler:     e.sampler,
		}
		if e.source != nil {
			generations[i] = e.source.Generation()
			buffers[i] = e.source.Buffer()
			if buffers[i] == nil {
				return fmt.Errorf("bind group %q: binding %d has no buffer: %w", p.label, e.binding, gpu.ErrResource)
			}
			be.Buffer = buffers[i]
		}
		entries[i] = be
	}

	bg, err := p.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   p.label,
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("bind group %q: %w", p.label, err)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	for i, e := range p.entries {
		e.boundBuffer = buffers[i]
		e.boundGeneration = generations[i]
	}
	return nil
}

func (p *bindGroupProvider) stale() bool {
	for _, e := range p.entries {
		if e.source == nil {
			continue
		}
		if e.source.Generation() != e.boundGeneration || e.source.Buffer() != e.boundBuffer {
			return true
		}
	}
	return false
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Layout() gpu.BindGroupLayout {
	return p.layout
}

func (p *bindGroupProvider) BindGroup() gpu.BindGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding uint32) gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.binding == binding && e.source != nil {
			return e.source.Buffer()
		}
	}
	return nil
}

func (p *bindGroupProvider) Stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stale()
}

func (p *bindGroupProvider) RegenerateIfStale() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stale() {
		return false, nil
	}
	if err := p.create(); err != nil {
		return false, err
	}
	p.regenerated++
	return true, nil
}

func (p *bindGroupProvider) Regenerate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.create(); err != nil {
		return err
	}
	p.regenerated++
	return nil
}

func (p *bindGroupProvider) Regenerations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regenerated
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.ownsLayout && p.layout != nil {
		p.layout.Release()
	}
}
