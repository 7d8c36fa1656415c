package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the created render pipeline and the bind group layouts it was created with.
type pipeline struct {
	// key is the unique identifier for this pipeline, used for caching and lookups
	key string

	shaderSource  string
	vertexEntry   string
	fragmentEntry string

	vertexLayouts []gpu.VertexBufferLayout
	// layoutDescriptors describe bind groups 0..n-1 in order.
	layoutDescriptors []gpu.BindGroupLayoutDescriptor

	// The following properties are used to configure the pipeline during creation and can be toggled/set with the builder options.

	colorFormat      gpu.TextureFormat
	depthTestEnabled bool
	cullMode         gpu.CullMode
	topology         gpu.Topology

	// The following fields are GPU allocated resources released by Release.

	renderPipeline   gpu.RenderPipeline
	bindGroupLayouts []gpu.BindGroupLayout
}

// Pipeline defines the interface for a GPU render pipeline built from one WGSL module.
// It owns the bind group layouts of its groups; bind group providers are created against them.
type Pipeline interface {
	// Key returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	Key() string

	// RenderPipeline returns the created GPU pipeline.
	//
	// Returns:
	//   - gpu.RenderPipeline: the pipeline, nil after Release
	RenderPipeline() gpu.RenderPipeline

	// BindGroupLayout returns the layout of one bind group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - gpu.BindGroupLayout: the layout, or nil if the group does not exist
	BindGroupLayout(group int) gpu.BindGroupLayout

	// BindGroupLayouts returns every bind group layout in group order.
	//
	// Returns:
	//   - []gpu.BindGroupLayout: the layouts
	BindGroupLayouts() []gpu.BindGroupLayout

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - gpu.CullMode: the cull mode
	CullMode() gpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - gpu.Topology: the topology
	Topology() gpu.Topology

	// Release releases the pipeline and its bind group layouts.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates the bind group layouts and the render pipeline on the device.
//
// Parameters:
//   - key: the unique key of the pipeline
//   - device: the GPU device, must not be nil
//   - shaderSource: WGSL source containing the vertex and fragment entry points
//   - options: functional options configuring entry points, layouts and fixed-function state
//
// Returns:
//   - Pipeline: the pipeline
//   - error: an error wrapping gpu.ErrResource if creation fails
func NewPipeline(key string, device gpu.Device, shaderSource string, options ...PipelineBuilderOption) (Pipeline, error) {
	if device == nil {
		panic("pipeline: NewPipeline requires a non-nil Device")
	}
	p := &pipeline{
		key:              key,
		shaderSource:     shaderSource,
		vertexEntry:      "vs_main",
		fragmentEntry:    "fs_main",
		colorFormat:      gpu.TextureFormatBGRA8Unorm,
		depthTestEnabled: true,
		cullMode:         gpu.CullModeBack,
		topology:         gpu.TopologyTriangleList,
	}
	for _, opt := range options {
		opt(p)
	}

	for i := range p.layoutDescriptors {
		desc := p.layoutDescriptors[i]
		if desc.Label == "" {
			desc.Label = fmt.Sprintf("%s group %d", key, i)
		}
		layout, err := device.CreateBindGroupLayout(&desc)
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("pipeline %q: %w", key, err)
		}
		p.bindGroupLayouts = append(p.bindGroupLayouts, layout)
	}

	depthFormat := gpu.TextureFormatUndefined
	if p.depthTestEnabled {
		depthFormat = gpu.TextureFormatDepth24Plus
	}
	rp, err := device.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:            key,
		ShaderSource:     p.shaderSource,
		VertexEntry:      p.vertexEntry,
		FragmentEntry:    p.fragmentEntry,
		VertexLayouts:    p.vertexLayouts,
		BindGroupLayouts: p.bindGroupLayouts,
		ColorFormat:      p.colorFormat,
		DepthFormat:      depthFormat,
		CullMode:         p.cullMode,
		Topology:         p.topology,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("pipeline %q: %w", key, err)
	}
	p.renderPipeline = rp
	return p, nil
}

func (p *pipeline) Key() string {
	return p.key
}

func (p *pipeline) RenderPipeline() gpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayout(group int) gpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) BindGroupLayouts() []gpu.BindGroupLayout {
	return p.bindGroupLayouts
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) CullMode() gpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() gpu.Topology {
	return p.topology
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	for _, l := range p.bindGroupLayouts {
		l.Release()
	}
	p.bindGroupLayouts = nil
}
