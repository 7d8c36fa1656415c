package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUOptions configures adapter and device selection for the WebGPU-native backend.
type WGPUOptions struct {
	// ForceFallbackAdapter requests a CPU/software adapter.
	ForceFallbackAdapter bool
	// VSync selects FIFO presentation instead of immediate.
	VSync bool
	// RequestTimestamps enables the timestamp-query feature when the adapter supports it.
	RequestTimestamps bool
}

// WGPUDevice is the Device implementation over cogentcore/webgpu.
type WGPUDevice struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpuQueue

	features   map[Feature]bool
	errHandler func(error)
}

var _ Device = &WGPUDevice{}

// NewWGPUDevice requests an adapter and device compatible with the surface described by
// surfaceDescriptor and returns the device together with its presentable surface.
// A nil surfaceDescriptor creates a device without a surface.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, usually from the window package
//   - opts: adapter and device selection options
//
// Returns:
//   - *WGPUDevice: the device
//   - *WGPUSurface: the surface, or nil when surfaceDescriptor is nil
//   - error: an error wrapping ErrResource if no adapter or device could be created
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, opts WGPUOptions) (*WGPUDevice, *WGPUSurface, error) {
	runtime.LockOSThread()

	d := &WGPUDevice{
		instance: wgpu.CreateInstance(nil),
		features: make(map[Feature]bool),
	}

	var surface *wgpu.Surface
	if surfaceDescriptor != nil {
		surface = d.instance.CreateSurface(surfaceDescriptor)
	}

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: request adapter: %v", ErrResource, err)
	}
	d.adapter = adapter

	var required []wgpu.FeatureName
	if opts.RequestTimestamps && adapter.HasFeature(wgpu.FeatureNameTimestampQuery) {
		required = append(required, wgpu.FeatureNameTimestampQuery)
		d.features[FeatureTimestampQuery] = true
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "Render Graph Device",
		RequiredFeatures: required,
		DeviceLostCallback: func(reason wgpu.DeviceLostReason, message string) {
			if reason == wgpu.DeviceLostReasonDestroyed {
				return
			}
			d.report(fmt.Errorf("%w: %s", ErrDeviceLost, message))
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: request device: %v", ErrResource, err)
	}
	d.device = device
	d.queue = &wgpuQueue{device: d, queue: device.GetQueue()}

	var s *WGPUSurface
	if surface != nil {
		s = &WGPUSurface{device: d, surface: surface, presentMode: wgpu.PresentModeImmediate}
		if opts.VSync {
			s.presentMode = wgpu.PresentModeFifo
		}
	}
	return d, s, nil
}

func (d *WGPUDevice) Queue() Queue {
	return d.queue
}

func (d *WGPUDevice) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            wgpu.BufferUsage(desc.Usage),
		MappedAtCreation: desc.MappedAtCreation,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create buffer %q: %v", ErrResource, desc.Label, err)
	}
	b := &wgpuBuffer{device: d, buffer: buf, label: desc.Label, size: desc.Size, usage: desc.Usage}
	if desc.MappedAtCreation {
		b.state = MapStateMapped
	}
	return b, nil
}

func (d *WGPUDevice) CreateBufferInit(label string, usage BufferUsage, contents []byte) (Buffer, error) {
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    wgpu.BufferUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create buffer %q: %v", ErrResource, label, err)
	}
	return &wgpuBuffer{device: d, buffer: buf, label: label, size: uint64(len(contents)), usage: usage}, nil
}

func (d *WGPUDevice) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	var usage wgpu.TextureUsage
	if desc.RenderAttachment {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if desc.TextureBinding {
		usage |= wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        toWGPUTextureFormat(desc.Format),
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create texture %q: %v", ErrResource, desc.Label, err)
	}
	return &wgpuTexture{texture: tex, width: desc.Width, height: desc.Height, format: desc.Format}, nil
}

func (d *WGPUDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("%w: create command encoder %q: %v", ErrResource, label, err)
	}
	return &wgpuEncoder{encoder: enc}, nil
}

func (d *WGPUDevice) CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: wgpu.ShaderStage(e.Visibility),
		}
		switch e.Type {
		case BindingTypeUniform:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case BindingTypeStorage:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
		case BindingTypeReadOnlyStorage:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case BindingTypeTexture:
			entry.Texture = wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		case BindingTypeSampler:
			entry.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
		}
		entries[i] = entry
	}
	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bind group layout %q: %v", ErrResource, desc.Label, err)
	}
	return &wgpuBindGroupLayout{layout: layout, label: desc.Label}, nil
}

func (d *WGPUDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("%w: bind group %q has no wgpu layout", ErrResource, desc.Label)
	}
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, fmt.Errorf("%w: bind group %q binding %d: foreign buffer", ErrResource, desc.Label, e.Binding)
			}
			entry.Buffer = buf.buffer
			entry.Offset = e.Offset
			entry.Size = wgpu.WholeSize
			if e.Size != 0 {
				entry.Size = e.Size
			}
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*wgpuTextureView).view
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*wgpuSampler).sampler
		}
		entries[i] = entry
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bind group %q: %v", ErrResource, desc.Label, err)
	}
	return &wgpuBindGroup{group: bg, label: desc.Label}, nil
}

func (d *WGPUDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.ShaderSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create shader module %q: %v", ErrResource, desc.Label, err)
	}
	defer module.Release()

	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		wl, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("%w: pipeline %q group %d: foreign layout", ErrResource, desc.Label, i)
		}
		layouts[i] = wl.layout
	}
	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create pipeline layout %q: %v", ErrResource, desc.Label, err)
	}

	vertexLayouts := make([]wgpu.VertexBufferLayout, len(desc.VertexLayouts))
	for i, vl := range desc.VertexLayouts {
		attrs := make([]wgpu.VertexAttribute, len(vl.Attributes))
		for j, a := range vl.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         toWGPUVertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		stepMode := wgpu.VertexStepModeVertex
		if vl.StepMode == VertexStepModeInstance {
			stepMode = wgpu.VertexStepModeInstance
		}
		vertexLayouts[i] = wgpu.VertexBufferLayout{
			ArrayStride: vl.ArrayStride,
			StepMode:    stepMode,
			Attributes:  attrs,
		}
	}

	var depth *wgpu.DepthStencilState
	if desc.DepthFormat != TextureFormatUndefined {
		depth = &wgpu.DepthStencilState{
			Format:            toWGPUTextureFormat(desc.DepthFormat),
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    toWGPUTextureFormat(desc.ColorFormat),
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  toWGPUTopology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  toWGPUCullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depth,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create render pipeline %q: %v", ErrResource, desc.Label, err)
	}
	return &wgpuPipeline{pipeline: created, layout: pipelineLayout, label: desc.Label}, nil
}

func (d *WGPUDevice) CreateQuerySet(label string, count uint32) (QuerySet, error) {
	if !d.HasFeature(FeatureTimestampQuery) {
		return nil, fmt.Errorf("%w: timestamp queries are not enabled", ErrUnsupported)
	}
	qs, err := d.device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: label,
		Type:  wgpu.QueryTypeTimestamp,
		Count: count,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create query set %q: %v", ErrResource, label, err)
	}
	return &wgpuQuerySet{querySet: qs, count: count}, nil
}

func (d *WGPUDevice) HasFeature(feature Feature) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.features[feature]
}

func (d *WGPUDevice) SetErrorHandler(handler func(err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errHandler = handler
}

func (d *WGPUDevice) Poll(wait bool) {
	d.device.Poll(wait, nil)
}

func (d *WGPUDevice) Release() {
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// report forwards errors from operations that have no error return to the error handler.
func (d *WGPUDevice) report(err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	h := d.errHandler
	d.mu.Unlock()
	if h != nil {
		h(err)
	}
}

type wgpuBuffer struct {
	device *WGPUDevice
	buffer *wgpu.Buffer
	label  string
	size   uint64
	usage  BufferUsage

	mu        sync.Mutex
	state     MapState
	destroyed bool
}

func (b *wgpuBuffer) Label() string      { return b.label }
func (b *wgpuBuffer) Size() uint64       { return b.size }
func (b *wgpuBuffer) Usage() BufferUsage { return b.usage }

func (b *wgpuBuffer) MapState() MapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *wgpuBuffer) MapAsync(mode MapMode, offset, size uint64, callback func(MapStatus)) error {
	b.mu.Lock()
	if b.destroyed || b.state != MapStateUnmapped {
		b.mu.Unlock()
		return fmt.Errorf("%w: buffer %q cannot be mapped in state %d", ErrInvalidState, b.label, b.state)
	}
	b.state = MapStatePending
	b.mu.Unlock()

	err := b.buffer.MapAsync(wgpu.MapMode(mode), offset, size, func(status wgpu.BufferMapAsyncStatus) {
		b.mu.Lock()
		var s MapStatus
		switch {
		case b.destroyed:
			s = MapStatusDestroyed
		case b.state != MapStatePending:
			s = MapStatusAborted
		case status == wgpu.BufferMapAsyncStatusSuccess:
			s = MapStatusSuccess
			b.state = MapStateMapped
		default:
			s = MapStatusError
			b.state = MapStateUnmapped
		}
		b.mu.Unlock()
		callback(s)
	})
	if err != nil {
		b.mu.Lock()
		b.state = MapStateUnmapped
		b.mu.Unlock()
		return fmt.Errorf("%w: map buffer %q: %v", ErrResource, b.label, err)
	}
	return nil
}

func (b *wgpuBuffer) MappedRange(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed || b.state != MapStateMapped {
		return nil, fmt.Errorf("%w: buffer %q is not mapped", ErrInvalidState, b.label)
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("%w: mapped range [%d, %d) exceeds buffer %q", ErrOutOfRange, offset, offset+size, b.label)
	}
	return b.buffer.GetMappedRange(uint(offset), uint(size)), nil
}

func (b *wgpuBuffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == MapStateUnmapped {
		return fmt.Errorf("%w: buffer %q is not mapped", ErrInvalidState, b.label)
	}
	b.state = MapStateUnmapped
	if err := b.buffer.Unmap(); err != nil {
		return fmt.Errorf("%w: unmap buffer %q: %v", ErrResource, b.label, err)
	}
	return nil
}

func (b *wgpuBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.buffer.Destroy()
	b.buffer.Release()
}

type wgpuQueue struct {
	device *WGPUDevice
	queue  *wgpu.Queue
}

func (q *wgpuQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer", ErrInvalidState)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("%w: write [%d, %d) exceeds buffer %q", ErrOutOfRange, offset, offset+uint64(len(data)), b.label)
	}
	if err := q.queue.WriteBuffer(b.buffer, offset, data); err != nil {
		err = fmt.Errorf("%w: write buffer %q: %v", ErrResource, b.label, err)
		q.device.report(err)
		return err
	}
	return nil
}

func (q *wgpuQueue) Submit(commands ...CommandBuffer) error {
	cbs := make([]*wgpu.CommandBuffer, 0, len(commands))
	for _, c := range commands {
		cb, ok := c.(*wgpuCommandBuffer)
		if !ok {
			return fmt.Errorf("%w: foreign command buffer", ErrInvalidState)
		}
		cbs = append(cbs, cb.buffer)
	}
	q.queue.Submit(cbs...)
	return nil
}

type wgpuCommandBuffer struct {
	buffer *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Release() {
	c.buffer.Release()
}

type wgpuEncoder struct {
	encoder *wgpu.CommandEncoder
}

func (e *wgpuEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error {
	s, ok1 := src.(*wgpuBuffer)
	t, ok2 := dst.(*wgpuBuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign buffer", ErrInvalidState)
	}
	if err := e.encoder.CopyBufferToBuffer(s.buffer, srcOffset, t.buffer, dstOffset, size); err != nil {
		return fmt.Errorf("%w: copy %q to %q: %v", ErrResource, s.label, t.label, err)
	}
	return nil
}

func (e *wgpuEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error) {
	colors := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, c := range desc.ColorAttachments {
		view, ok := c.View.(*wgpuTextureView)
		if !ok {
			return nil, fmt.Errorf("%w: render pass %q color attachment %d has no view", ErrInvalidState, desc.Label, i)
		}
		loadOp := wgpu.LoadOpClear
		if c.Load {
			loadOp = wgpu.LoadOpLoad
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:    view.view,
			LoadOp:  loadOp,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: c.ClearValue.R, G: c.ClearValue.G, B: c.ClearValue.B, A: c.ClearValue.A,
			},
		}
	}

	rp := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if desc.Depth != nil {
		view, ok := desc.Depth.View.(*wgpuTextureView)
		if !ok {
			return nil, fmt.Errorf("%w: render pass %q depth attachment has no view", ErrInvalidState, desc.Label)
		}
		loadOp := wgpu.LoadOpClear
		if desc.Depth.Load {
			loadOp = wgpu.LoadOpLoad
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view.view,
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.Depth.ClearValue,
		}
	}

	// The bindings have no pass-level timestamp writes, so the pair is written on the encoder
	// around the pass.
	pass := &wgpuPass{encoder: e.encoder}
	if tw := desc.Timestamps; tw != nil {
		qs, ok := tw.QuerySet.(*wgpuQuerySet)
		if !ok {
			return nil, fmt.Errorf("%w: render pass %q: foreign query set", ErrInvalidState, desc.Label)
		}
		if err := e.encoder.WriteTimestamp(qs.querySet, tw.BeginIndex); err != nil {
			return nil, fmt.Errorf("%w: render pass %q: begin timestamp: %v", ErrResource, desc.Label, err)
		}
		pass.querySet, pass.endIndex = qs.querySet, tw.EndIndex
	}
	pass.pass = e.encoder.BeginRenderPass(rp)
	return pass, nil
}

func (e *wgpuEncoder) ResolveQuerySet(querySet QuerySet, firstQuery, queryCount uint32, dst Buffer, dstOffset uint64) error {
	qs, ok1 := querySet.(*wgpuQuerySet)
	t, ok2 := dst.(*wgpuBuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign resource", ErrInvalidState)
	}
	if err := e.encoder.ResolveQuerySet(qs.querySet, firstQuery, queryCount, t.buffer, dstOffset); err != nil {
		return fmt.Errorf("%w: resolve query set: %v", ErrResource, err)
	}
	return nil
}

func (e *wgpuEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: finish command encoder: %v", ErrResource, err)
	}
	return &wgpuCommandBuffer{buffer: cb}, nil
}

func (e *wgpuEncoder) Release() {
	e.encoder.Release()
}

type wgpuPass struct {
	pass    *wgpu.RenderPassEncoder
	encoder *wgpu.CommandEncoder

	// querySet is set when the pass is timed; endIndex is written after End.
	querySet *wgpu.QuerySet
	endIndex uint32
}

func (p *wgpuPass) SetPipeline(pipeline RenderPipeline) {
	p.pass.SetPipeline(pipeline.(*wgpuPipeline).pipeline)
}

func (p *wgpuPass) SetBindGroup(group uint32, bindGroup BindGroup) {
	p.pass.SetBindGroup(group, bindGroup.(*wgpuBindGroup).group, nil)
}

func (p *wgpuPass) SetVertexBuffer(slot uint32, buf Buffer) {
	p.pass.SetVertexBuffer(slot, buf.(*wgpuBuffer).buffer, 0, wgpu.WholeSize)
}

func (p *wgpuPass) SetIndexBuffer(buf Buffer, format IndexFormat) {
	f := wgpu.IndexFormatUint32
	if format == IndexFormatUint16 {
		f = wgpu.IndexFormatUint16
	}
	p.pass.SetIndexBuffer(buf.(*wgpuBuffer).buffer, f, 0, wgpu.WholeSize)
}

func (p *wgpuPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *wgpuPass) PushDebugGroup(label string) {
	p.pass.PushDebugGroup(label)
}

func (p *wgpuPass) PopDebugGroup() {
	p.pass.PopDebugGroup()
}

func (p *wgpuPass) End() error {
	err := p.pass.End()
	p.pass.Release()
	if err != nil {
		return fmt.Errorf("%w: end render pass: %v", ErrResource, err)
	}
	if p.querySet != nil {
		if err := p.encoder.WriteTimestamp(p.querySet, p.endIndex); err != nil {
			return fmt.Errorf("%w: end timestamp: %v", ErrResource, err)
		}
	}
	return nil
}

type wgpuBindGroupLayout struct {
	layout *wgpu.BindGroupLayout
	label  string
}

func (l *wgpuBindGroupLayout) Label() string { return l.label }
func (l *wgpuBindGroupLayout) Release()      { l.layout.Release() }

type wgpuBindGroup struct {
	group *wgpu.BindGroup
	label string
}

func (b *wgpuBindGroup) Label() string { return b.label }
func (b *wgpuBindGroup) Release()      { b.group.Release() }

type wgpuPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	label    string
}

func (p *wgpuPipeline) Label() string { return p.label }

func (p *wgpuPipeline) Release() {
	p.pipeline.Release()
	p.layout.Release()
}

type wgpuQuerySet struct {
	querySet *wgpu.QuerySet
	count    uint32
}

func (q *wgpuQuerySet) Count() uint32 { return q.count }
func (q *wgpuQuerySet) Release()      { q.querySet.Release() }

type wgpuTexture struct {
	texture       *wgpu.Texture
	width, height uint32
	format        TextureFormat
}

func (t *wgpuTexture) Width() uint32         { return t.width }
func (t *wgpuTexture) Height() uint32        { return t.height }
func (t *wgpuTexture) Format() TextureFormat { return t.format }
func (t *wgpuTexture) Release() {
	t.texture.Destroy()
	t.texture.Release()
}

func (t *wgpuTexture) CreateView() (TextureView, error) {
	view, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create texture view: %v", ErrResource, err)
	}
	return &wgpuTextureView{view: view}, nil
}

type wgpuTextureView struct {
	view *wgpu.TextureView
}

func (v *wgpuTextureView) Release() { v.view.Release() }

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() { s.sampler.Release() }

// WGPUSurface is the presentable window surface of a WGPUDevice.
type WGPUSurface struct {
	device      *WGPUDevice
	surface     *wgpu.Surface
	presentMode wgpu.PresentMode
	format      wgpu.TextureFormat
	width       int
	height      int

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Surface = &WGPUSurface{}

func (s *WGPUSurface) Configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrOutOfRange, width, height)
	}
	capabilities := s.surface.GetCapabilities(s.device.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no formats", ErrResource)
	}
	s.format = capabilities.Formats[0]
	s.surface.Configure(s.device.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: s.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	s.width, s.height = width, height
	return nil
}

func (s *WGPUSurface) Size() (int, int) { return s.width, s.height }

func (s *WGPUSurface) Format() TextureFormat {
	return fromWGPUTextureFormat(s.format)
}

func (s *WGPUSurface) AcquireView() (TextureView, error) {
	if s.frameTexture != nil {
		return nil, fmt.Errorf("%w: previous frame not presented", ErrInvalidState)
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire surface texture: %v", ErrResource, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: create surface view: %v", ErrResource, err)
	}
	s.frameTexture, s.frameView = tex, view
	return &wgpuTextureView{view: view}, nil
}

func (s *WGPUSurface) Present() {
	if s.frameTexture == nil {
		return
	}
	s.surface.Present()
	s.frameView.Release()
	s.frameTexture.Release()
	s.frameView, s.frameTexture = nil, nil
}

func (s *WGPUSurface) Release() {
	s.surface.Release()
}

func toWGPUTextureFormat(f TextureFormat) wgpu.TextureFormat {
	switch f {
	case TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case TextureFormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case TextureFormatDepth24Plus:
		return wgpu.TextureFormatDepth24Plus
	case TextureFormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatUndefined
	}
}

func fromWGPUTextureFormat(f wgpu.TextureFormat) TextureFormat {
	switch f {
	case wgpu.TextureFormatBGRA8Unorm:
		return TextureFormatBGRA8Unorm
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return TextureFormatBGRA8UnormSrgb
	case wgpu.TextureFormatRGBA8Unorm:
		return TextureFormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return TextureFormatRGBA8UnormSrgb
	default:
		return TextureFormatUndefined
	}
}

func toWGPUVertexFormat(f VertexFormat) wgpu.VertexFormat {
	switch f {
	case VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case VertexFormatUint32:
		return wgpu.VertexFormatUint32
	default:
		return wgpu.VertexFormatFloat32
	}
}

func toWGPUTopology(t Topology) wgpu.PrimitiveTopology {
	switch t {
	case TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case TopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func toWGPUCullMode(c CullMode) wgpu.CullMode {
	switch c {
	case CullModeFront:
		return wgpu.CullModeFront
	case CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}
