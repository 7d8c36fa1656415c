package gpu

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// HeadlessTimestampDelta is the number of nanoseconds the headless backend reports between the
// beginning and end timestamps of every render pass.
const HeadlessTimestampDelta = 250

// DrawRecord is one draw call executed by the headless backend.
type DrawRecord struct {
	Pass          string
	Pipeline      string
	BindGroups    map[uint32]string
	VertexBuffer  string
	IndexBuffer   string
	IndexFormat   IndexFormat
	Indexed       bool
	Count         uint32
	InstanceCount uint32
	First         uint32
	BaseVertex    int32
	FirstInstance uint32
}

// HeadlessDevice is an in-memory Device. Buffers are byte slices, copies and query resolves run
// on Queue.Submit, and map requests stay pending until Poll or ResolveMap delivers them, in any
// order the caller chooses.
type HeadlessDevice struct {
	mu sync.Mutex

	queue       *headlessQueue
	features    map[Feature]bool
	errHandler  func(error)
	pendingMaps []*headlessPendingMap
	failAllocs  int
	liveBuffers int
	submits     int
	draws       []DrawRecord
	clock       uint64
	released    bool

	pollOnSubmit bool
}

// HeadlessOption configures a HeadlessDevice.
type HeadlessOption func(*HeadlessDevice)

// WithHeadlessFeatures enables optional features on the headless device.
func WithHeadlessFeatures(features ...Feature) HeadlessOption {
	return func(d *HeadlessDevice) {
		for _, f := range features {
			d.features[f] = true
		}
	}
}

// WithHeadlessPollOnSubmit makes Queue.Submit deliver pending map callbacks once the submitted
// commands ran, as wgpu-native's queue submit does during device maintenance.
func WithHeadlessPollOnSubmit() HeadlessOption {
	return func(d *HeadlessDevice) {
		d.pollOnSubmit = true
	}
}

var _ Device = &HeadlessDevice{}

// NewHeadlessDevice creates an in-memory device.
//
// Parameters:
//   - options: functional options such as WithHeadlessFeatures
//
// Returns:
//   - *HeadlessDevice: the device
func NewHeadlessDevice(options ...HeadlessOption) *HeadlessDevice {
	d := &HeadlessDevice{
		features: make(map[Feature]bool),
	}
	d.queue = &headlessQueue{device: d}
	for _, opt := range options {
		opt(d)
	}
	return d
}

type headlessPendingMap struct {
	buffer   *headlessBuffer
	mode     MapMode
	callback func(MapStatus)
}

func (d *HeadlessDevice) Queue() Queue {
	return d.queue
}

func (d *HeadlessDevice) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failAllocs > 0 {
		d.failAllocs--
		return nil, fmt.Errorf("%w: allocation of buffer %q (%d bytes) failed", ErrResource, desc.Label, desc.Size)
	}
	if desc.Usage&BufferUsageMapRead != 0 && desc.Usage&BufferUsageMapWrite != 0 {
		return nil, fmt.Errorf("%w: buffer %q cannot be mapped for both read and write", ErrResource, desc.Label)
	}

	b := &headlessBuffer{
		device: d,
		label:  desc.Label,
		usage:  desc.Usage,
		data:   make([]byte, desc.Size),
		state:  MapStateUnmapped,
	}
	if desc.MappedAtCreation {
		b.state = MapStateMapped
		b.mode = MapModeWrite
	}
	d.liveBuffers++
	return b, nil
}

func (d *HeadlessDevice) CreateBufferInit(label string, usage BufferUsage, contents []byte) (Buffer, error) {
	buf, err := d.CreateBuffer(&BufferDescriptor{Label: label, Size: uint64(len(contents)), Usage: usage})
	if err != nil {
		return nil, err
	}
	copy(buf.(*headlessBuffer).data, contents)
	return buf, nil
}

func (d *HeadlessDevice) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q has zero size", ErrResource, desc.Label)
	}
	return &headlessTexture{width: desc.Width, height: desc.Height, format: desc.Format}, nil
}

func (d *HeadlessDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	return &headlessEncoder{device: d, label: label}, nil
}

func (d *HeadlessDevice) CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	return &headlessLabeled{label: desc.Label}, nil
}

func (d *HeadlessDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	if desc.Layout == nil {
		return nil, fmt.Errorf("%w: bind group %q has no layout", ErrResource, desc.Label)
	}
	bg := &headlessBindGroup{label: desc.Label}
	for _, e := range desc.Entries {
		if e.Buffer == nil {
			continue
		}
		hb, ok := e.Buffer.(*headlessBuffer)
		if !ok || hb.destroyed {
			return nil, fmt.Errorf("%w: bind group %q references a destroyed buffer at binding %d", ErrResource, desc.Label, e.Binding)
		}
		bg.buffers = append(bg.buffers, hb)
	}
	return bg, nil
}

func (d *HeadlessDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	if desc.ShaderSource == "" {
		return nil, fmt.Errorf("%w: pipeline %q has no shader source", ErrResource, desc.Label)
	}
	return &headlessLabeled{label: desc.Label}, nil
}

func (d *HeadlessDevice) CreateQuerySet(label string, count uint32) (QuerySet, error) {
	if !d.HasFeature(FeatureTimestampQuery) {
		return nil, fmt.Errorf("%w: timestamp queries are not enabled", ErrUnsupported)
	}
	return &headlessQuerySet{values: make([]uint64, count)}, nil
}

func (d *HeadlessDevice) HasFeature(feature Feature) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.features[feature]
}

func (d *HeadlessDevice) SetErrorHandler(handler func(err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errHandler = handler
}

// Poll delivers, in request order, every map callback that was pending when it was called.
// Requests made from inside a callback wait for the next Poll.
func (d *HeadlessDevice) Poll(wait bool) {
	for n := d.PendingMaps(); n > 0; n-- {
		d.ResolveMap(0)
	}
}

func (d *HeadlessDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}

// PendingMaps returns the number of map requests waiting for delivery.
func (d *HeadlessDevice) PendingMaps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pendingMaps)
}

// ResolveMap delivers the i-th pending map request.
//
// Parameters:
//   - i: index into the pending map requests, in request order
//
// Returns:
//   - bool: false if there was no pending request at i
func (d *HeadlessDevice) ResolveMap(i int) bool {
	return d.ResolveMapWithStatus(i, MapStatusSuccess)
}

// ResolveMapWithStatus delivers the i-th pending map request with the given status.
// A destroyed or unmapped buffer always resolves with a failure status.
func (d *HeadlessDevice) ResolveMapWithStatus(i int, status MapStatus) bool {
	d.mu.Lock()
	if i < 0 || i >= len(d.pendingMaps) {
		d.mu.Unlock()
		return false
	}
	pm := d.pendingMaps[i]
	d.pendingMaps = append(d.pendingMaps[:i], d.pendingMaps[i+1:]...)

	b := pm.buffer
	switch {
	case b.destroyed:
		status = MapStatusDestroyed
	case b.state != MapStatePending:
		status = MapStatusAborted
	case status == MapStatusSuccess:
		b.state = MapStateMapped
		b.mode = pm.mode
	default:
		b.state = MapStateUnmapped
	}
	d.mu.Unlock()

	pm.callback(status)
	return true
}

// FailAllocations makes the next n buffer allocations fail with ErrResource.
func (d *HeadlessDevice) FailAllocations(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAllocs = n
}

// RaiseError reports err through the installed error handler, as an uncaptured device error would.
func (d *HeadlessDevice) RaiseError(err error) {
	d.mu.Lock()
	h := d.errHandler
	d.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// LiveBuffers returns the number of created buffers that have not been destroyed.
func (d *HeadlessDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveBuffers
}

// Submits returns the number of command buffers executed by the queue.
func (d *HeadlessDevice) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

// Draws returns every draw call executed so far.
func (d *HeadlessDevice) Draws() []DrawRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DrawRecord, len(d.draws))
	copy(out, d.draws)
	return out
}

// ResetDraws clears the recorded draw calls.
func (d *HeadlessDevice) ResetDraws() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = nil
}

// Contents returns a copy of a headless buffer's bytes regardless of its map state.
func (d *HeadlessDevice) Contents(buf Buffer) []byte {
	b, ok := buf.(*headlessBuffer)
	if !ok {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// BoundBuffers returns the buffers referenced by a bind group created on this device.
func (d *HeadlessDevice) BoundBuffers(bg BindGroup) []Buffer {
	hbg, ok := bg.(*headlessBindGroup)
	if !ok {
		return nil
	}
	out := make([]Buffer, len(hbg.buffers))
	for i, b := range hbg.buffers {
		out[i] = b
	}
	return out
}

func (d *HeadlessDevice) reportError(err error) {
	d.mu.Lock()
	h := d.errHandler
	d.mu.Unlock()
	if h != nil {
		h(err)
	}
}

type headlessBuffer struct {
	device    *HeadlessDevice
	label     string
	usage     BufferUsage
	data      []byte
	state     MapState
	mode      MapMode
	destroyed bool
}

func (b *headlessBuffer) Label() string      { return b.label }
func (b *headlessBuffer) Usage() BufferUsage { return b.usage }

func (b *headlessBuffer) Size() uint64 {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	return uint64(len(b.data))
}

func (b *headlessBuffer) MapState() MapState {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	return b.state
}

func (b *headlessBuffer) MapAsync(mode MapMode, offset, size uint64, callback func(MapStatus)) error {
	d := b.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if b.destroyed {
		return fmt.Errorf("%w: map of destroyed buffer %q", ErrInvalidState, b.label)
	}
	if b.state != MapStateUnmapped {
		return fmt.Errorf("%w: buffer %q is already mapped or pending", ErrInvalidState, b.label)
	}
	if mode == MapModeWrite && b.usage&BufferUsageMapWrite == 0 || mode == MapModeRead && b.usage&BufferUsageMapRead == 0 {
		return fmt.Errorf("%w: buffer %q lacks the usage for map mode %d", ErrInvalidState, b.label, mode)
	}
	if offset+size > uint64(len(b.data)) {
		return fmt.Errorf("%w: map range [%d, %d) exceeds buffer %q", ErrOutOfRange, offset, offset+size, b.label)
	}
	b.state = MapStatePending
	d.pendingMaps = append(d.pendingMaps, &headlessPendingMap{buffer: b, mode: mode, callback: callback})
	return nil
}

func (b *headlessBuffer) MappedRange(offset, size uint64) ([]byte, error) {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()

	if b.destroyed || b.state != MapStateMapped {
		return nil, fmt.Errorf("%w: buffer %q is not mapped", ErrInvalidState, b.label)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("%w: mapped range [%d, %d) exceeds buffer %q", ErrOutOfRange, offset, offset+size, b.label)
	}
	return b.data[offset : offset+size : offset+size], nil
}

func (b *headlessBuffer) Unmap() error {
	d := b.device
	d.mu.Lock()
	switch b.state {
	case MapStateMapped:
		b.state = MapStateUnmapped
		d.mu.Unlock()
		return nil
	case MapStatePending:
		b.state = MapStateUnmapped
		d.mu.Unlock()
		return nil
	default:
		d.mu.Unlock()
		return fmt.Errorf("%w: buffer %q is not mapped", ErrInvalidState, b.label)
	}
}

func (b *headlessBuffer) Destroy() {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.device.liveBuffers--
}

type headlessQueue struct {
	device *HeadlessDevice
}

func (q *headlessQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*headlessBuffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer", ErrInvalidState)
	}
	d := q.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if b.destroyed || b.state != MapStateUnmapped {
		return fmt.Errorf("%w: write to buffer %q in state %d", ErrInvalidState, b.label, b.state)
	}
	if b.usage&BufferUsageCopyDst == 0 {
		return fmt.Errorf("%w: buffer %q lacks CopyDst usage", ErrInvalidState, b.label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("%w: write [%d, %d) exceeds buffer %q", ErrOutOfRange, offset, offset+uint64(len(data)), b.label)
	}
	copy(b.data[offset:], data)
	return nil
}

func (q *headlessQueue) Submit(commands ...CommandBuffer) error {
	d := q.device
	for _, c := range commands {
		cb, ok := c.(*headlessCommandBuffer)
		if !ok {
			return fmt.Errorf("%w: foreign command buffer", ErrInvalidState)
		}
		d.mu.Lock()
		var err error
		for _, op := range cb.ops {
			if err = op(d); err != nil {
				break
			}
		}
		d.submits++
		d.mu.Unlock()
		if err != nil {
			d.reportError(err)
			return err
		}
	}
	if d.pollOnSubmit {
		d.Poll(false)
	}
	return nil
}

// headlessOp runs with the device lock held.
type headlessOp func(d *HeadlessDevice) error

type headlessCommandBuffer struct {
	ops []headlessOp
}

func (c *headlessCommandBuffer) Release() {}

type headlessEncoder struct {
	device   *HeadlessDevice
	label    string
	ops      []headlessOp
	finished bool
}

func (e *headlessEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error {
	if e.finished {
		return fmt.Errorf("%w: encoder %q already finished", ErrInvalidState, e.label)
	}
	s, ok1 := src.(*headlessBuffer)
	t, ok2 := dst.(*headlessBuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign buffer", ErrInvalidState)
	}
	e.ops = append(e.ops, func(d *HeadlessDevice) error {
		if s.destroyed || t.destroyed {
			return fmt.Errorf("%w: copy %q -> %q uses a destroyed buffer", ErrResource, s.label, t.label)
		}
		if s.state != MapStateUnmapped || t.state != MapStateUnmapped {
			return fmt.Errorf("%w: copy %q -> %q uses a mapped buffer", ErrResource, s.label, t.label)
		}
		if s.usage&BufferUsageCopySrc == 0 || t.usage&BufferUsageCopyDst == 0 {
			return fmt.Errorf("%w: copy %q -> %q lacks copy usage", ErrResource, s.label, t.label)
		}
		if srcOffset+size > uint64(len(s.data)) || dstOffset+size > uint64(len(t.data)) {
			return fmt.Errorf("%w: copy of %d bytes %q -> %q out of range", ErrResource, size, s.label, t.label)
		}
		copy(t.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
		return nil
	})
	return nil
}

func (e *headlessEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error) {
	if e.finished {
		return nil, fmt.Errorf("%w: encoder %q already finished", ErrInvalidState, e.label)
	}
	p := &headlessPass{encoder: e, label: desc.Label, bindGroups: make(map[uint32]string)}
	if tw := desc.Timestamps; tw != nil {
		qs, ok := tw.QuerySet.(*headlessQuerySet)
		if !ok {
			return nil, fmt.Errorf("%w: foreign query set", ErrInvalidState)
		}
		begin, end := tw.BeginIndex, tw.EndIndex
		e.ops = append(e.ops, func(d *HeadlessDevice) error {
			d.clock += 1000
			qs.values[begin] = d.clock
			qs.values[end] = d.clock + HeadlessTimestampDelta
			return nil
		})
	}
	return p, nil
}

func (e *headlessEncoder) ResolveQuerySet(querySet QuerySet, firstQuery, queryCount uint32, dst Buffer, dstOffset uint64) error {
	qs, ok1 := querySet.(*headlessQuerySet)
	t, ok2 := dst.(*headlessBuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign resource", ErrInvalidState)
	}
	e.ops = append(e.ops, func(d *HeadlessDevice) error {
		if t.destroyed || t.usage&BufferUsageQueryResolve == 0 {
			return fmt.Errorf("%w: resolve target %q is not a live query-resolve buffer", ErrResource, t.label)
		}
		if dstOffset+uint64(queryCount)*8 > uint64(len(t.data)) {
			return fmt.Errorf("%w: resolve target %q too small", ErrResource, t.label)
		}
		for i := uint32(0); i < queryCount; i++ {
			binary.LittleEndian.PutUint64(t.data[dstOffset+uint64(i)*8:], qs.values[firstQuery+i])
		}
		return nil
	})
	return nil
}

func (e *headlessEncoder) Finish() (CommandBuffer, error) {
	if e.finished {
		return nil, fmt.Errorf("%w: encoder %q already finished", ErrInvalidState, e.label)
	}
	e.finished = true
	return &headlessCommandBuffer{ops: e.ops}, nil
}

func (e *headlessEncoder) Release() {}

type headlessPass struct {
	encoder     *headlessEncoder
	label       string
	pipeline    string
	bindGroups  map[uint32]string
	vertex      string
	index       string
	indexFormat IndexFormat
	ended       bool
}

func (p *headlessPass) SetPipeline(pipeline RenderPipeline) {
	p.pipeline = pipeline.Label()
}

func (p *headlessPass) SetBindGroup(group uint32, bindGroup BindGroup) {
	p.bindGroups[group] = bindGroup.Label()
}

func (p *headlessPass) SetVertexBuffer(slot uint32, buf Buffer) {
	p.vertex = buf.Label()
}

func (p *headlessPass) SetIndexBuffer(buf Buffer, format IndexFormat) {
	p.index = buf.Label()
	p.indexFormat = format
}

func (p *headlessPass) record(r DrawRecord) {
	r.Pass = p.label
	r.Pipeline = p.pipeline
	r.VertexBuffer = p.vertex
	r.BindGroups = make(map[uint32]string, len(p.bindGroups))
	for k, v := range p.bindGroups {
		r.BindGroups[k] = v
	}
	p.encoder.ops = append(p.encoder.ops, func(d *HeadlessDevice) error {
		d.draws = append(d.draws, r)
		return nil
	})
}

func (p *headlessPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.record(DrawRecord{Count: vertexCount, InstanceCount: instanceCount, First: firstVertex, FirstInstance: firstInstance})
}

func (p *headlessPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.record(DrawRecord{
		Indexed:       true,
		IndexBuffer:   p.index,
		IndexFormat:   p.indexFormat,
		Count:         indexCount,
		InstanceCount: instanceCount,
		First:         firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

func (p *headlessPass) PushDebugGroup(label string) {}
func (p *headlessPass) PopDebugGroup()              {}

func (p *headlessPass) End() error {
	if p.ended {
		return fmt.Errorf("%w: render pass %q already ended", ErrInvalidState, p.label)
	}
	p.ended = true
	return nil
}

type headlessLabeled struct {
	label string
}

func (l *headlessLabeled) Label() string { return l.label }
func (l *headlessLabeled) Release()      {}

type headlessBindGroup struct {
	label   string
	buffers []*headlessBuffer
}

func (b *headlessBindGroup) Label() string { return b.label }
func (b *headlessBindGroup) Release()      {}

type headlessQuerySet struct {
	values []uint64
}

func (q *headlessQuerySet) Count() uint32 { return uint32(len(q.values)) }
func (q *headlessQuerySet) Release()      {}

type headlessTexture struct {
	width, height uint32
	format        TextureFormat
}

func (t *headlessTexture) Width() uint32         { return t.width }
func (t *headlessTexture) Height() uint32        { return t.height }
func (t *headlessTexture) Format() TextureFormat { return t.format }
func (t *headlessTexture) Release()              {}

func (t *headlessTexture) CreateView() (TextureView, error) {
	return &headlessTextureView{texture: t}, nil
}

type headlessTextureView struct {
	texture *headlessTexture
}

func (v *headlessTextureView) Release() {}

// HeadlessSurface is an offscreen Surface that hands out one texture view per frame.
type HeadlessSurface struct {
	width, height int
	format        TextureFormat
	acquired      bool
	presented     int
}

var _ Surface = &HeadlessSurface{}

// NewHeadlessSurface creates an offscreen surface of the given size.
func NewHeadlessSurface(width, height int) *HeadlessSurface {
	return &HeadlessSurface{width: width, height: height, format: TextureFormatBGRA8Unorm}
}

func (s *HeadlessSurface) Configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrOutOfRange, width, height)
	}
	s.width, s.height = width, height
	return nil
}

func (s *HeadlessSurface) Size() (int, int)      { return s.width, s.height }
func (s *HeadlessSurface) Format() TextureFormat { return s.format }

func (s *HeadlessSurface) AcquireView() (TextureView, error) {
	if s.acquired {
		return nil, fmt.Errorf("%w: previous frame not presented", ErrInvalidState)
	}
	s.acquired = true
	return &headlessTextureView{texture: &headlessTexture{width: uint32(s.width), height: uint32(s.height), format: s.format}}, nil
}

func (s *HeadlessSurface) Present() {
	if s.acquired {
		s.acquired = false
		s.presented++
	}
}

// Presented returns the number of presented frames.
func (s *HeadlessSurface) Presented() int {
	return s.presented
}

func (s *HeadlessSurface) Release() {}
