package renderer

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_pass"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	device  gpu.Device
	surface gpu.Surface
	log     *zap.Logger
	state   FrameState

	pipelines  map[string]pipeline.Pipeline
	passes     *common.Lookup[render_pass.RenderPass]
	meshGroups *common.Lookup[mesh_group.MeshGroup]
	textures   *common.Lookup[gpu.Texture]
	materials  material.MaterialGroup

	// errMu guards deviceErr separately because the device reports errors from inside Submit.
	errMu     *sync.Mutex
	deviceErr error

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	gpuTiming            bool
}

// Renderer owns the GPU device and surface and drives the render graph: an ordered list of
// RenderPasses whose Layers draw MeshGroups from the renderer's registry.
//
// A frame is Update followed by Render. Update delivers pending map callbacks and runs every
// update hook; Render encodes all passes into one command buffer, submits and presents it, then
// requests timestamp readbacks.
type Renderer interface {
	// Device returns the GPU device, for creating pipelines, bind groups and buffers.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Surface returns the presentable surface.
	//
	// Returns:
	//   - gpu.Surface: the surface
	Surface() gpu.Surface

	// FrameState returns the current position in the frame cycle.
	//
	// Returns:
	//   - FrameState: the state
	FrameState() FrameState

	// Pipeline retrieves the cached Pipeline associated with the given key.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// AddPipeline caches a Pipeline under its key.
	//
	// Parameters:
	//   - p: the pipeline
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the key is taken
	AddPipeline(p pipeline.Pipeline) error

	// AddRenderPass appends a render pass. GPU timing is enabled on it when the renderer was built
	// with WithGPUTiming and the device supports timestamp queries.
	//
	// Parameters:
	//   - p: the render pass
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the name is taken, or a timing resource error
	AddRenderPass(p render_pass.RenderPass) error

	// RenderPass returns a render pass by name.
	//
	// Parameters:
	//   - name: the pass name
	//
	// Returns:
	//   - render_pass.RenderPass: the pass, or nil
	RenderPass(name string) render_pass.RenderPass

	// RenderPassAt returns a render pass by insertion index.
	//
	// Parameters:
	//   - i: the index
	//
	// Returns:
	//   - render_pass.RenderPass: the pass, or nil
	RenderPassAt(i int) render_pass.RenderPass

	// RenderPasses returns the passes in render order.
	//
	// Returns:
	//   - []render_pass.RenderPass: the passes
	RenderPasses() []render_pass.RenderPass

	// RemoveRenderPass removes and releases a render pass.
	//
	// Parameters:
	//   - name: the pass name
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no such pass exists
	RemoveRenderPass(name string) error

	// CreateMeshGroup creates a mesh group on the renderer's device and registers it.
	//
	// Parameters:
	//   - name: the group name
	//   - options: mesh group options
	//
	// Returns:
	//   - mesh_group.MeshGroup: the group
	//   - error: gpu.ErrDuplicate if the name is taken, or a mesh group error
	CreateMeshGroup(name string, options ...mesh_group.MeshGroupBuilderOption) (mesh_group.MeshGroup, error)

	// AddMeshGroup registers a mesh group so layers can draw it by name.
	//
	// Parameters:
	//   - g: the mesh group
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the name is taken
	AddMeshGroup(g mesh_group.MeshGroup) error

	// MeshGroup returns a registered mesh group by name.
	//
	// Parameters:
	//   - name: the group name
	//
	// Returns:
	//   - mesh_group.MeshGroup: the group, or nil
	MeshGroup(name string) mesh_group.MeshGroup

	// RemoveMeshGroup unregisters a mesh group, drops it from every layer, informs it of the
	// removal and destroys its buffers.
	//
	// Parameters:
	//   - name: the group name
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no such group exists
	RemoveMeshGroup(name string) error

	// AddTexture registers a texture by name.
	//
	// Parameters:
	//   - name: the texture name
	//   - tex: the texture
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the name is taken
	AddTexture(name string, tex gpu.Texture) error

	// Texture returns a registered texture.
	//
	// Parameters:
	//   - name: the texture name
	//
	// Returns:
	//   - gpu.Texture: the texture, or nil
	Texture(name string) gpu.Texture

	// RemoveTexture unregisters and releases a texture.
	//
	// Parameters:
	//   - name: the texture name
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no such texture exists
	RemoveTexture(name string) error

	// Materials returns the renderer's material registry.
	//
	// Returns:
	//   - material.MaterialGroup: the registry
	Materials() material.MaterialGroup

	// CanComputeGPUTimestamps reports whether the device supports timestamp queries.
	//
	// Returns:
	//   - bool: true if passes can be timed on the GPU
	CanComputeGPUTimestamps() bool

	// PassTimings returns the latest GPU duration of every timed pass.
	//
	// Returns:
	//   - map[string]time.Duration: durations keyed by pass name
	PassTimings() map[string]time.Duration

	// WriteBuffers writes all staged buffer writes to the GPU queue. Every write is attempted.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	//
	// Returns:
	//   - error: the combined errors of the failed writes
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// Update delivers pending map callbacks and updates every pass. Allowed only when idle.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - error: gpu.ErrFrameState out of order, gpu.ErrDeviceLost after a device error, or an update hook error
	Update(deltaTime float32) error

	// Render encodes, submits and presents one frame. Allowed only after Update.
	//
	// Returns:
	//   - error: gpu.ErrFrameState out of order, gpu.ErrDeviceLost after a device error, or an encoding error
	Render() error

	// OnCanvasResize reconfigures the surface and resizes every pass. Every pass is resized even
	// when an earlier one fails.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: the combined resize errors
	OnCanvasResize(width, height int) error

	// Release releases every registered resource, the surface and the device.
	//
	// Returns:
	//   - error: the device error recorded during the renderer's lifetime, if any
	Release() error
}

var _ Renderer = &renderer{}
var _ render_pass.MeshGroupSource = &renderer{}

// NewRenderer creates a new Renderer with the specified backend drawing into target.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - target: the window or offscreen target providing the surface descriptor and size
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error wrapping gpu.ErrResource if the device or surface could not be created
func NewRenderer(backendType RendererBackendType, target Target, options ...RendererBuilderOption) (Renderer, error) {
	if target == nil {
		panic("renderer: NewRenderer requires a non-nil Target")
	}
	r := newRenderer(options)
	device, surface, err := newBackend(backendType, target, r)
	if err != nil {
		return nil, err
	}
	if err := r.attach(device, surface); err != nil {
		surface.Release()
		device.Release()
		return nil, err
	}
	r.log.Debug("renderer created", zap.Stringer("backend", backendType), zap.Stringer("presentMode", r.presentMode))
	return r, nil
}

// NewRendererWithDevice creates a Renderer over an existing device and surface, typically a
// headless pair in tests.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - surface: the surface, must not be nil
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: a resource error from the material registry
func NewRendererWithDevice(device gpu.Device, surface gpu.Surface, options ...RendererBuilderOption) (Renderer, error) {
	if device == nil || surface == nil {
		panic("renderer: NewRendererWithDevice requires a non-nil Device and Surface")
	}
	r := newRenderer(options)
	if err := r.attach(device, surface); err != nil {
		return nil, err
	}
	return r, nil
}

func newRenderer(options []RendererBuilderOption) *renderer {
	r := &renderer{
		mu:         &sync.Mutex{},
		errMu:      &sync.Mutex{},
		pipelines:  make(map[string]pipeline.Pipeline),
		passes:     common.NewLookup[render_pass.RenderPass](),
		meshGroups: common.NewLookup[mesh_group.MeshGroup](),
		textures:   common.NewLookup[gpu.Texture](),
	}
	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	r.log = logger.Or(r.log)
	return r
}

func (r *renderer) attach(device gpu.Device, surface gpu.Surface) error {
	r.device, r.surface = device, surface
	device.SetErrorHandler(r.onDeviceError)

	materials, err := material.NewMaterialGroup(device, material.WithGroupLogger(r.log))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.materials = materials
	return nil
}

// onDeviceError records the first uncaptured device error. Later frames fail with it.
func (r *renderer) onDeviceError(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.deviceErr != nil {
		return
	}
	r.deviceErr = err
	r.log.Error("uncaptured device error", zap.Error(err))
}

func (r *renderer) fatal() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.deviceErr == nil {
		return nil
	}
	return fmt.Errorf("renderer: %w: %w", gpu.ErrDeviceLost, r.deviceErr)
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) Surface() gpu.Surface {
	return r.surface
}

func (r *renderer) FrameState() FrameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelines[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelines))
	for k, p := range r.pipelines {
		out[k] = p
	}
	return out
}

func (r *renderer) AddPipeline(p pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pipelines[p.Key()]; exists {
		return fmt.Errorf("renderer: pipeline %q: %w", p.Key(), gpu.ErrDuplicate)
	}
	r.pipelines[p.Key()] = p
	return nil
}

func (r *renderer) AddRenderPass(p render_pass.RenderPass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.passes.Has(p.Name()) {
		return fmt.Errorf("renderer: render pass %q: %w", p.Name(), gpu.ErrDuplicate)
	}
	if r.gpuTiming && r.device.HasFeature(gpu.FeatureTimestampQuery) {
		if err := p.EnableGPUTiming(r.device); err != nil {
			return fmt.Errorf("renderer: %w", err)
		}
	}
	r.passes.Add(p.Name(), p)
	return nil
}

func (r *renderer) RenderPass(name string) render_pass.RenderPass {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := r.passes.Get(name)
	return p
}

func (r *renderer) RenderPassAt(i int) render_pass.RenderPass {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := r.passes.At(i)
	return p
}

func (r *renderer) RenderPasses() []render_pass.RenderPass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes.Items()
}

func (r *renderer) RemoveRenderPass(name string) error {
	r.mu.Lock()
	p, ok := r.passes.Remove(name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("renderer: render pass %q: %w", name, gpu.ErrNotFound)
	}
	p.Release()
	return nil
}

func (r *renderer) CreateMeshGroup(name string, options ...mesh_group.MeshGroupBuilderOption) (mesh_group.MeshGroup, error) {
	if r.MeshGroup(name) != nil {
		return nil, fmt.Errorf("renderer: mesh group %q: %w", name, gpu.ErrDuplicate)
	}
	opts := append([]mesh_group.MeshGroupBuilderOption{mesh_group.WithLogger(r.log)}, options...)
	g, err := mesh_group.NewMeshGroup(name, r.device, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.AddMeshGroup(g); err != nil {
		g.Destroy()
		return nil, err
	}
	return g, nil
}

func (r *renderer) AddMeshGroup(g mesh_group.MeshGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.meshGroups.Add(g.Name(), g) {
		return fmt.Errorf("renderer: mesh group %q: %w", g.Name(), gpu.ErrDuplicate)
	}
	return nil
}

func (r *renderer) MeshGroup(name string) mesh_group.MeshGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, _ := r.meshGroups.Get(name)
	return g
}

func (r *renderer) RemoveMeshGroup(name string) error {
	r.mu.Lock()
	g, ok := r.meshGroups.Remove(name)
	passes := r.passes.Items()
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("renderer: mesh group %q: %w", name, gpu.ErrNotFound)
	}

	for _, p := range passes {
		for _, l := range p.Layers() {
			l.RemoveMeshGroup(name)
		}
	}
	g.InformRemoval()
	g.Destroy()
	return nil
}

func (r *renderer) AddTexture(name string, tex gpu.Texture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.textures.Add(name, tex) {
		return fmt.Errorf("renderer: texture %q: %w", name, gpu.ErrDuplicate)
	}
	return nil
}

func (r *renderer) Texture(name string) gpu.Texture {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, _ := r.textures.Get(name)
	return t
}

func (r *renderer) RemoveTexture(name string) error {
	r.mu.Lock()
	t, ok := r.textures.Remove(name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("renderer: texture %q: %w", name, gpu.ErrNotFound)
	}
	t.Release()
	return nil
}

func (r *renderer) Materials() material.MaterialGroup {
	return r.materials
}

func (r *renderer) CanComputeGPUTimestamps() bool {
	return r.device.HasFeature(gpu.FeatureTimestampQuery)
}

func (r *renderer) PassTimings() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, p := range r.RenderPasses() {
		if p.GPUTimingEnabled() {
			out[p.Name()] = p.LastGPUTime()
		}
	}
	return out
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	var errs error
	queue := r.device.Queue()
	for _, w := range writes {
		errs = multierr.Append(errs, w.Apply(queue))
	}
	return errs
}

// transition moves the frame state from one of the allowed states to the next.
func (r *renderer) transition(to FrameState, from ...FrameState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range from {
		if r.state == f {
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("renderer: %s while %s: %w", to, r.state, gpu.ErrFrameState)
}

func (r *renderer) setState(s FrameState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *renderer) Update(deltaTime float32) error {
	if err := r.fatal(); err != nil {
		return err
	}
	if err := r.transition(FrameStateUpdating, FrameStateIdle); err != nil {
		return err
	}

	// Staging buffers remapped after the previous submit become writable here.
	r.device.Poll(false)

	updated := make(render_pass.UpdatedSet)
	for _, p := range r.RenderPasses() {
		if err := p.Update(deltaTime, updated); err != nil {
			r.setState(FrameStateIdle)
			return fmt.Errorf("renderer: %w", err)
		}
	}
	if err := r.fatal(); err != nil {
		r.setState(FrameStateIdle)
		return err
	}
	return nil
}

func (r *renderer) Render() error {
	if err := r.fatal(); err != nil {
		return err
	}
	if err := r.transition(FrameStateEncoding, FrameStateUpdating); err != nil {
		return err
	}
	// Whatever happens below, the next frame starts from idle.
	defer r.setState(FrameStateIdle)

	view, err := r.surface.AcquireView()
	if err != nil {
		return fmt.Errorf("renderer: acquire surface view: %w", err)
	}
	width, height := r.surface.Size()
	frame := render_pass.Frame{View: view, Width: width, Height: height}

	encoder, err := r.device.CreateCommandEncoder("Frame Encoder")
	if err != nil {
		r.surface.Present()
		return fmt.Errorf("renderer: %w", err)
	}
	defer encoder.Release()

	passes := r.RenderPasses()
	for _, p := range passes {
		if err := p.Render(encoder, frame); err != nil {
			r.surface.Present()
			return fmt.Errorf("renderer: %w", err)
		}
	}

	cb, err := encoder.Finish()
	if err != nil {
		r.surface.Present()
		return fmt.Errorf("renderer: %w", err)
	}
	defer cb.Release()
	if err := r.device.Queue().Submit(cb); err != nil {
		r.surface.Present()
		return fmt.Errorf("renderer: submit: %w: %w", gpu.ErrResource, err)
	}
	r.setState(FrameStateSubmitted)
	r.surface.Present()

	r.setState(FrameStateResolving)
	for _, p := range passes {
		if err := p.EndOfRender(); err != nil {
			return fmt.Errorf("renderer: %w", err)
		}
	}
	return r.fatal()
}

func (r *renderer) OnCanvasResize(width, height int) error {
	if err := r.surface.Configure(width, height); err != nil {
		return fmt.Errorf("renderer: resize: %w", err)
	}
	var errs error
	for _, p := range r.RenderPasses() {
		errs = multierr.Append(errs, p.OnCanvasResize(width, height))
	}
	return errs
}

func (r *renderer) Release() error {
	r.mu.Lock()
	passes := r.passes.Items()
	groups := r.meshGroups.Items()
	textures := r.textures.Items()
	pipelines := r.pipelines
	r.passes.Clear()
	r.meshGroups.Clear()
	r.textures.Clear()
	r.pipelines = make(map[string]pipeline.Pipeline)
	r.mu.Unlock()

	for _, p := range passes {
		p.Release()
	}
	for _, g := range groups {
		g.Destroy()
	}
	for _, t := range textures {
		t.Release()
	}
	for _, p := range pipelines {
		p.Release()
	}
	if r.materials != nil {
		r.materials.Destroy()
	}
	r.surface.Release()
	r.device.Release()
	return r.fatal()
}
