package render_pass

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"go.uber.org/zap"
)

// renderPass is the unexported implementation of RenderPass.
type renderPass struct {
	mu *sync.Mutex

	name       string
	descriptor Descriptor
	log        *zap.Logger

	bindGroups *bindGroupSet
	layers     *common.Lookup[Layer]

	timer       *gpuTimer
	lastGPUTime time.Duration
}

// RenderPass is one GPU render pass: a Descriptor for its attachments, pass-wide bind groups
// and an ordered list of Layers.
type RenderPass interface {
	// Name returns the pass name, unique within a Renderer.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Descriptor returns the pass's attachment descriptor.
	//
	// Returns:
	//   - Descriptor: the descriptor
	Descriptor() Descriptor

	// AddBindGroup adds a bind group set once at the start of the pass, keyed by the provider label.
	//
	// Parameters:
	//   - group: the bind group index
	//   - provider: the bind group provider
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the label is taken
	AddBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) error

	// BindGroup returns a bind group provider by label.
	//
	// Parameters:
	//   - name: the provider label
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider, or nil
	BindGroup(name string) bind_group_provider.BindGroupProvider

	// BindGroupAt returns a bind group provider by insertion index.
	//
	// Parameters:
	//   - i: the index
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider, or nil
	BindGroupAt(i int) bind_group_provider.BindGroupProvider

	// RemoveBindGroup removes a bind group provider by label.
	//
	// Parameters:
	//   - name: the provider label
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no such provider exists
	RemoveBindGroup(name string) error

	// AddLayer appends a layer.
	//
	// Parameters:
	//   - l: the layer
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the name is taken
	AddLayer(l Layer) error

	// Layer returns a layer by name.
	//
	// Parameters:
	//   - name: the layer name
	//
	// Returns:
	//   - Layer: the layer, or nil
	Layer(name string) Layer

	// LayerAt returns a layer by insertion index.
	//
	// Parameters:
	//   - i: the index
	//
	// Returns:
	//   - Layer: the layer, or nil
	LayerAt(i int) Layer

	// Layers returns the layers in render order.
	//
	// Returns:
	//   - []Layer: the layers
	Layers() []Layer

	// RemoveLayer removes a layer by name.
	//
	// Parameters:
	//   - name: the layer name
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no such layer exists
	RemoveLayer(name string) error

	// Update updates every layer in order.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//   - updated: the mesh groups updated so far this frame; nil gets a set local to this pass
	//
	// Returns:
	//   - error: the first layer error
	Update(deltaTime float32, updated UpdatedSet) error

	// Render encodes the pass: prepare the descriptor, begin the pass with timestamp writes when
	// timing is enabled, set pass bind groups, render layers, end, then resolve the timestamps.
	//
	// Parameters:
	//   - encoder: the frame's command encoder
	//   - frame: the frame target
	//
	// Returns:
	//   - error: a descriptor, encoder or layer error
	Render(encoder gpu.CommandEncoder, frame Frame) error

	// EndOfRender runs after the frame is submitted and requests the timestamp readback.
	//
	// Returns:
	//   - error: a map request error
	EndOfRender() error

	// EnableGPUTiming creates the query set and readback buffers used to time the pass.
	//
	// Parameters:
	//   - device: the GPU device
	//
	// Returns:
	//   - error: gpu.ErrUnsupported if the device lacks timestamp queries, or a resource error
	EnableGPUTiming(device gpu.Device) error

	// GPUTimingEnabled reports whether the pass records timestamps.
	//
	// Returns:
	//   - bool: true if timing is enabled
	GPUTimingEnabled() bool

	// LastGPUTime returns the most recent GPU duration read back for the pass.
	//
	// Returns:
	//   - time.Duration: the duration, 0 until the first readback completes
	LastGPUTime() time.Duration

	// OnCanvasResize forwards a canvas resize to the descriptor.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: a descriptor error
	OnCanvasResize(width, height int) error

	// Release releases the descriptor and timing resources.
	Release()
}

var _ RenderPass = &renderPass{}

// NewRenderPass creates a RenderPass.
//
// Parameters:
//   - name: the pass name
//   - descriptor: the attachment descriptor, must not be nil
//   - options: functional options such as WithPassBindGroup, WithLayers or WithLogger
//
// Returns:
//   - RenderPass: the pass
//   - error: an error from a WithPassBindGroup or WithLayers option
func NewRenderPass(name string, descriptor Descriptor, options ...RenderPassBuilderOption) (RenderPass, error) {
	if descriptor == nil {
		panic("render_pass: NewRenderPass requires a non-nil Descriptor")
	}
	p := &renderPass{
		mu:         &sync.Mutex{},
		name:       name,
		descriptor: descriptor,
		bindGroups: newBindGroupSet("render pass " + name),
		layers:     common.NewLookup[Layer](),
	}
	for _, opt := range options {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.log = logger.Or(p.log).With(zap.String("renderPass", name))
	return p, nil
}

func (p *renderPass) Name() string {
	return p.name
}

func (p *renderPass) Descriptor() Descriptor {
	return p.descriptor
}

func (p *renderPass) AddBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroups.add(group, provider)
}

func (p *renderPass) BindGroup(name string) bind_group_provider.BindGroupProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroups.get(name)
}

func (p *renderPass) BindGroupAt(i int) bind_group_provider.BindGroupProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroups.at(i)
}

func (p *renderPass) RemoveBindGroup(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroups.remove(name)
}

func (p *renderPass) AddLayer(l Layer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLayer(l)
}

func (p *renderPass) addLayer(l Layer) error {
	if !p.layers.Add(l.Name(), l) {
		return fmt.Errorf("render pass %q: layer %q: %w", p.name, l.Name(), gpu.ErrDuplicate)
	}
	return nil
}

func (p *renderPass) Layer(name string) Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, _ := p.layers.Get(name)
	return l
}

func (p *renderPass) LayerAt(i int) Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, _ := p.layers.At(i)
	return l
}

func (p *renderPass) Layers() []Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layers.Items()
}

func (p *renderPass) RemoveLayer(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.layers.Remove(name); !ok {
		return fmt.Errorf("render pass %q: layer %q: %w", p.name, name, gpu.ErrNotFound)
	}
	return nil
}

func (p *renderPass) Update(deltaTime float32, updated UpdatedSet) error {
	if updated == nil {
		updated = make(UpdatedSet)
	}
	for _, l := range p.Layers() {
		if err := l.Update(deltaTime, updated); err != nil {
			return fmt.Errorf("render pass %q: %w", p.name, err)
		}
	}
	return nil
}

func (p *renderPass) Render(encoder gpu.CommandEncoder, frame Frame) error {
	// Layers may submit staging copies, and a submit can deliver map callbacks that take p.mu,
	// so the lock only covers the pass setup.
	p.mu.Lock()
	pass, timer, layers, err := p.begin(encoder, frame)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	for _, l := range layers {
		if err := l.Render(pass); err != nil {
			_ = pass.End()
			return fmt.Errorf("render pass %q: %w", p.name, err)
		}
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("render pass %q: %w", p.name, err)
	}

	if timer != nil {
		if err := timer.encodeResolve(encoder); err != nil {
			return fmt.Errorf("render pass %q: timestamps: %w", p.name, err)
		}
	}
	return nil
}

// begin opens the pass and binds the pass level groups. Callers hold p.mu.
func (p *renderPass) begin(encoder gpu.CommandEncoder, frame Frame) (gpu.RenderPassEncoder, *gpuTimer, []Layer, error) {
	if err := p.descriptor.Prepare(frame); err != nil {
		return nil, nil, nil, fmt.Errorf("render pass %q: %w", p.name, err)
	}
	desc := p.descriptor.RenderPassDescriptor()
	desc.Label = p.name
	if p.timer != nil {
		desc.Timestamps = p.timer.writes()
	}

	pass, err := encoder.BeginRenderPass(desc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("render pass %q: %w", p.name, err)
	}
	if err := p.bindGroups.apply(pass); err != nil {
		_ = pass.End()
		return nil, nil, nil, err
	}
	return pass, p.timer, p.layers.Items(), nil
}

func (p *renderPass) EndOfRender() error {
	p.mu.Lock()
	timer := p.timer
	p.mu.Unlock()
	if timer == nil {
		return nil
	}
	err := timer.readback(p.log, func(d time.Duration) {
		p.mu.Lock()
		p.lastGPUTime = d
		p.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("render pass %q: timestamps: %w", p.name, err)
	}
	return nil
}

func (p *renderPass) EnableGPUTiming(device gpu.Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		return nil
	}
	timer, err := newGPUTimer(device, p.name)
	if err != nil {
		return err
	}
	p.timer = timer
	p.log.Debug("gpu timing enabled")
	return nil
}

func (p *renderPass) GPUTimingEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

func (p *renderPass) LastGPUTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastGPUTime
}

func (p *renderPass) OnCanvasResize(width, height int) error {
	if err := p.descriptor.OnCanvasResize(width, height); err != nil {
		return fmt.Errorf("render pass %q: %w", p.name, err)
	}
	return nil
}

func (p *renderPass) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descriptor.Release()
	if p.timer != nil {
		p.timer.release()
		p.timer = nil
	}
}
