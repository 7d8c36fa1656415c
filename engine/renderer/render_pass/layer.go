package render_pass

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/pipeline"
)

// UpdatedSet records the mesh groups updated during one frame. A group drawn by several layers
// runs its render item hooks once per frame. A nil set records nothing.
type UpdatedSet map[string]struct{}

// mark records name and reports whether it was not yet recorded.
func (s UpdatedSet) mark(name string) bool {
	if s == nil {
		return true
	}
	if _, ok := s[name]; ok {
		return false
	}
	s[name] = struct{}{}
	return true
}

// MeshGroupSource resolves mesh groups by name. The Renderer implements it with its mesh group registry.
type MeshGroupSource interface {
	MeshGroup(name string) mesh_group.MeshGroup
}

// layer is the unexported implementation of Layer.
type layer struct {
	mu *sync.Mutex

	name     string
	pipeline pipeline.Pipeline
	source   MeshGroupSource

	bindGroups *bindGroupSet
	meshGroups *common.Lookup[mesh_group.MeshGroup]

	update func(l Layer, deltaTime float32) error
}

// Layer draws a set of mesh groups with one pipeline. Layers render in insertion order within their RenderPass.
type Layer interface {
	// Name returns the layer name, unique within its RenderPass.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Pipeline returns the pipeline the layer sets before drawing.
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline
	Pipeline() pipeline.Pipeline

	// AddBindGroup adds a bind group set after the pipeline, keyed by the provider label.
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

	// AddMeshGroup looks a mesh group up in the source and appends it to the draw list. A group
	// may be drawn by several layers; it is still updated once per frame.
	//
	// Parameters:
	//   - name: the mesh group name
	//
	// Returns:
	//   - error: gpu.ErrNotFound if the source has no such group, gpu.ErrDuplicate if already added
	AddMeshGroup(name string) error

	// RemoveMeshGroup drops a mesh group from the draw list.
	//
	// Parameters:
	//   - name: the mesh group name
	//
	// Returns:
	//   - bool: true if the group was present
	RemoveMeshGroup(name string) bool

	// MeshGroupNames returns the names of the drawn mesh groups in draw order.
	//
	// Returns:
	//   - []string: the names
	MeshGroupNames() []string

	// SetUpdate installs the per-frame update hook, run before the mesh groups update.
	//
	// Parameters:
	//   - fn: the hook, or nil to clear it
	SetUpdate(fn func(l Layer, deltaTime float32) error)

	// Update runs the layer hook and then updates every mesh group not already in updated.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//   - updated: the mesh groups updated so far this frame, or nil
	//
	// Returns:
	//   - error: the first error
	Update(deltaTime float32, updated UpdatedSet) error

	// Render sets the pipeline and bind groups and renders every mesh group.
	//
	// Parameters:
	//   - pass: the render pass encoder
	//
	// Returns:
	//   - error: the first bind group or mesh group error
	Render(pass gpu.RenderPassEncoder) error
}

var _ Layer = &layer{}

// NewLayer creates a Layer.
//
// Parameters:
//   - name: the layer name
//   - p: the pipeline, must not be nil
//   - source: where mesh groups are looked up, must not be nil
//   - options: functional options such as WithLayerBindGroup or WithLayerMeshGroups
//
// Returns:
//   - Layer: the layer
//   - error: an error from a WithLayerBindGroup or WithLayerMeshGroups option
func NewLayer(name string, p pipeline.Pipeline, source MeshGroupSource, options ...LayerBuilderOption) (Layer, error) {
	if p == nil {
		panic("render_pass: NewLayer requires a non-nil Pipeline")
	}
	if source == nil {
		panic("render_pass: NewLayer requires a non-nil MeshGroupSource")
	}
	l := &layer{
		mu:         &sync.Mutex{},
		name:       name,
		pipeline:   p,
		source:     source,
		bindGroups: newBindGroupSet("layer " + name),
		meshGroups: common.NewLookup[mesh_group.MeshGroup](),
	}
	for _, opt := range options {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *layer) Name() string {
	return l.name
}

func (l *layer) Pipeline() pipeline.Pipeline {
	return l.pipeline
}

func (l *layer) AddBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindGroups.add(group, provider)
}

func (l *layer) BindGroup(name string) bind_group_provider.BindGroupProvider {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindGroups.get(name)
}

func (l *layer) BindGroupAt(i int) bind_group_provider.BindGroupProvider {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindGroups.at(i)
}

func (l *layer) RemoveBindGroup(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindGroups.remove(name)
}

func (l *layer) AddMeshGroup(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addMeshGroup(name)
}

func (l *layer) addMeshGroup(name string) error {
	g := l.source.MeshGroup(name)
	if g == nil {
		return fmt.Errorf("layer %q: mesh group %q: %w", l.name, name, gpu.ErrNotFound)
	}
	if !l.meshGroups.Add(name, g) {
		return fmt.Errorf("layer %q: mesh group %q: %w", l.name, name, gpu.ErrDuplicate)
	}
	return nil
}

func (l *layer) RemoveMeshGroup(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.meshGroups.Remove(name)
	return ok
}

func (l *layer) MeshGroupNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meshGroups.Keys()
}

func (l *layer) SetUpdate(fn func(l Layer, deltaTime float32) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.update = fn
}

func (l *layer) Update(deltaTime float32, updated UpdatedSet) error {
	l.mu.Lock()
	fn := l.update
	groups := l.meshGroups.Items()
	l.mu.Unlock()

	if fn != nil {
		if err := fn(l, deltaTime); err != nil {
			return fmt.Errorf("layer %q: %w", l.name, err)
		}
	}
	for _, g := range groups {
		if !updated.mark(g.Name()) {
			continue
		}
		if err := g.Update(deltaTime); err != nil {
			return fmt.Errorf("layer %q: %w", l.name, err)
		}
	}
	return nil
}

func (l *layer) Render(pass gpu.RenderPassEncoder) error {
	l.mu.Lock()
	groups := l.meshGroups.Items()
	if len(groups) == 0 {
		l.mu.Unlock()
		return nil
	}
	pass.SetPipeline(l.pipeline.RenderPipeline())
	err := l.bindGroups.apply(pass)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	for _, g := range groups {
		if err := g.Render(pass); err != nil {
			return fmt.Errorf("layer %q: %w", l.name, err)
		}
	}
	return nil
}
