package render_item

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
)

// boundGroup is a bind group provider set at a group index before the draw.
type boundGroup struct {
	group    uint32
	provider bind_group_provider.BindGroupProvider
}

// renderItem is the unexported implementation of RenderItem.
type renderItem struct {
	mu *sync.Mutex

	name     string
	meshName string

	// descriptor is rewritten by the owning MeshGroup whenever its buffers are rebuilt.
	descriptor    mesh.Descriptor
	instanceCount uint32
	startInstance uint32
	active        bool

	bindGroups []boundGroup

	update    func(item RenderItem, deltaTime float32) error
	preRender func() error
}

// RenderItem is one draw of one mesh of a MeshGroup, instanced instanceCount times.
// Items are created by MeshGroup.CreateRenderItem and owned by that group.
type RenderItem interface {
	// Name returns the item name, unique within its MeshGroup.
	//
	// Returns:
	//   - string: the name
	Name() string

	// MeshName returns the name of the mesh this item draws.
	//
	// Returns:
	//   - string: the mesh name
	MeshName() string

	// Descriptor returns the location of the mesh in the group's shared buffers.
	//
	// Returns:
	//   - mesh.Descriptor: the descriptor as of the last rebuild
	Descriptor() mesh.Descriptor

	// SetDescriptor replaces the descriptor. Called by the owning MeshGroup after a rebuild.
	//
	// Parameters:
	//   - d: the new descriptor
	SetDescriptor(d mesh.Descriptor)

	// InstanceCount returns the number of instances drawn.
	//
	// Returns:
	//   - uint32: the instance count, 1 by default
	InstanceCount() uint32

	// SetInstanceCount sets the number of instances drawn.
	//
	// Parameters:
	//   - n: the instance count
	SetInstanceCount(n uint32)

	// StartInstance returns the first instance index passed to the draw.
	//
	// Returns:
	//   - uint32: the first instance
	StartInstance() uint32

	// SetStartInstance sets the first instance index passed to the draw.
	//
	// Parameters:
	//   - n: the first instance
	SetStartInstance(n uint32)

	// Active reports whether the item is drawn.
	//
	// Returns:
	//   - bool: true if the item is drawn
	Active() bool

	// SetActive enables or disables drawing of the item.
	//
	// Parameters:
	//   - active: whether to draw the item
	SetActive(active bool)

	// SetBindGroup sets or replaces the provider bound at a group index before the draw.
	//
	// Parameters:
	//   - group: the bind group index
	//   - provider: the bind group provider
	SetBindGroup(group uint32, provider bind_group_provider.BindGroupProvider)

	// BindGroup returns the provider bound at a group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider, or nil
	BindGroup(group uint32) bind_group_provider.BindGroupProvider

	// RemoveBindGroup removes the provider bound at a group index.
	//
	// Parameters:
	//   - group: the bind group index
	RemoveBindGroup(group uint32)

	// SetUpdate installs the per-frame update hook.
	//
	// Parameters:
	//   - fn: the hook, or nil to clear it
	SetUpdate(fn func(item RenderItem, deltaTime float32) error)

	// SetPreRender installs the hook run immediately before the item's draw is encoded,
	// typically the flush of an instance buffer writer.
	//
	// Parameters:
	//   - fn: the hook, or nil to clear it
	SetPreRender(fn func() error)

	// Update runs the update hook.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - error: the hook's error
	Update(deltaTime float32) error

	// Render runs the pre-render hook, regenerates stale bind groups, sets them and encodes the draw.
	// Inactive items and items with zero instances encode nothing.
	//
	// Parameters:
	//   - pass: the render pass encoder with the group's vertex and index buffers already set
	//
	// Returns:
	//   - error: a hook or bind group error
	Render(pass gpu.RenderPassEncoder) error
}

var _ RenderItem = &renderItem{}

// NewRenderItem creates a RenderItem. It is called by MeshGroup, which supplies the descriptor of meshName.
//
// Parameters:
//   - name: the item name
//   - meshName: the mesh the item draws
//   - descriptor: the mesh's current descriptor
//   - options: functional options such as WithInstanceCount or WithBindGroup
//
// Returns:
//   - RenderItem: the item, active with one instance unless configured otherwise
func NewRenderItem(name, meshName string, descriptor mesh.Descriptor, options ...RenderItemBuilderOption) RenderItem {
	r := &renderItem{
		mu:            &sync.Mutex{},
		name:          name,
		meshName:      meshName,
		descriptor:    descriptor,
		instanceCount: 1,
		active:        true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *renderItem) Name() string {
	return r.name
}

func (r *renderItem) MeshName() string {
	return r.meshName
}

func (r *renderItem) Descriptor() mesh.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.descriptor
}

func (r *renderItem) SetDescriptor(d mesh.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptor = d
}

func (r *renderItem) InstanceCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceCount
}

func (r *renderItem) SetInstanceCount(n uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instanceCount = n
}

func (r *renderItem) StartInstance() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startInstance
}

func (r *renderItem) SetStartInstance(n uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startInstance = n
}

func (r *renderItem) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *renderItem) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
}

func (r *renderItem) SetBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setBindGroup(group, provider)
}

func (r *renderItem) setBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) {
	for i := range r.bindGroups {
		if r.bindGroups[i].group == group {
			r.bindGroups[i].provider = provider
			return
		}
	}
	r.bindGroups = append(r.bindGroups, boundGroup{group: group, provider: provider})
}

func (r *renderItem) BindGroup(group uint32) bind_group_provider.BindGroupProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bg := range r.bindGroups {
		if bg.group == group {
			return bg.provider
		}
	}
	return nil
}

func (r *renderItem) RemoveBindGroup(group uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, bg := range r.bindGroups {
		if bg.group == group {
			r.bindGroups = append(r.bindGroups[:i], r.bindGroups[i+1:]...)
			return
		}
	}
}

func (r *renderItem) SetUpdate(fn func(item RenderItem, deltaTime float32) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.update = fn
}

func (r *renderItem) SetPreRender(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preRender = fn
}

func (r *renderItem) Update(deltaTime float32) error {
	r.mu.Lock()
	fn := r.update
	r.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(r, deltaTime)
}

func (r *renderItem) Render(pass gpu.RenderPassEncoder) error {
	r.mu.Lock()
	active, instances := r.active, r.instanceCount
	preRender := r.preRender
	r.mu.Unlock()
	if !active || instances == 0 {
		return nil
	}

	// The pre-render hook may grow buffers the bind groups point at, so it runs first.
	if preRender != nil {
		if err := preRender(); err != nil {
			return fmt.Errorf("render item %q: pre-render: %w", r.name, err)
		}
	}

	r.mu.Lock()
	groups := append([]boundGroup(nil), r.bindGroups...)
	d := r.descriptor
	instances, first := r.instanceCount, r.startInstance
	r.mu.Unlock()

	for _, bg := range groups {
		if _, err := bg.provider.RegenerateIfStale(); err != nil {
			return fmt.Errorf("render item %q: %w", r.name, err)
		}
		pass.SetBindGroup(bg.group, bg.provider.BindGroup())
	}

	if d.Indexed() {
		pass.DrawIndexed(d.IndexCount, instances, d.StartIndex, int32(d.StartVertex), first)
	} else {
		pass.Draw(d.VertexCount, instances, d.StartVertex, first)
	}
	return nil
}
