package mesh_group

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_item"
	"go.uber.org/zap"
)

// meshGroup is the unexported implementation of MeshGroup.
type meshGroup struct {
	mu *sync.Mutex

	name   string
	device gpu.Device
	log    *zap.Logger

	meshes      *common.Lookup[mesh.Mesh]
	descriptors map[string]mesh.Descriptor
	items       *common.Lookup[render_item.RenderItem]

	vertexBufferSlot uint32
	indexFormat      gpu.IndexFormat

	// The following fields are GPU allocated resources, replaced on every rebuild.

	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer

	// initial holds meshes supplied by WithMeshes until the first build.
	initial []mesh.Mesh
}

// MeshGroup packs a set of meshes into one vertex buffer and, when the meshes are indexed, one
// index buffer, and draws the RenderItems created from them. All meshes of a group share one
// index width. Adding or removing a mesh rebuilds both buffers from scratch.
type MeshGroup interface {
	// Name returns the group name, unique within a Renderer.
	//
	// Returns:
	//   - string: the name
	Name() string

	// AddMesh adds meshes and rebuilds the buffers. Nothing changes if any mesh name is already
	// taken or the meshes' index widths differ from the group's.
	//
	// Parameters:
	//   - meshes: the meshes to add, in order
	//
	// Returns:
	//   - error: gpu.ErrDuplicate, gpu.ErrIndexFormatMismatch, gpu.ErrSizeMismatch, or a resource error
	AddMesh(meshes ...mesh.Mesh) error

	// RemoveMesh removes a mesh and rebuilds the buffers. RenderItems drawing the mesh are removed
	// too and reported in an error log.
	//
	// Parameters:
	//   - name: the mesh name
	//
	// Returns:
	//   - error: gpu.ErrNotFound, or a resource error
	RemoveMesh(name string) error

	// RebuildBuffers recreates the vertex and index buffers from the current meshes.
	//
	// Returns:
	//   - error: a resource error; the previous buffers stay in place on failure
	RebuildBuffers() error

	// Mesh returns a mesh by name.
	//
	// Parameters:
	//   - name: the mesh name
	//
	// Returns:
	//   - mesh.Mesh: the mesh, or nil
	Mesh(name string) mesh.Mesh

	// Meshes returns the meshes in buffer order.
	//
	// Returns:
	//   - []mesh.Mesh: the meshes
	Meshes() []mesh.Mesh

	// Descriptor returns where a mesh lives in the shared buffers.
	//
	// Parameters:
	//   - meshName: the mesh name
	//
	// Returns:
	//   - mesh.Descriptor: the descriptor
	//   - bool: false if the mesh is unknown
	Descriptor(meshName string) (mesh.Descriptor, bool)

	// IndexFormat returns the index width shared by all meshes.
	//
	// Returns:
	//   - gpu.IndexFormat: the format, gpu.IndexFormatNone for non-indexed groups
	IndexFormat() gpu.IndexFormat

	// VertexBuffer returns the shared vertex buffer.
	//
	// Returns:
	//   - gpu.Buffer: the vertex buffer, nil while the group is empty
	VertexBuffer() gpu.Buffer

	// IndexBuffer returns the shared index buffer.
	//
	// Returns:
	//   - gpu.Buffer: the index buffer, nil for non-indexed or empty groups
	IndexBuffer() gpu.Buffer

	// CreateRenderItem creates a RenderItem drawing a mesh of this group.
	//
	// Parameters:
	//   - name: the item name, unique within the group
	//   - meshName: the mesh to draw
	//   - options: render item options
	//
	// Returns:
	//   - render_item.RenderItem: the item
	//   - error: gpu.ErrNotFound for an unknown mesh, gpu.ErrDuplicate for a taken name
	CreateRenderItem(name, meshName string, options ...render_item.RenderItemBuilderOption) (render_item.RenderItem, error)

	// RenderItem returns an item by name.
	//
	// Parameters:
	//   - name: the item name
	//
	// Returns:
	//   - render_item.RenderItem: the item, or nil
	RenderItem(name string) render_item.RenderItem

	// RenderItemAt returns an item by insertion index.
	//
	// Parameters:
	//   - i: the index
	//
	// Returns:
	//   - render_item.RenderItem: the item, or nil if out of range
	RenderItemAt(i int) render_item.RenderItem

	// RenderItems returns the items in draw order.
	//
	// Returns:
	//   - []render_item.RenderItem: the items
	RenderItems() []render_item.RenderItem

	// RemoveRenderItem removes an item.
	//
	// Parameters:
	//   - name: the item name
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no such item exists
	RemoveRenderItem(name string) error

	// Update runs the update hook of every item.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - error: the first hook error
	Update(deltaTime float32) error

	// Render binds the shared buffers once and draws every item in insertion order.
	// Nothing is encoded when no item is active.
	//
	// Parameters:
	//   - pass: the render pass encoder
	//
	// Returns:
	//   - error: the first item error
	Render(pass gpu.RenderPassEncoder) error

	// InformRemoval is called when the group is removed from its Renderer. Items still present
	// are reported in an error log and dropped.
	InformRemoval()

	// Destroy releases the shared buffers.
	Destroy()
}

var _ MeshGroup = &meshGroup{}

// NewMeshGroup creates a MeshGroup and builds the buffers of any meshes given with WithMeshes.
//
// Parameters:
//   - name: the group name
//   - device: the GPU device, must not be nil
//   - options: functional options such as WithMeshes, WithVertexBufferSlot or WithLogger
//
// Returns:
//   - MeshGroup: the group
//   - error: a configuration or resource error from the initial build
func NewMeshGroup(name string, device gpu.Device, options ...MeshGroupBuilderOption) (MeshGroup, error) {
	if device == nil {
		panic("mesh_group: NewMeshGroup requires a non-nil Device")
	}
	g := &meshGroup{
		mu:          &sync.Mutex{},
		name:        name,
		device:      device,
		meshes:      common.NewLookup[mesh.Mesh](),
		descriptors: make(map[string]mesh.Descriptor),
		items:       common.NewLookup[render_item.RenderItem](),
	}
	for _, opt := range options {
		opt(g)
	}
	g.log = logger.Or(g.log).With(zap.String("meshGroup", name))

	if len(g.initial) > 0 {
		initial := g.initial
		g.initial = nil
		if err := g.AddMesh(initial...); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *meshGroup) Name() string {
	return g.name
}

func (g *meshGroup) AddMesh(meshes ...mesh.Mesh) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := g.meshes.Items()
	seen := make(map[string]bool, len(candidate)+len(meshes))
	for _, m := range candidate {
		seen[m.Name()] = true
	}
	for _, m := range meshes {
		if seen[m.Name()] {
			return fmt.Errorf("mesh group %q: mesh %q: %w", g.name, m.Name(), gpu.ErrDuplicate)
		}
		seen[m.Name()] = true
		candidate = append(candidate, m)
	}

	if err := g.rebuild(candidate); err != nil {
		return err
	}
	for _, m := range meshes {
		g.meshes.Add(m.Name(), m)
	}
	return nil
}

func (g *meshGroup) RemoveMesh(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.meshes.IndexOf(name)
	if idx < 0 {
		return fmt.Errorf("mesh group %q: mesh %q: %w", g.name, name, gpu.ErrNotFound)
	}
	candidate := g.meshes.Items()
	candidate = append(candidate[:idx], candidate[idx+1:]...)
	if err := g.rebuild(candidate); err != nil {
		return err
	}
	g.meshes.RemoveAt(idx)

	var removed []string
	for _, it := range g.items.Items() {
		if it.MeshName() == name {
			g.items.Remove(it.Name())
			removed = append(removed, it.Name())
		}
	}
	if len(removed) > 0 {
		g.log.Error("mesh removed while render items still reference it; removing them",
			zap.String("mesh", name),
			zap.Strings("renderItems", removed),
		)
	}
	return nil
}

func (g *meshGroup) RebuildBuffers() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rebuild(g.meshes.Items())
}

// rebuild validates the candidate mesh list and replaces both shared buffers and every
// descriptor. Nothing is mutated unless every step succeeds. Callers hold mu.
func (g *meshGroup) rebuild(candidate []mesh.Mesh) error {
	format := gpu.IndexFormatNone
	stride := 0
	for i, m := range candidate {
		if i == 0 {
			format, stride = m.IndexFormat(), m.FloatsPerVertex()
			continue
		}
		if m.IndexFormat() != format {
			return fmt.Errorf("mesh group %q: mesh %q uses %s indices, group uses %s: %w", g.name, m.Name(), m.IndexFormat(), format, gpu.ErrIndexFormatMismatch)
		}
		if m.FloatsPerVertex() != stride {
			return fmt.Errorf("mesh group %q: mesh %q has %d floats per vertex, group has %d: %w", g.name, m.Name(), m.FloatsPerVertex(), stride, gpu.ErrSizeMismatch)
		}
	}

	var vertexData, indexData []byte
	descriptors := make(map[string]mesh.Descriptor, len(candidate))
	var vertices, indices uint32
	for _, m := range candidate {
		d := mesh.Descriptor{
			VertexCount: uint32(m.VertexCount()),
			StartVertex: vertices,
			IndexCount:  uint32(m.IndexCount()),
			StartIndex:  indices,
		}
		descriptors[m.Name()] = d
		vertices += d.VertexCount
		indices += d.IndexCount
		vertexData = m.VertexBytes(vertexData)
		if format != gpu.IndexFormatNone {
			indexData = m.IndexBytes(indexData)
		}
	}

	var vb, ib gpu.Buffer
	var err error
	if len(vertexData) > 0 {
		vb, err = g.device.CreateBufferInit(g.name+" vertices", gpu.BufferUsageVertex|gpu.BufferUsageCopyDst, vertexData)
		if err != nil {
			return fmt.Errorf("mesh group %q: vertex buffer: %w", g.name, err)
		}
	}
	if len(indexData) > 0 {
		// Buffer sizes must be a multiple of 4; an odd number of 16-bit indices leaves a gap.
		if padded := common.AlignUp(uint64(len(indexData)), 4); padded != uint64(len(indexData)) {
			indexData = append(indexData, make([]byte, padded-uint64(len(indexData)))...)
		}
		ib, err = g.device.CreateBufferInit(g.name+" indices", gpu.BufferUsageIndex|gpu.BufferUsageCopyDst, indexData)
		if err != nil {
			if vb != nil {
				vb.Destroy()
			}
			return fmt.Errorf("mesh group %q: index buffer: %w", g.name, err)
		}
	}

	if g.vertexBuffer != nil {
		g.vertexBuffer.Destroy()
	}
	if g.indexBuffer != nil {
		g.indexBuffer.Destroy()
	}
	g.vertexBuffer, g.indexBuffer = vb, ib
	g.indexFormat = format
	g.descriptors = descriptors

	for _, it := range g.items.Items() {
		if d, ok := descriptors[it.MeshName()]; ok {
			it.SetDescriptor(d)
		}
	}
	g.log.Debug("mesh group rebuilt",
		zap.Int("meshes", len(candidate)),
		zap.Uint32("vertices", vertices),
		zap.Uint32("indices", indices),
	)
	return nil
}

func (g *meshGroup) Mesh(name string) mesh.Mesh {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, _ := g.meshes.Get(name)
	return m
}

func (g *meshGroup) Meshes() []mesh.Mesh {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.meshes.Items()
}

func (g *meshGroup) Descriptor(meshName string) (mesh.Descriptor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descriptors[meshName]
	return d, ok
}

func (g *meshGroup) IndexFormat() gpu.IndexFormat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.indexFormat
}

func (g *meshGroup) VertexBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.vertexBuffer
}

func (g *meshGroup) IndexBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.indexBuffer
}

func (g *meshGroup) CreateRenderItem(name, meshName string, options ...render_item.RenderItemBuilderOption) (render_item.RenderItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.descriptors[meshName]
	if !ok {
		return nil, fmt.Errorf("mesh group %q: render item %q: mesh %q: %w", g.name, name, meshName, gpu.ErrNotFound)
	}
	if g.items.Has(name) {
		return nil, fmt.Errorf("mesh group %q: render item %q: %w", g.name, name, gpu.ErrDuplicate)
	}
	it := render_item.NewRenderItem(name, meshName, d, options...)
	g.items.Add(name, it)
	return it, nil
}

func (g *meshGroup) RenderItem(name string) render_item.RenderItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, _ := g.items.Get(name)
	return it
}

func (g *meshGroup) RenderItemAt(i int) render_item.RenderItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, _ := g.items.At(i)
	return it
}

func (g *meshGroup) RenderItems() []render_item.RenderItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.items.Items()
}

func (g *meshGroup) RemoveRenderItem(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.items.Remove(name); !ok {
		return fmt.Errorf("mesh group %q: render item %q: %w", g.name, name, gpu.ErrNotFound)
	}
	return nil
}

func (g *meshGroup) Update(deltaTime float32) error {
	for _, it := range g.RenderItems() {
		if err := it.Update(deltaTime); err != nil {
			return fmt.Errorf("mesh group %q: %w", g.name, err)
		}
	}
	return nil
}

func (g *meshGroup) Render(pass gpu.RenderPassEncoder) error {
	g.mu.Lock()
	items := g.items.Items()
	vb, ib, format := g.vertexBuffer, g.indexBuffer, g.indexFormat
	g.mu.Unlock()

	anyActive := false
	for _, it := range items {
		if it.Active() {
			anyActive = true
			break
		}
	}
	if !anyActive || vb == nil {
		return nil
	}

	pass.PushDebugGroup(g.name)
	defer pass.PopDebugGroup()

	pass.SetVertexBuffer(g.vertexBufferSlot, vb)
	if format != gpu.IndexFormatNone && ib != nil {
		pass.SetIndexBuffer(ib, format)
	}
	for _, it := range items {
		if err := it.Render(pass); err != nil {
			return fmt.Errorf("mesh group %q: %w", g.name, err)
		}
	}
	return nil
}

func (g *meshGroup) InformRemoval() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.items.Len() > 0 {
		g.log.Error("mesh group removed while render items still reference it; removing them",
			zap.Strings("renderItems", g.items.Keys()),
		)
	}
	g.items.Clear()
}

func (g *meshGroup) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vertexBuffer != nil {
		g.vertexBuffer.Destroy()
		g.vertexBuffer = nil
	}
	if g.indexBuffer != nil {
		g.indexBuffer.Destroy()
		g.indexBuffer = nil
	}
}
