package game_object

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/instance_manager"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	mu *sync.Mutex

	id      uint64
	name    string
	kind    instance_manager.Kind
	enabled atomic.Bool

	position      mgl32.Vec3
	rotationAxis  mgl32.Vec3
	rotationAngle float32
	scaling       mgl32.Vec3

	materialName string
	modelData    ModelData

	// matrixDirty is set by transform changes and cleared once the model matrix is recomputed.
	matrixDirty bool
	// gpuDirty is set whenever modelData changes and cleared once the record is written.
	gpuDirty bool

	physics  func(obj GameObject, deltaTime float32)
	children []GameObject

	manager        instance_manager.InstanceManager
	instanceNumber int
}

// GameObject is a scene entity drawn as one instance of its Kind's shared RenderItem.
// The Scene drives it through two capabilities: UpdatePhysics, which may run on a worker
// goroutine, and UpdateGPU, which runs on the frame goroutine and writes the instance record
// when the model data changed.
type GameObject interface {
	instance_manager.Instance

	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Name returns the object name, unique within a Scene.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Kind returns the object type, which selects the instance manager.
	//
	// Returns:
	//   - instance_manager.Kind: the kind
	Kind() instance_manager.Kind

	// Enabled returns whether the physics callback runs for this object.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the physics callback runs for this object.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Position returns the position relative to the parent.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// SetPosition moves the object and marks its model matrix dirty.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// Rotation returns the rotation axis and angle in radians.
	//
	// Returns:
	//   - mgl32.Vec3: the axis
	//   - float32: the angle
	Rotation() (mgl32.Vec3, float32)

	// SetRotation rotates the object about axis by angle radians and marks its model matrix dirty.
	//
	// Parameters:
	//   - axis: the rotation axis
	//   - angle: the angle in radians
	SetRotation(axis mgl32.Vec3, angle float32)

	// Scale returns the scale factors.
	//
	// Returns:
	//   - mgl32.Vec3: the scale
	Scale() mgl32.Vec3

	// SetScale rescales the object and marks its model matrix dirty.
	//
	// Parameters:
	//   - s: the new scale factors
	SetScale(s mgl32.Vec3)

	// MaterialName returns the name of the material the Scene resolves into MaterialIndex.
	//
	// Returns:
	//   - string: the material name, empty for the default material
	MaterialName() string

	// MaterialIndex returns the material slot written into the instance record.
	//
	// Returns:
	//   - uint32: the material index
	MaterialIndex() uint32

	// SetMaterialIndex sets the material slot and schedules a record write.
	//
	// Parameters:
	//   - index: the material index
	SetMaterialIndex(index uint32)

	// ModelData returns a copy of the current instance record.
	//
	// Returns:
	//   - ModelData: the record
	ModelData() ModelData

	// AddChild attaches a child whose model matrix is relative to this object.
	//
	// Parameters:
	//   - child: the child object
	//
	// Returns:
	//   - GameObject: the child
	AddChild(child GameObject) GameObject

	// Children returns the direct children.
	//
	// Returns:
	//   - []GameObject: the children
	Children() []GameObject

	// UpdatePhysics runs the physics callback of this object and its children and recomputes every
	// dirty model matrix. It touches no GPU state.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	UpdatePhysics(deltaTime float32)

	// UpdateGPU writes the instance record of this object and its children if it changed since
	// the last write.
	//
	// Returns:
	//   - error: a write error from the instance manager
	UpdateGPU() error

	// Manager returns the instance manager this object is registered with.
	//
	// Returns:
	//   - instance_manager.InstanceManager: the manager, or nil before the object is added to a Scene
	Manager() instance_manager.InstanceManager

	// SetManager records the instance manager this object is registered with.
	//
	// Parameters:
	//   - m: the manager, or nil once the object is removed
	SetManager(m instance_manager.InstanceManager)

	// InstanceNumber returns the record slot assigned by the instance manager.
	//
	// Returns:
	//   - int: the slot, or -1 if unassigned
	InstanceNumber() int
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
//
// Parameters:
//   - name: the object name
//   - kind: the object type
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(name string, kind instance_manager.Kind, options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		mu:             &sync.Mutex{},
		name:           name,
		kind:           kind,
		scaling:        mgl32.Vec3{1, 1, 1},
		matrixDirty:    true,
		instanceNumber: -1,
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	obj.modelData.Model = obj.localMatrix()
	return obj
}

// localMatrix returns translation * rotation * scale. Callers hold mu or own the object.
func (g *gameObject) localMatrix() mgl32.Mat4 {
	model := mgl32.Translate3D(g.position.X(), g.position.Y(), g.position.Z())
	if g.rotationAngle != 0 && g.rotationAxis.Len() > 0 {
		model = model.Mul4(mgl32.HomogRotate3D(g.rotationAngle, g.rotationAxis.Normalize()))
	}
	return model.Mul4(mgl32.Scale3D(g.scaling.X(), g.scaling.Y(), g.scaling.Z()))
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Kind() instance_manager.Kind {
	return g.kind
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Position() mgl32.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

func (g *gameObject) SetPosition(p mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = p
	g.matrixDirty = true
}

func (g *gameObject) Rotation() (mgl32.Vec3, float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotationAxis, g.rotationAngle
}

func (g *gameObject) SetRotation(axis mgl32.Vec3, angle float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationAxis = axis
	g.rotationAngle = angle
	g.matrixDirty = true
}

func (g *gameObject) Scale() mgl32.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scaling
}

func (g *gameObject) SetScale(s mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scaling = s
	g.matrixDirty = true
}

func (g *gameObject) MaterialName() string {
	return g.materialName
}

func (g *gameObject) MaterialIndex() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modelData.MaterialIndex
}

func (g *gameObject) SetMaterialIndex(index uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modelData.MaterialIndex = index
	g.gpuDirty = true
}

func (g *gameObject) ModelData() ModelData {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modelData
}

func (g *gameObject) AddChild(child GameObject) GameObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.children = append(g.children, child)
	return child
}

func (g *gameObject) Children() []GameObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GameObject(nil), g.children...)
}

func (g *gameObject) UpdatePhysics(deltaTime float32) {
	g.updatePhysics(deltaTime, mgl32.Ident4(), false)
}

func (g *gameObject) updatePhysics(deltaTime float32, parent mgl32.Mat4, parentDirty bool) {
	if g.physics != nil && g.Enabled() {
		g.physics(g, deltaTime)
	}

	g.mu.Lock()
	dirty := g.matrixDirty || parentDirty
	if dirty {
		g.modelData.Model = parent.Mul4(g.localMatrix())
		g.matrixDirty = false
		g.gpuDirty = true
	}
	world := g.modelData.Model
	children := append([]GameObject(nil), g.children...)
	g.mu.Unlock()

	for _, c := range children {
		if child, ok := c.(*gameObject); ok {
			child.updatePhysics(deltaTime, world, dirty)
			continue
		}
		c.UpdatePhysics(deltaTime)
	}
}

func (g *gameObject) UpdateGPU() error {
	g.mu.Lock()
	write := g.gpuDirty && g.manager != nil
	m, slot := g.manager, g.instanceNumber
	if write {
		g.gpuDirty = false
	}
	children := append([]GameObject(nil), g.children...)
	g.mu.Unlock()

	if write {
		if err := m.WriteInstance(slot); err != nil {
			g.mu.Lock()
			g.gpuDirty = true
			g.mu.Unlock()
			return fmt.Errorf("game object %q: %w", g.name, err)
		}
	}
	for _, c := range children {
		if err := c.UpdateGPU(); err != nil {
			return err
		}
	}
	return nil
}

func (g *gameObject) Manager() instance_manager.InstanceManager {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.manager
}

func (g *gameObject) SetManager(m instance_manager.InstanceManager) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manager = m
}

func (g *gameObject) InstanceNumber() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.instanceNumber
}

func (g *gameObject) SetInstanceNumber(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.instanceNumber = n
}

func (g *gameObject) InstanceData() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modelData.Marshal()
}
