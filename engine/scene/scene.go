package scene

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/game_object"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/instance_manager"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_item"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// KindBinding tells the Scene where objects of one Kind are drawn.
type KindBinding struct {
	// MeshGroup is the name of the Renderer's mesh group holding the mesh.
	MeshGroup string
	// MeshName is the mesh drawn for every object of the Kind.
	MeshName string
	// BindGroup is the group index the instance buffer is bound at.
	BindGroup uint32
	// Layout is the layout of that bind group. A nil layout leaves the RenderItem without an
	// instance bind group.
	Layout gpu.BindGroupLayout
	// InitialCapacity is the starting instance capacity, 1 if zero.
	InitialCapacity int
}

// Scene owns the live GameObjects and the instance managers that draw them. Physics runs on a
// worker pool, one task per root object; every GPU write happens afterwards on the calling
// goroutine.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// Registry returns the per-Kind instance managers.
	Registry() instance_manager.Registry

	// BindKind registers where objects of a Kind are drawn. It must be called before the first
	// object of the Kind is added.
	//
	// Parameters:
	//   - kind: the object type
	//   - binding: the mesh and bind group used for the Kind
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if the Kind is already bound
	BindKind(kind instance_manager.Kind, binding KindBinding) error

	// Add adds a root object and its children. Each object becomes one instance of its Kind's
	// manager, created on first use. The object's material name is resolved against the
	// Renderer's materials.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - error: gpu.ErrDuplicate for a taken name, gpu.ErrNotFound for an unbound Kind or a missing
	//     mesh group, or a resource error
	Add(obj game_object.GameObject) error

	// Object returns a root object by name.
	//
	// Parameters:
	//   - name: the object name
	//
	// Returns:
	//   - game_object.GameObject: the object, or nil
	Object(name string) game_object.GameObject

	// Objects returns the root objects in insertion order.
	//
	// Returns:
	//   - []game_object.GameObject: the objects
	Objects() []game_object.GameObject

	// Count returns the number of root objects.
	//
	// Returns:
	//   - int: the count
	Count() int

	// Remove removes a root object and its children immediately. A manager whose last instance
	// goes away is torn down and dropped from the registry.
	//
	// Parameters:
	//   - name: the object name
	//
	// Returns:
	//   - error: gpu.ErrNotFound for an unknown name, or a write error
	Remove(name string) error

	// RemoveDelayed queues a removal that Update applies after the physics step. Physics callbacks
	// use it to remove objects, including their own.
	//
	// Parameters:
	//   - name: the object name
	RemoveDelayed(name string)

	// Update runs the physics step on the worker pool, applies delayed removals and writes the
	// instance record of every changed object.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - error: the combined removal and write errors
	Update(deltaTime float32) error

	// Release stops the worker pool and destroys every instance manager.
	//
	// Returns:
	//   - error: the combined teardown errors
	Release() error
}

type scene struct {
	mu *sync.Mutex

	name     string
	r        renderer.Renderer
	log      *zap.Logger
	registry instance_manager.Registry
	bindings map[instance_manager.Kind]KindBinding

	objects       *common.Lookup[game_object.GameObject]
	nextID        uint64
	delayedRemove []string

	physicsPool    worker.DynamicWorkerPool
	physicsWorkers int
}

var _ Scene = &scene{}

// NewScene creates an empty Scene drawing through r.
//
// Parameters:
//   - name: the name of the scene
//   - r: the renderer, must not be nil
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, r renderer.Renderer, options ...SceneBuilderOption) Scene {
	if r == nil {
		panic("scene: NewScene requires a non-nil Renderer")
	}
	s := &scene{
		mu:             &sync.Mutex{},
		name:           name,
		r:              r,
		registry:       instance_manager.NewRegistry(),
		bindings:       make(map[instance_manager.Kind]KindBinding),
		objects:        common.NewLookup[game_object.GameObject](),
		nextID:         1,
		physicsWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}
	s.log = logger.Or(s.log).With(zap.String("scene", name))
	s.physicsPool = worker.NewDynamicWorkerPool(s.physicsWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Renderer() renderer.Renderer {
	return s.r
}

func (s *scene) Registry() instance_manager.Registry {
	return s.registry
}

func (s *scene) BindKind(kind instance_manager.Kind, binding KindBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[kind]; ok {
		return fmt.Errorf("scene %q: kind %s: %w", s.name, kind, gpu.ErrDuplicate)
	}
	s.bindings[kind] = binding
	return nil
}

func (s *scene) Add(obj game_object.GameObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects.Has(obj.Name()) {
		return fmt.Errorf("scene %q: object %q: %w", s.name, obj.Name(), gpu.ErrDuplicate)
	}

	var added []game_object.GameObject
	var register func(o game_object.GameObject) error
	register = func(o game_object.GameObject) error {
		if err := s.register(o); err != nil {
			return err
		}
		added = append(added, o)
		for _, c := range o.Children() {
			if err := register(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := register(obj); err != nil {
		// Roll back the part of the tree that was registered.
		for i := len(added) - 1; i >= 0; i-- {
			_ = s.unregister(added[i])
		}
		return err
	}

	s.objects.Add(obj.Name(), obj)
	return nil
}

// register adds one object as an instance of its Kind's manager. Callers hold mu.
func (s *scene) register(obj game_object.GameObject) error {
	b, ok := s.bindings[obj.Kind()]
	if !ok {
		return fmt.Errorf("scene %q: object %q: no binding for kind %s: %w", s.name, obj.Name(), obj.Kind(), gpu.ErrNotFound)
	}
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
		s.nextID++
	}
	if name := obj.MaterialName(); name != "" {
		if index := s.r.Materials().IndexOf(name); index >= 0 {
			obj.SetMaterialIndex(uint32(index))
		} else {
			s.log.Warn("unknown material, using the default", zap.String("object", obj.Name()), zap.String("material", name))
		}
	}

	im, err := s.registry.GetOrCreate(obj.Kind(), func() (instance_manager.InstanceManager, error) {
		return s.newInstanceManager(obj.Kind(), b)
	})
	if err != nil {
		return fmt.Errorf("scene %q: object %q: %w", s.name, obj.Name(), err)
	}
	if _, err := im.AddInstance(obj); err != nil {
		return fmt.Errorf("scene %q: object %q: %w", s.name, obj.Name(), err)
	}
	obj.SetManager(im)
	return nil
}

func (s *scene) newInstanceManager(kind instance_manager.Kind, b KindBinding) (instance_manager.InstanceManager, error) {
	group := s.r.MeshGroup(b.MeshGroup)
	if group == nil {
		return nil, fmt.Errorf("mesh group %q: %w", b.MeshGroup, gpu.ErrNotFound)
	}
	device := s.r.Device()
	log := s.log

	return instance_manager.NewInstanceManager(kind, instance_manager.Config{
		RenderItemName:   fmt.Sprintf("ri_%s", kind),
		MeshGroup:        group,
		MeshName:         b.MeshName,
		Device:           device,
		BytesPerInstance: game_object.ModelDataSize,
		InitialCapacity:  b.InitialCapacity,
		InitRenderItem: func(item render_item.RenderItem, pool buffer.StagingPool) error {
			if b.Layout == nil {
				return nil
			}
			p, err := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("bg_%s", kind), device, b.Layout,
				bind_group_provider.WithBuffer(0, pool),
			)
			if err != nil {
				return err
			}
			item.SetBindGroup(b.BindGroup, p)
			return nil
		},
		OnBufferChanged: func(item render_item.RenderItem, buf gpu.Buffer) {
			p := item.BindGroup(b.BindGroup)
			if p == nil {
				return
			}
			if err := p.Regenerate(); err != nil {
				log.Error("instance bind group not regenerated", zap.String("renderItem", item.Name()), zap.Error(err))
			}
		},
		Logger: log,
	})
}

// unregister removes one object from its manager, dropping the manager when it tears down.
// Callers hold mu.
func (s *scene) unregister(obj game_object.GameObject) error {
	im := obj.Manager()
	if im == nil {
		return nil
	}
	torndown, err := im.RemoveInstance(obj.InstanceNumber())
	obj.SetManager(nil)
	obj.SetInstanceNumber(-1)
	if torndown {
		s.registry.Remove(obj.Kind())
	}
	if err != nil {
		return fmt.Errorf("scene %q: object %q: %w", s.name, obj.Name(), err)
	}
	return nil
}

func (s *scene) unregisterTree(obj game_object.GameObject) error {
	err := s.unregister(obj)
	for _, c := range obj.Children() {
		err = multierr.Append(err, s.unregisterTree(c))
	}
	return err
}

func (s *scene) Object(name string) game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, _ := s.objects.Get(name)
	return obj
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects.Items()
}

func (s *scene) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects.Len()
}

func (s *scene) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(name)
}

// remove removes a root object. Callers hold mu.
func (s *scene) remove(name string) error {
	obj, ok := s.objects.Remove(name)
	if !ok {
		return fmt.Errorf("scene %q: object %q: %w", s.name, name, gpu.ErrNotFound)
	}
	return s.unregisterTree(obj)
}

func (s *scene) RemoveDelayed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayedRemove = append(s.delayedRemove, name)
}

func (s *scene) Update(deltaTime float32) error {
	// Physics: one task per root object. A WaitGroup is the per-frame barrier since pool.Wait()
	// only returns once the workers exit.
	var wg sync.WaitGroup
	for i, obj := range s.Objects() {
		wg.Add(1)
		o := obj
		s.physicsPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				o.UpdatePhysics(deltaTime)
				return nil, nil
			},
		})
	}
	wg.Wait()

	var err error
	s.mu.Lock()
	pending := s.delayedRemove
	s.delayedRemove = nil
	for _, name := range pending {
		err = multierr.Append(err, s.remove(name))
	}
	s.mu.Unlock()

	// Objects may have been removed above, so the list is taken again.
	for _, obj := range s.Objects() {
		err = multierr.Append(err, obj.UpdateGPU())
	}
	return err
}

func (s *scene) Release() error {
	s.physicsPool.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range s.objects.Items() {
		obj.SetManager(nil)
	}
	s.objects.Clear()
	s.delayedRemove = nil
	return s.registry.Destroy()
}
