package instance_manager

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_item"
	"go.uber.org/zap"
)

// Instance is one object drawn through an InstanceManager.
type Instance interface {
	// SetInstanceNumber tells the instance which record slot it occupies.
	//
	// Parameters:
	//   - n: the slot index
	SetInstanceNumber(n int)

	// InstanceData returns the instance's record, exactly Config.BytesPerInstance bytes.
	//
	// Returns:
	//   - []byte: the record
	InstanceData() []byte
}

// Config describes the RenderItem and buffer an InstanceManager owns.
type Config struct {
	// RenderItemName names the shared RenderItem inside MeshGroup.
	RenderItemName string
	// MeshGroup owns the RenderItem.
	MeshGroup mesh_group.MeshGroup
	// MeshName is the mesh every instance draws.
	MeshName string
	// Device allocates the instance buffer.
	Device gpu.Device
	// BytesPerInstance is the record size, a multiple of 8.
	BytesPerInstance int
	// InitialCapacity is the starting capacity in records, 1 if zero.
	InitialCapacity int

	// InitRenderItem is called once after the RenderItem is created, typically to attach the bind
	// group that reads the instance buffer.
	InitRenderItem func(item render_item.RenderItem, pool buffer.StagingPool) error
	// OnBufferChanged is called once per growth with the new device buffer. It must not call back
	// into the manager.
	OnBufferChanged func(item render_item.RenderItem, buf gpu.Buffer)

	// Logger defaults to the process logger.
	Logger *zap.Logger
}

type instanceManager struct {
	mu *sync.Mutex

	kind      Kind
	group     mesh_group.MeshGroup
	item      render_item.RenderItem
	pool      buffer.StagingPool
	log       *zap.Logger
	instances []Instance
	torndown  bool
}

// InstanceManager shares one growable instance buffer and one RenderItem between every live
// instance of a Kind. Instance i owns record slot i; removing an instance shifts every later
// instance down one slot. Removing the last instance removes the RenderItem and tears the
// manager down.
type InstanceManager interface {
	// Kind returns the object type this manager serves.
	//
	// Returns:
	//   - Kind: the kind
	Kind() Kind

	// RenderItem returns the shared RenderItem.
	//
	// Returns:
	//   - render_item.RenderItem: the item
	RenderItem() render_item.RenderItem

	// Buffer returns the staging pool in front of the instance buffer.
	//
	// Returns:
	//   - buffer.StagingPool: the pool
	Buffer() buffer.StagingPool

	// Len returns the number of live instances.
	//
	// Returns:
	//   - int: the instance count
	Len() int

	// Capacity returns the number of records the instance buffer holds.
	//
	// Returns:
	//   - int: the capacity
	Capacity() int

	// Instance returns the instance at a slot.
	//
	// Parameters:
	//   - index: the slot
	//
	// Returns:
	//   - Instance: the instance, or nil if out of range
	Instance(index int) Instance

	// AddInstance appends an instance, assigns it the next slot and writes its record. When the
	// count exceeds capacity the buffer grows to max(capacity*2, count) and OnBufferChanged runs
	// once. On error the instance is not added.
	//
	// Parameters:
	//   - inst: the instance
	//
	// Returns:
	//   - int: the assigned slot
	//   - error: gpu.ErrInvalidState after teardown, or a write or resource error
	AddInstance(inst Instance) (int, error)

	// RemoveInstance removes the instance at a slot and renumbers and rewrites every later one.
	//
	// Parameters:
	//   - index: the slot
	//
	// Returns:
	//   - bool: true if this was the last instance and the manager was torn down
	//   - error: gpu.ErrOutOfRange for a bad slot, or a write error
	RemoveInstance(index int) (bool, error)

	// WriteInstance writes the current record of one instance.
	//
	// Parameters:
	//   - index: the slot
	//
	// Returns:
	//   - error: gpu.ErrOutOfRange for a bad slot, or a write error
	WriteInstance(index int) error

	// Destroy removes the RenderItem and releases the buffer. Calling it after teardown is a no-op.
	//
	// Returns:
	//   - error: an error if the RenderItem could not be removed
	Destroy() error
}

var _ InstanceManager = &instanceManager{}

// NewInstanceManager creates the instance buffer and the shared RenderItem for a Kind. The item
// starts with no instances and flushes the buffer's staging writes right before its draw.
//
// Parameters:
//   - kind: the object type
//   - cfg: the manager configuration; Device and MeshGroup must not be nil
//
// Returns:
//   - InstanceManager: the manager
//   - error: gpu.ErrNotFound for an unknown mesh, gpu.ErrDuplicate for a taken item name, or a
//     resource error
func NewInstanceManager(kind Kind, cfg Config) (InstanceManager, error) {
	if cfg.Device == nil {
		panic("instance_manager: NewInstanceManager requires a non-nil Device")
	}
	if cfg.MeshGroup == nil {
		panic("instance_manager: NewInstanceManager requires a non-nil MeshGroup")
	}
	capacity := cfg.InitialCapacity
	if capacity <= 0 {
		capacity = 1
	}
	log := logger.Or(cfg.Logger).With(zap.Stringer("kind", kind))

	pool, err := buffer.NewStagingPool(cfg.Device, cfg.BytesPerInstance, capacity,
		buffer.WithLabel(fmt.Sprintf("InstanceBuffer for render item '%s'", cfg.RenderItemName)),
		buffer.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("instance manager %s: %w", kind, err)
	}

	item, err := cfg.MeshGroup.CreateRenderItem(cfg.RenderItemName, cfg.MeshName,
		render_item.WithInstanceCount(0),
		render_item.WithPreRender(pool.PreRender),
	)
	if err != nil {
		pool.Destroy()
		return nil, fmt.Errorf("instance manager %s: %w", kind, err)
	}

	m := &instanceManager{
		mu:    &sync.Mutex{},
		kind:  kind,
		group: cfg.MeshGroup,
		item:  item,
		pool:  pool,
		log:   log,
	}
	if cfg.OnBufferChanged != nil {
		onChanged := cfg.OnBufferChanged
		pool.OnBufferChanged(func(buf gpu.Buffer) {
			onChanged(item, buf)
		})
	}
	if cfg.InitRenderItem != nil {
		if err := cfg.InitRenderItem(item, pool); err != nil {
			_ = m.Destroy()
			return nil, fmt.Errorf("instance manager %s: init render item: %w", kind, err)
		}
	}
	return m, nil
}

func (m *instanceManager) Kind() Kind {
	return m.kind
}

func (m *instanceManager) RenderItem() render_item.RenderItem {
	return m.item
}

func (m *instanceManager) Buffer() buffer.StagingPool {
	return m.pool
}

func (m *instanceManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

func (m *instanceManager) Capacity() int {
	return m.pool.Capacity()
}

func (m *instanceManager) Instance(index int) Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.instances) {
		return nil
	}
	return m.instances[index]
}

func (m *instanceManager) AddInstance(inst Instance) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.torndown {
		return -1, fmt.Errorf("instance manager %s: add instance after teardown: %w", m.kind, gpu.ErrInvalidState)
	}

	index := len(m.instances)
	m.instances = append(m.instances, inst)
	inst.SetInstanceNumber(index)
	count := len(m.instances)

	if capacity := m.pool.Capacity(); count > capacity {
		grown := max(capacity*2, count)
		if err := m.pool.SetCapacity(grown); err != nil {
			m.instances = m.instances[:index]
			return -1, fmt.Errorf("instance manager %s: grow to %d: %w", m.kind, grown, err)
		}
		m.log.Debug("instance buffer grown", zap.Int("from", capacity), zap.Int("to", grown))
	}
	// The pool carries the live records into a grown buffer, so only the new one is staged. A
	// grown capacity is kept when the write fails.
	if err := m.write(index); err != nil {
		m.instances = m.instances[:index]
		return -1, err
	}

	m.item.SetInstanceCount(uint32(count))
	return index, nil
}

func (m *instanceManager) RemoveInstance(index int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.instances) {
		return false, fmt.Errorf("instance manager %s: remove instance %d of %d: %w", m.kind, index, len(m.instances), gpu.ErrOutOfRange)
	}

	m.instances = append(m.instances[:index], m.instances[index+1:]...)
	if len(m.instances) == 0 {
		return true, m.teardown()
	}

	for i := index; i < len(m.instances); i++ {
		m.instances[i].SetInstanceNumber(i)
		if err := m.write(i); err != nil {
			return false, err
		}
	}
	m.item.SetInstanceCount(uint32(len(m.instances)))
	return false, nil
}

func (m *instanceManager) WriteInstance(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.instances) {
		return fmt.Errorf("instance manager %s: write instance %d of %d: %w", m.kind, index, len(m.instances), gpu.ErrOutOfRange)
	}
	return m.write(index)
}

// write stages the record of instance i at slot i. Callers hold mu.
func (m *instanceManager) write(i int) error {
	if err := m.pool.WriteRecord(i, m.instances[i].InstanceData()); err != nil {
		return fmt.Errorf("instance manager %s: instance %d: %w", m.kind, i, err)
	}
	return nil
}

func (m *instanceManager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.torndown {
		return nil
	}
	m.instances = nil
	return m.teardown()
}

// teardown removes the RenderItem from its group and destroys the pool. Callers hold mu.
func (m *instanceManager) teardown() error {
	m.torndown = true
	m.pool.Destroy()
	// Removing the mesh from the group already dropped the item.
	if err := m.group.RemoveRenderItem(m.item.Name()); err != nil && !errors.Is(err, gpu.ErrNotFound) {
		return fmt.Errorf("instance manager %s: %w", m.kind, err)
	}
	m.log.Debug("instance manager torn down", zap.String("renderItem", m.item.Name()))
	return nil
}
