package material

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"go.uber.org/zap"
)

// materialGroup is the implementation of the MaterialGroup interface.
type materialGroup struct {
	mu *sync.Mutex

	log       *zap.Logger
	capacity  int
	label     string
	materials *common.Lookup[Material]
	writer    buffer.Writer
}

// MaterialGroup is an ordered registry of materials mirrored into one storage buffer.
// A material's index is its position in the buffer, as referenced from per-instance data.
type MaterialGroup interface {
	// AddMaterial appends a material, growing the buffer when it is full.
	//
	// Parameters:
	//   - m: the material
	//
	// Returns:
	//   - int: the material index
	//   - error: gpu.ErrDuplicate if the name is taken, or a resource error
	AddMaterial(m Material) (int, error)

	// SetMaterial replaces a material with the same name and rewrites its record.
	//
	// Parameters:
	//   - m: the replacement
	//
	// Returns:
	//   - error: gpu.ErrNotFound if no material has that name
	SetMaterial(m Material) error

	// RemoveMaterial is not supported: indices held by instances would shift.
	// It logs the attempt and returns gpu.ErrUnsupported.
	//
	// Parameters:
	//   - name: the material name
	//
	// Returns:
	//   - error: always gpu.ErrUnsupported
	RemoveMaterial(name string) error

	// Material returns a material by name.
	//
	// Parameters:
	//   - name: the material name
	//
	// Returns:
	//   - Material: the material, or nil
	Material(name string) Material

	// MaterialAt returns a material by index.
	//
	// Parameters:
	//   - i: the index
	//
	// Returns:
	//   - Material: the material, or nil
	MaterialAt(i int) Material

	// IndexOf returns the buffer index of a material.
	//
	// Parameters:
	//   - name: the material name
	//
	// Returns:
	//   - int: the index, or -1
	IndexOf(name string) int

	// Len returns the number of materials.
	//
	// Returns:
	//   - int: the count
	Len() int

	// Buffer returns the storage buffer holding the material records, for binding.
	//
	// Returns:
	//   - buffer.InstanceBuffer: the buffer
	Buffer() buffer.InstanceBuffer

	// Destroy destroys the storage buffer.
	Destroy()
}

var _ MaterialGroup = &materialGroup{}

// NewMaterialGroup creates an empty MaterialGroup.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - options: functional options such as WithInitialCapacity or WithGroupLogger
//
// Returns:
//   - MaterialGroup: the group
//   - error: a resource error from the buffer allocation
func NewMaterialGroup(device gpu.Device, options ...MaterialGroupBuilderOption) (MaterialGroup, error) {
	if device == nil {
		panic("material: NewMaterialGroup requires a non-nil Device")
	}
	g := &materialGroup{
		mu:        &sync.Mutex{},
		capacity:  8,
		label:     "Materials",
		materials: common.NewLookup[Material](),
	}
	for _, opt := range options {
		opt(g)
	}
	g.log = logger.Or(g.log)

	w, err := buffer.NewBasicWriter(device, GPUMaterialSize, g.capacity,
		buffer.WithLabel(g.label),
		buffer.WithUsage(gpu.BufferUsageStorage),
		buffer.WithLogger(g.log),
	)
	if err != nil {
		return nil, fmt.Errorf("material group: %w", err)
	}
	g.writer = w
	return g, nil
}

func (g *materialGroup) AddMaterial(m Material) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.materials.Has(m.Name()) {
		return -1, fmt.Errorf("material group: material %q: %w", m.Name(), gpu.ErrDuplicate)
	}
	index := g.materials.Len()
	if index >= g.writer.Capacity() {
		if err := g.writer.SetCapacity(g.writer.Capacity() * 2); err != nil {
			return -1, fmt.Errorf("material group: %w", err)
		}
		// The grown buffer starts empty.
		for i, existing := range g.materials.Items() {
			if err := g.write(i, existing); err != nil {
				return -1, err
			}
		}
	}
	if err := g.write(index, m); err != nil {
		return -1, err
	}
	g.materials.Add(m.Name(), m)
	return index, nil
}

func (g *materialGroup) write(index int, m Material) error {
	rec := m.GPU()
	if err := g.writer.WriteRecord(index, rec.Marshal()); err != nil {
		return fmt.Errorf("material group: material %q: %w", m.Name(), err)
	}
	return nil
}

func (g *materialGroup) SetMaterial(m Material) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	index := g.materials.IndexOf(m.Name())
	if index < 0 {
		return fmt.Errorf("material group: material %q: %w", m.Name(), gpu.ErrNotFound)
	}
	if err := g.write(index, m); err != nil {
		return err
	}
	g.materials.Set(m.Name(), m)
	return nil
}

func (g *materialGroup) RemoveMaterial(name string) error {
	g.log.Error("material removal is not supported", zap.String("material", name))
	return fmt.Errorf("material group: remove material %q: %w", name, gpu.ErrUnsupported)
}

func (g *materialGroup) Material(name string) Material {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, _ := g.materials.Get(name)
	return m
}

func (g *materialGroup) MaterialAt(i int) Material {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, _ := g.materials.At(i)
	return m
}

func (g *materialGroup) IndexOf(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.materials.IndexOf(name)
}

func (g *materialGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.materials.Len()
}

func (g *materialGroup) Buffer() buffer.InstanceBuffer {
	return g.writer
}

func (g *materialGroup) Destroy() {
	g.writer.Destroy()
}
