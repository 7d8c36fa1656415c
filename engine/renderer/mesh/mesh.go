package mesh

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// Descriptor locates one mesh inside the shared vertex and index buffers of a MeshGroup.
// Counts and starts are in vertices and indices, not bytes.
type Descriptor struct {
	VertexCount uint32
	StartVertex uint32
	IndexCount  uint32
	StartIndex  uint32
}

// Indexed reports whether the described mesh is drawn with an index buffer.
func (d Descriptor) Indexed() bool {
	return d.IndexCount > 0
}

// mesh is the unexported implementation of Mesh.
type mesh struct {
	name            string
	vertices        []float32
	floatsPerVertex int
	indices16       []uint16
	indices32       []uint32
}

// Mesh is immutable vertex data with optional 16-bit or 32-bit indices.
// A Mesh is added to a MeshGroup, which packs it with the other meshes of the group into
// shared device buffers.
type Mesh interface {
	// Name returns the mesh name, unique within a MeshGroup.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Vertices returns the interleaved vertex floats. The slice must not be modified.
	//
	// Returns:
	//   - []float32: the vertex data
	Vertices() []float32

	// FloatsPerVertex returns the number of floats making up one vertex.
	//
	// Returns:
	//   - int: the vertex stride in floats
	FloatsPerVertex() int

	// VertexCount returns len(Vertices()) / FloatsPerVertex().
	//
	// Returns:
	//   - int: the number of vertices
	VertexCount() int

	// IndexFormat returns the index width, or gpu.IndexFormatNone for non-indexed meshes.
	//
	// Returns:
	//   - gpu.IndexFormat: the index format
	IndexFormat() gpu.IndexFormat

	// IndexCount returns the number of indices, 0 for non-indexed meshes.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// VertexBytes appends the little-endian vertex data to dst.
	//
	// Parameters:
	//   - dst: the destination slice
	//
	// Returns:
	//   - []byte: dst with the vertex bytes appended
	VertexBytes(dst []byte) []byte

	// IndexBytes appends the little-endian index data to dst.
	//
	// Parameters:
	//   - dst: the destination slice
	//
	// Returns:
	//   - []byte: dst with the index bytes appended
	IndexBytes(dst []byte) []byte
}

var _ Mesh = &mesh{}

// NewMesh validates and creates a Mesh.
//
// Parameters:
//   - name: the mesh name
//   - vertices: interleaved vertex floats, a whole number of vertices
//   - floatsPerVertex: the vertex stride in floats, positive
//   - options: WithIndices16 or WithIndices32 for indexed meshes
//
// Returns:
//   - Mesh: the mesh
//   - error: gpu.ErrSizeMismatch or gpu.ErrOutOfRange if the data is inconsistent
func NewMesh(name string, vertices []float32, floatsPerVertex int, options ...MeshBuilderOption) (Mesh, error) {
	m := &mesh{
		name:            name,
		vertices:        vertices,
		floatsPerVertex: floatsPerVertex,
	}
	for _, opt := range options {
		opt(m)
	}

	if floatsPerVertex <= 0 {
		return nil, fmt.Errorf("mesh %q: floats per vertex %d: %w", name, floatsPerVertex, gpu.ErrOutOfRange)
	}
	if len(vertices)%floatsPerVertex != 0 {
		return nil, fmt.Errorf("mesh %q: %d floats is not a multiple of %d: %w", name, len(vertices), floatsPerVertex, gpu.ErrSizeMismatch)
	}
	if m.indices16 != nil && m.indices32 != nil {
		return nil, fmt.Errorf("mesh %q: both 16-bit and 32-bit indices: %w", name, gpu.ErrIndexFormatMismatch)
	}

	count := uint32(m.VertexCount())
	for i, idx := range m.indices16 {
		if uint32(idx) >= count {
			return nil, fmt.Errorf("mesh %q: index %d at %d exceeds %d vertices: %w", name, idx, i, count, gpu.ErrOutOfRange)
		}
	}
	for i, idx := range m.indices32 {
		if idx >= count {
			return nil, fmt.Errorf("mesh %q: index %d at %d exceeds %d vertices: %w", name, idx, i, count, gpu.ErrOutOfRange)
		}
	}
	return m, nil
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) Vertices() []float32 {
	return m.vertices
}

func (m *mesh) FloatsPerVertex() int {
	return m.floatsPerVertex
}

func (m *mesh) VertexCount() int {
	return len(m.vertices) / m.floatsPerVertex
}

func (m *mesh) IndexFormat() gpu.IndexFormat {
	switch {
	case len(m.indices16) > 0:
		return gpu.IndexFormatUint16
	case len(m.indices32) > 0:
		return gpu.IndexFormatUint32
	default:
		return gpu.IndexFormatNone
	}
}

func (m *mesh) IndexCount() int {
	return len(m.indices16) + len(m.indices32)
}

func (m *mesh) VertexBytes(dst []byte) []byte {
	return common.Float32sToBytes(dst, m.vertices)
}

func (m *mesh) IndexBytes(dst []byte) []byte {
	if len(m.indices16) > 0 {
		return common.Uint16sToBytes(dst, m.indices16)
	}
	return common.Uint32sToBytes(dst, m.indices32)
}
