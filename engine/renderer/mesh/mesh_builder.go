package mesh

// MeshBuilderOption is a functional option for configuring a Mesh via NewMesh.
type MeshBuilderOption func(*mesh)

// WithIndices16 is an option builder that makes the Mesh indexed with 16-bit indices.
//
// Parameters:
//   - indices: the index data, each below the vertex count
//
// Returns:
//   - MeshBuilderOption: a function that applies the indices to a mesh
func WithIndices16(indices []uint16) MeshBuilderOption {
	return func(m *mesh) {
		m.indices16 = indices
	}
}

// WithIndices32 is an option builder that makes the Mesh indexed with 32-bit indices.
//
// Parameters:
//   - indices: the index data, each below the vertex count
//
// Returns:
//   - MeshBuilderOption: a function that applies the indices to a mesh
func WithIndices32(indices []uint32) MeshBuilderOption {
	return func(m *mesh) {
		m.indices32 = indices
	}
}
