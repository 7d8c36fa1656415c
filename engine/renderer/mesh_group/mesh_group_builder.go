package mesh_group

import (
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"go.uber.org/zap"
)

// MeshGroupBuilderOption is a functional option for configuring a MeshGroup via NewMeshGroup.
type MeshGroupBuilderOption func(*meshGroup)

// WithMeshes adds meshes that are packed when the group is created.
//
// Parameters:
//   - meshes: the meshes, in buffer order
//
// Returns:
//   - MeshGroupBuilderOption: a function that queues the meshes on a mesh group
func WithMeshes(meshes ...mesh.Mesh) MeshGroupBuilderOption {
	return func(g *meshGroup) {
		g.initial = append(g.initial, meshes...)
	}
}

// WithVertexBufferSlot sets the vertex buffer slot the shared vertex buffer is bound to. Defaults to 0.
//
// Parameters:
//   - slot: the vertex buffer slot
//
// Returns:
//   - MeshGroupBuilderOption: a function that applies the slot to a mesh group
func WithVertexBufferSlot(slot uint32) MeshGroupBuilderOption {
	return func(g *meshGroup) {
		g.vertexBufferSlot = slot
	}
}

// WithLogger sets the logger used for rebuild and removal messages.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - MeshGroupBuilderOption: a function that applies the logger to a mesh group
func WithLogger(l *zap.Logger) MeshGroupBuilderOption {
	return func(g *meshGroup) {
		g.log = l
	}
}
