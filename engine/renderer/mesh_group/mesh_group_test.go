package mesh_group

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// triangle builds a mesh of n vertices with three floats each.
func triangle(t *testing.T, name string, n int, options ...mesh.MeshBuilderOption) mesh.Mesh {
	t.Helper()
	m, err := mesh.NewMesh(name, make([]float32, n*3), 3, options...)
	require.NoError(t, err)
	return m
}

func renderGroup(t *testing.T, d *gpu.HeadlessDevice, g MeshGroup) {
	t.Helper()
	enc, err := d.CreateCommandEncoder("test")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(&gpu.RenderPassDescriptor{Label: "pass"})
	require.NoError(t, err)
	require.NoError(t, g.Render(pass))
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Queue().Submit(cb))
}

func TestMeshGroupDescriptors(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	a := triangle(t, "a", 3, mesh.WithIndices16([]uint16{0, 1, 2}))
	b := triangle(t, "b", 4, mesh.WithIndices16([]uint16{0, 1, 2, 2, 3, 0}))
	g, err := NewMeshGroup("shapes", d, WithMeshes(a, b))
	require.NoError(t, err)

	da, ok := g.Descriptor("a")
	require.True(t, ok)
	assert.Equal(t, mesh.Descriptor{VertexCount: 3, StartVertex: 0, IndexCount: 3, StartIndex: 0}, da)
	db, _ := g.Descriptor("b")
	assert.Equal(t, mesh.Descriptor{VertexCount: 4, StartVertex: 3, IndexCount: 6, StartIndex: 3}, db)

	assert.Equal(t, gpu.IndexFormatUint16, g.IndexFormat())
	assert.Equal(t, uint64(7*3*4), g.VertexBuffer().Size())
	// Nine 16-bit indices pad to 20 bytes.
	assert.Equal(t, uint64(20), g.IndexBuffer().Size())
}

func TestMeshGroupRejectsMixedFormats(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	a := triangle(t, "a", 3, mesh.WithIndices16([]uint16{0, 1, 2}))
	g, err := NewMeshGroup("shapes", d, WithMeshes(a))
	require.NoError(t, err)
	vb, ib := g.VertexBuffer(), g.IndexBuffer()

	err = g.AddMesh(triangle(t, "wide", 3, mesh.WithIndices32([]uint32{0, 1, 2})))
	assert.ErrorIs(t, err, gpu.ErrIndexFormatMismatch)
	err = g.AddMesh(triangle(t, "flat", 3))
	assert.ErrorIs(t, err, gpu.ErrIndexFormatMismatch)

	assert.Len(t, g.Meshes(), 1)
	assert.Same(t, vb, g.VertexBuffer())
	assert.Same(t, ib, g.IndexBuffer())
	assert.Nil(t, g.Mesh("wide"))

	assert.ErrorIs(t, g.AddMesh(triangle(t, "a", 3, mesh.WithIndices16([]uint16{0, 1, 2}))), gpu.ErrDuplicate)
}

func TestMeshGroupRebuildPropagatesDescriptors(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	g, err := NewMeshGroup("shapes", d, WithMeshes(triangle(t, "a", 3), triangle(t, "b", 6)))
	require.NoError(t, err)
	it, err := g.CreateRenderItem("b item", "b")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), it.Descriptor().StartVertex)
	oldVB := g.VertexBuffer()
	live := d.LiveBuffers()

	require.NoError(t, g.RemoveMesh("a"))
	assert.Equal(t, uint32(0), it.Descriptor().StartVertex)
	assert.Equal(t, uint32(6), it.Descriptor().VertexCount)
	assert.NotSame(t, oldVB, g.VertexBuffer())
	assert.Equal(t, live, d.LiveBuffers())
}

func TestMeshGroupRemoveMeshDropsItems(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := gpu.NewHeadlessDevice()
	g, err := NewMeshGroup("shapes", d,
		WithMeshes(triangle(t, "a", 3), triangle(t, "b", 3)),
		WithLogger(zap.New(core)),
	)
	require.NoError(t, err)
	_, err = g.CreateRenderItem("first", "a")
	require.NoError(t, err)
	_, err = g.CreateRenderItem("second", "b")
	require.NoError(t, err)
	_, err = g.CreateRenderItem("third", "a")
	require.NoError(t, err)

	require.NoError(t, g.RemoveMesh("a"))
	require.Len(t, g.RenderItems(), 1)
	assert.Equal(t, "second", g.RenderItemAt(0).Name())
	assert.Nil(t, g.RenderItem("first"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "a", fields["mesh"])
	assert.Equal(t, []interface{}{"first", "third"}, fields["renderItems"])

	assert.ErrorIs(t, g.RemoveMesh("a"), gpu.ErrNotFound)
}

func TestMeshGroupCreateRenderItemErrors(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	g, err := NewMeshGroup("shapes", d, WithMeshes(triangle(t, "a", 3)))
	require.NoError(t, err)
	_, err = g.CreateRenderItem("x", "missing")
	assert.ErrorIs(t, err, gpu.ErrNotFound)
	_, err = g.CreateRenderItem("x", "a")
	require.NoError(t, err)
	_, err = g.CreateRenderItem("x", "a")
	assert.ErrorIs(t, err, gpu.ErrDuplicate)
	assert.ErrorIs(t, g.RemoveRenderItem("nope"), gpu.ErrNotFound)
	require.NoError(t, g.RemoveRenderItem("x"))
}

func TestMeshGroupRender(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	g, err := NewMeshGroup("shapes", d, WithMeshes(
		triangle(t, "a", 3, mesh.WithIndices32([]uint32{0, 1, 2})),
		triangle(t, "b", 4, mesh.WithIndices32([]uint32{0, 1, 2, 2, 3, 0})),
	))
	require.NoError(t, err)

	hidden, err := g.CreateRenderItem("hidden", "a", render_item.WithActive(false))
	require.NoError(t, err)
	renderGroup(t, d, g)
	assert.Empty(t, d.Draws())

	hidden.SetActive(true)
	_, err = g.CreateRenderItem("many", "b", render_item.WithInstanceCount(10))
	require.NoError(t, err)
	renderGroup(t, d, g)

	draws := d.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, "shapes vertices", draws[0].VertexBuffer)
	assert.Equal(t, "shapes indices", draws[0].IndexBuffer)
	assert.Equal(t, gpu.IndexFormatUint32, draws[0].IndexFormat)
	assert.Equal(t, uint32(3), draws[1].First)
	assert.Equal(t, int32(3), draws[1].BaseVertex)
	assert.Equal(t, uint32(10), draws[1].InstanceCount)
}

func TestMeshGroupUpdateAndRemoval(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := gpu.NewHeadlessDevice()
	g, err := NewMeshGroup("shapes", d, WithMeshes(triangle(t, "a", 3)), WithLogger(zap.New(core)))
	require.NoError(t, err)

	calls := 0
	_, err = g.CreateRenderItem("x", "a", render_item.WithUpdate(func(item render_item.RenderItem, dt float32) error {
		calls++
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, g.Update(0.016))
	assert.Equal(t, 1, calls)

	g.InformRemoval()
	assert.Empty(t, g.RenderItems())
	assert.Equal(t, 1, logs.Len())

	g.Destroy()
	assert.Nil(t, g.VertexBuffer())
	assert.Equal(t, 0, d.LiveBuffers())
}
