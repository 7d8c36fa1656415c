package game_object

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/instance_manager"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelDataMarshal(t *testing.T) {
	md := ModelData{Model: mgl32.Translate3D(1, 2, 3), MaterialIndex: 7}
	assert.Equal(t, ModelDataSize, md.Size())

	buf := md.Marshal()
	require.Len(t, buf, ModelDataSize)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	// Column-major: the translation sits in elements 12..14.
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[52:56])))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[64:68]))
	assert.Equal(t, make([]byte, 12), buf[68:])
}

func TestHierarchyPropagatesParentMatrix(t *testing.T) {
	child := NewGameObject("moon", instance_manager.KindSphere, WithPosition(0, 2, 0))
	parent := NewGameObject("planet", instance_manager.KindSphere,
		WithPosition(1, 0, 0),
		WithScale(1, 1, 1),
		WithChildren(child),
	)

	parent.UpdatePhysics(0.016)
	assert.Equal(t, mgl32.Vec4{1, 2, 0, 1}, child.ModelData().Model.Col(3))

	parent.SetPosition(mgl32.Vec3{5, 0, 0})
	parent.UpdatePhysics(0.016)
	assert.Equal(t, mgl32.Vec4{5, 2, 0, 1}, child.ModelData().Model.Col(3))
	assert.Len(t, parent.Children(), 1)
}

func TestPhysicsCallback(t *testing.T) {
	obj := NewGameObject("ball", instance_manager.KindSphere, WithPhysics(func(o GameObject, dt float32) {
		o.SetPosition(o.Position().Add(mgl32.Vec3{dt, 0, 0}))
	}))

	obj.UpdatePhysics(0.5)
	assert.Equal(t, mgl32.Vec3{0.5, 0, 0}, obj.Position())
	assert.Equal(t, float32(0.5), obj.ModelData().Model.At(0, 3))

	obj.SetEnabled(false)
	obj.UpdatePhysics(0.5)
	assert.Equal(t, mgl32.Vec3{0.5, 0, 0}, obj.Position())
}

func TestUpdateGPUWritesOnlyWhenDirty(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	m, err := mesh.NewMesh("sphere", make([]float32, 9), 3)
	require.NoError(t, err)
	g, err := mesh_group.NewMeshGroup("objects", d, mesh_group.WithMeshes(m))
	require.NoError(t, err)
	im, err := instance_manager.NewInstanceManager(instance_manager.KindSphere, instance_manager.Config{
		RenderItemName:   "ri_sphere",
		MeshGroup:        g,
		MeshName:         "sphere",
		Device:           d,
		BytesPerInstance: ModelDataSize,
	})
	require.NoError(t, err)

	obj := NewGameObject("ball", instance_manager.KindSphere, WithRotation(mgl32.Vec3{0, 1, 0}, 0.5))
	require.NoError(t, obj.UpdateGPU())

	_, err = im.AddInstance(obj)
	require.NoError(t, err)
	obj.SetManager(im)
	assert.Equal(t, 0, obj.InstanceNumber())
	require.NoError(t, im.Buffer().PreRender())

	obj.SetMaterialIndex(3)
	obj.UpdatePhysics(0)
	require.NoError(t, obj.UpdateGPU())
	assert.Equal(t, 1, im.Buffer().Stats().Pending)
	require.NoError(t, im.Buffer().PreRender())
	assert.Equal(t, obj.InstanceData(), d.Contents(im.Buffer().Buffer()))

	require.NoError(t, obj.UpdateGPU())
	assert.Equal(t, 0, im.Buffer().Stats().Pending)
}
