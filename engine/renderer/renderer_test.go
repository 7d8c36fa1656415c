package renderer

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_item"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_pass"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type offscreen struct{ w, h int }

func (o offscreen) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (o offscreen) Width() int                                 { return o.w }
func (o offscreen) Height() int                                { return o.h }

type scene struct {
	device  *gpu.HeadlessDevice
	surface *gpu.HeadlessSurface
	r       Renderer
	group   mesh_group.MeshGroup
	pass    render_pass.RenderPass
}

// newScene builds a renderer with one pass, one layer and one mesh group holding a triangle and a quad.
func newScene(t *testing.T, options ...RendererBuilderOption) *scene {
	t.Helper()
	d := gpu.NewHeadlessDevice(gpu.WithHeadlessFeatures(gpu.FeatureTimestampQuery))
	s := gpu.NewHeadlessSurface(320, 240)
	r, err := NewRendererWithDevice(d, s, options...)
	require.NoError(t, err)

	tri, err := mesh.NewMesh("tri", make([]float32, 9), 3, mesh.WithIndices16([]uint16{0, 1, 2}))
	require.NoError(t, err)
	quad, err := mesh.NewMesh("quad", make([]float32, 12), 3, mesh.WithIndices16([]uint16{0, 1, 2, 2, 3, 0}))
	require.NoError(t, err)
	g, err := r.CreateMeshGroup("shapes", mesh_group.WithMeshes(tri, quad))
	require.NoError(t, err)

	p, err := pipeline.NewPipeline("basic", d, "@vertex fn vs_main() {}")
	require.NoError(t, err)
	require.NoError(t, r.AddPipeline(p))
	l, err := render_pass.NewLayer("opaque", p, r, render_pass.WithLayerMeshGroups("shapes"))
	require.NoError(t, err)
	pass, err := render_pass.NewRenderPass("main", render_pass.NewSurfaceDescriptor(d), render_pass.WithLayers(l))
	require.NoError(t, err)
	require.NoError(t, r.AddRenderPass(pass))

	return &scene{device: d, surface: s, r: r, group: g, pass: pass}
}

func TestRendererFrameCycle(t *testing.T) {
	sc := newScene(t)
	_, err := sc.group.CreateRenderItem("tri", "tri")
	require.NoError(t, err)

	assert.ErrorIs(t, sc.r.Render(), gpu.ErrFrameState)
	require.NoError(t, sc.r.Update(0.016))
	assert.Equal(t, FrameStateUpdating, sc.r.FrameState())
	assert.ErrorIs(t, sc.r.Update(0.016), gpu.ErrFrameState)

	require.NoError(t, sc.r.Render())
	assert.Equal(t, FrameStateIdle, sc.r.FrameState())
	assert.Equal(t, 1, sc.surface.Presented())
	require.Len(t, sc.device.Draws(), 1)
	assert.Equal(t, "main", sc.device.Draws()[0].Pass)
}

func TestRendererPreRenderRunsBeforeEachDraw(t *testing.T) {
	sc := newScene(t)
	pool, err := buffer.NewStagingPool(sc.device, 16, 1, buffer.WithLabel("instances"))
	require.NoError(t, err)
	layout, _ := sc.device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{Label: "instances"})
	provider, err := bind_group_provider.NewBindGroupProvider("instances", sc.device, layout, bind_group_provider.WithBuffer(0, pool))
	require.NoError(t, err)
	_, err = sc.group.CreateRenderItem("quad", "quad",
		render_item.WithPreRender(pool.PreRender),
		render_item.WithBindGroup(1, provider),
	)
	require.NoError(t, err)

	record := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	require.NoError(t, pool.WriteRecord(0, record))
	require.NoError(t, sc.r.Update(0.016))
	require.NoError(t, sc.r.Render())
	assert.Equal(t, record, sc.device.Contents(pool.Buffer()))

	// The remap is delivered by the next Update, returning the staging buffer to the free list.
	require.Equal(t, 1, pool.Stats().InFlight)
	require.NoError(t, sc.r.Update(0.016))
	assert.Equal(t, 1, pool.Stats().Free)
}

func TestRendererUpdatesSharedMeshGroupOnce(t *testing.T) {
	sc := newScene(t)
	updates := 0
	_, err := sc.group.CreateRenderItem("tri", "tri", render_item.WithUpdate(func(render_item.RenderItem, float32) error {
		updates++
		return nil
	}))
	require.NoError(t, err)

	outline, err := render_pass.NewLayer("outline", sc.r.Pipeline("basic"), sc.r, render_pass.WithLayerMeshGroups("shapes"))
	require.NoError(t, err)
	require.NoError(t, sc.pass.AddLayer(outline))
	overlay, err := render_pass.NewLayer("overlay", sc.r.Pipeline("basic"), sc.r, render_pass.WithLayerMeshGroups("shapes"))
	require.NoError(t, err)
	second, err := render_pass.NewRenderPass("second", render_pass.NewSurfaceDescriptor(sc.device), render_pass.WithLayers(overlay))
	require.NoError(t, err)
	require.NoError(t, sc.r.AddRenderPass(second))

	require.NoError(t, sc.r.Update(0.016))
	assert.Equal(t, 1, updates)
	require.NoError(t, sc.r.Render())
	assert.Len(t, sc.device.Draws(), 3)

	require.NoError(t, sc.r.Update(0.016))
	assert.Equal(t, 2, updates)
}

func TestRendererRemoveMeshGroup(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sc := newScene(t, WithLogger(zap.New(core)))
	_, err := sc.group.CreateRenderItem("tri", "tri")
	require.NoError(t, err)

	require.NoError(t, sc.r.RemoveMeshGroup("shapes"))
	assert.Nil(t, sc.r.MeshGroup("shapes"))
	assert.Empty(t, sc.pass.Layer("opaque").MeshGroupNames())
	assert.Equal(t, 1, logs.Len())
	assert.ErrorIs(t, sc.r.RemoveMeshGroup("shapes"), gpu.ErrNotFound)

	require.NoError(t, sc.r.Update(0.016))
	require.NoError(t, sc.r.Render())
	assert.Empty(t, sc.device.Draws())
}

func TestRendererGPUTiming(t *testing.T) {
	sc := newScene(t, WithGPUTiming(true))
	assert.True(t, sc.r.CanComputeGPUTimestamps())
	assert.True(t, sc.pass.GPUTimingEnabled())

	require.NoError(t, sc.r.Update(0.016))
	require.NoError(t, sc.r.Render())
	require.NoError(t, sc.r.Update(0.016))
	assert.Equal(t, map[string]time.Duration{"main": gpu.HeadlessTimestampDelta}, sc.r.PassTimings())
}

func TestRendererDeviceError(t *testing.T) {
	sc := newScene(t)
	boom := errors.New("validation failed")
	sc.device.RaiseError(boom)
	sc.device.RaiseError(errors.New("second"))

	err := sc.r.Update(0.016)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, sc.r.Render(), gpu.ErrDeviceLost)
	assert.ErrorIs(t, sc.r.Release(), boom)
}

func TestRendererRegistries(t *testing.T) {
	sc := newScene(t)
	_, err := sc.r.CreateMeshGroup("shapes")
	assert.ErrorIs(t, err, gpu.ErrDuplicate)
	assert.ErrorIs(t, sc.r.AddRenderPass(sc.pass), gpu.ErrDuplicate)
	assert.Same(t, sc.pass, sc.r.RenderPassAt(0))
	assert.NotNil(t, sc.r.Pipeline("basic"))

	tex, err := sc.device.CreateTexture(&gpu.TextureDescriptor{Label: "albedo", Width: 4, Height: 4})
	require.NoError(t, err)
	require.NoError(t, sc.r.AddTexture("albedo", tex))
	assert.ErrorIs(t, sc.r.AddTexture("albedo", tex), gpu.ErrDuplicate)
	assert.Same(t, tex, sc.r.Texture("albedo"))
	require.NoError(t, sc.r.RemoveTexture("albedo"))
	assert.ErrorIs(t, sc.r.RemoveTexture("albedo"), gpu.ErrNotFound)

	require.NotNil(t, sc.r.Materials())
	require.NoError(t, sc.r.OnCanvasResize(640, 480))
	w, h := sc.surface.Size()
	assert.Equal(t, []int{640, 480}, []int{w, h})

	require.NoError(t, sc.r.RemoveRenderPass("main"))
	assert.ErrorIs(t, sc.r.RemoveRenderPass("main"), gpu.ErrNotFound)
	require.NoError(t, sc.r.Release())
	assert.Equal(t, 0, sc.device.LiveBuffers())
}

func TestNewRendererHeadless(t *testing.T) {
	r, err := NewRenderer(BackendTypeHeadless, offscreen{w: 64, h: 64}, WithGPUTiming(true))
	require.NoError(t, err)
	assert.True(t, r.CanComputeGPUTimestamps())
	require.NoError(t, r.Update(0))
	require.NoError(t, r.Render())
	require.NoError(t, r.Release())

	_, err = NewRenderer(RendererBackendType(7), offscreen{w: 64, h: 64})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	mode, err := ParsePresentMode("uncapped")
	require.NoError(t, err)
	assert.Equal(t, PresentModeUncapped, mode)
	_, err = ParsePresentMode("triple")
	assert.Error(t, err)
}

func TestWriteBuffers(t *testing.T) {
	sc := newScene(t)
	ub, err := buffer.NewUniformBuffer(sc.device, 16)
	require.NoError(t, err)
	layout, _ := sc.device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{Label: "camera"})
	p, err := bind_group_provider.NewBindGroupProvider("camera", sc.device, layout, bind_group_provider.WithBuffer(0, ub))
	require.NoError(t, err)

	err = sc.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: p, Binding: 0, Offset: 4, Data: []byte{9, 9, 9, 9}},
		{Provider: p, Binding: 3, Data: []byte{1}},
		{Provider: p, Binding: 0, Offset: 64, Data: []byte{1}},
	})
	assert.ErrorIs(t, err, gpu.ErrNotFound)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)
	assert.Equal(t, []byte{0, 0, 0, 0, 9, 9, 9, 9}, sc.device.Contents(ub.Buffer())[:8])
}
