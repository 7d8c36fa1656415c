package render_pass

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type groups map[string]mesh_group.MeshGroup

func (g groups) MeshGroup(name string) mesh_group.MeshGroup { return g[name] }

type fixture struct {
	device  *gpu.HeadlessDevice
	surface *gpu.HeadlessSurface
	groups  groups
	pipe    pipeline.Pipeline
}

func newFixture(t *testing.T, options ...gpu.HeadlessOption) *fixture {
	t.Helper()
	d := gpu.NewHeadlessDevice(options...)
	m, err := mesh.NewMesh("tri", make([]float32, 9), 3)
	require.NoError(t, err)
	g, err := mesh_group.NewMeshGroup("shapes", d, mesh_group.WithMeshes(m))
	require.NoError(t, err)
	_, err = g.CreateRenderItem("tri item", "tri")
	require.NoError(t, err)
	p, err := pipeline.NewPipeline("basic", d, "@vertex fn vs_main() {}")
	require.NoError(t, err)
	return &fixture{device: d, surface: gpu.NewHeadlessSurface(64, 32), groups: groups{"shapes": g}, pipe: p}
}

// frame encodes one frame of the given passes, submits it and presents.
func (f *fixture) frame(t *testing.T, passes ...RenderPass) {
	t.Helper()
	view, err := f.surface.AcquireView()
	require.NoError(t, err)
	w, h := f.surface.Size()
	enc, err := f.device.CreateCommandEncoder("frame")
	require.NoError(t, err)
	for _, p := range passes {
		require.NoError(t, p.Render(enc, Frame{View: view, Width: w, Height: h}))
	}
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, f.device.Queue().Submit(cb))
	f.surface.Present()
	for _, p := range passes {
		require.NoError(t, p.EndOfRender())
	}
}

func TestLayerMeshGroups(t *testing.T) {
	f := newFixture(t)
	l, err := NewLayer("opaque", f.pipe, f.groups)
	require.NoError(t, err)

	assert.ErrorIs(t, l.AddMeshGroup("missing"), gpu.ErrNotFound)
	require.NoError(t, l.AddMeshGroup("shapes"))
	assert.ErrorIs(t, l.AddMeshGroup("shapes"), gpu.ErrDuplicate)
	assert.Equal(t, []string{"shapes"}, l.MeshGroupNames())

	assert.True(t, l.RemoveMeshGroup("shapes"))
	assert.False(t, l.RemoveMeshGroup("shapes"))
	assert.Empty(t, l.MeshGroupNames())

	_, err = NewLayer("bad", f.pipe, f.groups, WithLayerMeshGroups("missing"))
	assert.ErrorIs(t, err, gpu.ErrNotFound)
}

func TestRenderPassDraws(t *testing.T) {
	f := newFixture(t)
	layout, _ := f.device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{Label: "camera"})
	camera, err := bind_group_provider.NewBindGroupProvider("camera", f.device, layout)
	require.NoError(t, err)

	var order []string
	l, err := NewLayer("opaque", f.pipe, f.groups,
		WithLayerMeshGroups("shapes"),
		WithLayerBindGroup(1, camera),
		WithLayerUpdate(func(l Layer, dt float32) error {
			order = append(order, l.Name())
			return nil
		}),
	)
	require.NoError(t, err)
	empty, err := NewLayer("empty", f.pipe, f.groups)
	require.NoError(t, err)

	p, err := NewRenderPass("main", NewSurfaceDescriptor(f.device), WithLayers(l, empty))
	require.NoError(t, err)
	assert.Same(t, l, p.LayerAt(0))
	assert.Same(t, empty, p.Layer("empty"))
	assert.ErrorIs(t, p.AddLayer(l), gpu.ErrDuplicate)

	require.NoError(t, p.Update(0.1, nil))
	assert.Equal(t, []string{"opaque"}, order)

	f.frame(t, p)
	draws := f.device.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "main", draws[0].Pass)
	assert.Equal(t, "basic", draws[0].Pipeline)
	assert.Equal(t, "camera", draws[0].BindGroups[1])
	assert.Equal(t, "shapes vertices", draws[0].VertexBuffer)

	require.NoError(t, p.RemoveLayer("opaque"))
	assert.ErrorIs(t, p.RemoveLayer("opaque"), gpu.ErrNotFound)
}

func TestRenderPassGPUTiming(t *testing.T) {
	f := newFixture(t, gpu.WithHeadlessFeatures(gpu.FeatureTimestampQuery))
	p, err := NewRenderPass("main", NewSurfaceDescriptor(f.device))
	require.NoError(t, err)
	require.NoError(t, p.EnableGPUTiming(f.device))
	require.NoError(t, p.EnableGPUTiming(f.device))
	assert.True(t, p.GPUTimingEnabled())

	f.frame(t, p)
	require.Equal(t, 1, f.device.PendingMaps())

	// The result buffer is still mapping, so this frame resolves but does not copy or map again.
	f.frame(t, p)
	assert.Equal(t, 1, f.device.PendingMaps())

	f.device.Poll(false)
	assert.Equal(t, time.Duration(gpu.HeadlessTimestampDelta), p.LastGPUTime())

	f.frame(t, p)
	assert.Equal(t, 1, f.device.PendingMaps())
	p.Release()
}

func TestRenderPassTimedFrameWithSubmittingItem(t *testing.T) {
	f := newFixture(t, gpu.WithHeadlessFeatures(gpu.FeatureTimestampQuery), gpu.WithHeadlessPollOnSubmit())
	// Staging writers submit their copy while the pass is encoding, and that submit delivers the
	// previous frame's timestamp readback.
	f.groups["shapes"].RenderItem("tri item").SetPreRender(func() error {
		enc, err := f.device.CreateCommandEncoder("staging copy")
		if err != nil {
			return err
		}
		cb, err := enc.Finish()
		if err != nil {
			return err
		}
		return f.device.Queue().Submit(cb)
	})
	l, err := NewLayer("opaque", f.pipe, f.groups, WithLayerMeshGroups("shapes"))
	require.NoError(t, err)
	p, err := NewRenderPass("main", NewSurfaceDescriptor(f.device), WithLayers(l))
	require.NoError(t, err)
	require.NoError(t, p.EnableGPUTiming(f.device))

	render := func() error {
		view, err := f.surface.AcquireView()
		if err != nil {
			return err
		}
		w, h := f.surface.Size()
		enc, err := f.device.CreateCommandEncoder("frame")
		if err != nil {
			return err
		}
		if err := p.Render(enc, Frame{View: view, Width: w, Height: h}); err != nil {
			return err
		}
		cb, err := enc.Finish()
		if err != nil {
			return err
		}
		if err := f.device.Queue().Submit(cb); err != nil {
			return err
		}
		f.surface.Present()
		return p.EndOfRender()
	}

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 2; i++ {
			if err := render(); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("render did not return")
	}
	assert.Equal(t, time.Duration(gpu.HeadlessTimestampDelta), p.LastGPUTime())
	assert.Len(t, f.device.Draws(), 2)
	p.Release()
}

func TestRenderPassGPUTimingUnsupported(t *testing.T) {
	f := newFixture(t)
	p, err := NewRenderPass("main", NewSurfaceDescriptor(f.device))
	require.NoError(t, err)
	assert.ErrorIs(t, p.EnableGPUTiming(f.device), gpu.ErrUnsupported)
	assert.False(t, p.GPUTimingEnabled())
	require.NoError(t, p.EndOfRender())
}

func TestSurfaceDescriptor(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	desc := NewSurfaceDescriptor(d, WithClearColor(gpu.Color{R: 1, A: 1}))
	view, _ := gpu.NewHeadlessSurface(8, 8).AcquireView()

	require.NoError(t, desc.Prepare(Frame{View: view, Width: 8, Height: 8}))
	rp := desc.RenderPassDescriptor()
	require.Len(t, rp.ColorAttachments, 1)
	assert.Equal(t, view, rp.ColorAttachments[0].View)
	assert.Equal(t, 1.0, rp.ColorAttachments[0].ClearValue.R)
	require.NotNil(t, rp.Depth)
	first := rp.Depth.View

	require.NoError(t, desc.OnCanvasResize(16, 16))
	assert.NotSame(t, first, desc.RenderPassDescriptor().Depth.View)
	assert.ErrorIs(t, desc.OnCanvasResize(0, 16), gpu.ErrOutOfRange)

	flat := NewSurfaceDescriptor(d, WithDepth(false))
	require.NoError(t, flat.Prepare(Frame{View: view, Width: 8, Height: 8}))
	assert.Nil(t, flat.RenderPassDescriptor().Depth)
}
